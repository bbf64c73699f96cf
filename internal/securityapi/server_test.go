package securityapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/phrazzld/vaultcore/internal/security"
	"github.com/phrazzld/vaultcore/internal/securityapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const serviceToken = "test-service-token"

func newTestRouter(t *testing.T) (http.Handler, *security.Keyring) {
	t.Helper()

	keyring, err := security.NewKeyring(bytes.Repeat([]byte{7}, 32), []string{"pin-v1", "data-v1"}, nil)
	require.NoError(t, err)
	tokens, err := security.NewTokenIssuer(bytes.Repeat([]byte{9}, 32))
	require.NoError(t, err)

	svc, err := security.NewService(
		security.Config{PINKeyID: "pin-v1", MaxPINAttempts: 3},
		keyring,
		security.NewSignatureVerifier(&chaincfg.MainNetParams),
		tokens,
		security.NewMemoryAttemptStore(),
		nil,
		nil,
	)
	require.NoError(t, err)

	return securityapi.NewRouter(svc, serviceToken, nil, nil), keyring
}

func call(t *testing.T, h http.Handler, op string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(http.MethodPost, "/rpc/"+op, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(securityapi.ServiceTokenHeader, token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) securityapi.ErrorResponse {
	t.Helper()
	var body securityapi.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestHealth(t *testing.T) {
	t.Parallel()
	h, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestServiceToken(t *testing.T) {
	t.Parallel()
	h, _ := newTestRouter(t)
	req := security.IdentityRequest{PANNumber: "ABCDE1234F", IDNumber: "234123412346"}

	for _, token := range []string{"", "wrong-token"} {
		rec := call(t, h, securityapi.OpVerifyIdentity, req, token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "unauthorized", decodeError(t, rec).Code)
	}
}

func TestValidatePIN(t *testing.T) {
	t.Parallel()
	h, keyring := newTestRouter(t)

	sealed, err := keyring.Encrypt([]byte("1234"), "pin-v1")
	require.NoError(t, err)

	rec := call(t, h, securityapi.OpValidatePIN, security.PINRequest{
		AccountID:    "100100000042",
		PIN:          "1234",
		Operation:    security.OperationPayment,
		EncryptedPIN: sealed,
	}, serviceToken)
	require.Equal(t, http.StatusOK, rec.Code)

	var res security.PINResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, security.PINResult{Valid: true, AttemptsRemaining: 3}, res)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	t.Parallel()
	h, _ := newTestRouter(t)

	rec := call(t, h, securityapi.OpEncryptData, security.EncryptRequest{Plaintext: []byte("secret"), KeyID: "data-v1"}, serviceToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var enc security.EncryptResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&enc))
	require.NotEmpty(t, enc.Ciphertext)

	rec = call(t, h, securityapi.OpDecryptData, security.DecryptRequest{Ciphertext: enc.Ciphertext, KeyID: "data-v1"}, serviceToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var dec security.DecryptResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&dec))
	assert.Equal(t, []byte("secret"), dec.Plaintext)
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()
	h, keyring := newTestRouter(t)

	sealed, err := keyring.Encrypt([]byte("1234"), "pin-v1")
	require.NoError(t, err)

	tests := []struct {
		name       string
		op         string
		body       any
		wantStatus int
		wantCode   string
	}{
		{
			name:       "malformed body",
			op:         securityapi.OpValidatePIN,
			body:       `{"account_id":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
		},
		{
			name:       "unknown field",
			op:         securityapi.OpEncryptData,
			body:       `{"plaintext":"AA==","key_id":"data-v1","extra":1}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
		},
		{
			name:       "unknown key",
			op:         securityapi.OpEncryptData,
			body:       security.EncryptRequest{Plaintext: []byte("x"), KeyID: "missing"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "unknown_key",
		},
		{
			name:       "malformed ciphertext",
			op:         securityapi.OpDecryptData,
			body:       security.DecryptRequest{Ciphertext: "not base64!", KeyID: "data-v1"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "malformed_ciphertext",
		},
		{
			name:       "wrong key for envelope",
			op:         securityapi.OpDecryptData,
			body:       security.DecryptRequest{Ciphertext: sealed, KeyID: "data-v1"},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "decrypt_failed",
		},
		{
			name:       "invalid reference token",
			op:         securityapi.OpVerifySecureToken,
			body:       security.VerifyTokenRequest{Token: "REF-AAAA", AccountID: "100100000042", Purpose: "PAYMENT"},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "invalid_token",
		},
		{
			name:       "invalid pin request",
			op:         securityapi.OpValidatePIN,
			body:       security.PINRequest{AccountID: "100100000042", PIN: "1234", Operation: "WITHDRAW", EncryptedPIN: sealed},
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := call(t, h, tt.op, tt.body, serviceToken)
			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.NotEmpty(t, body.Error)
			if tt.wantCode != "invalid_request" {
				assert.Equal(t, security.FromCode(tt.wantCode).Error(), body.Error)
			}
		})
	}
}

// leakyDecrypt fails decryption with cipher-level detail attached.
type leakyDecrypt struct {
	security.Service
}

func (leakyDecrypt) DecryptData(context.Context, string, string) ([]byte, error) {
	return nil, fmt.Errorf("%w: chacha20poly1305: message authentication failed (kek pin-v1)", security.ErrDecryptFailed)
}

func TestCryptoErrorDetailStaysInProcess(t *testing.T) {
	t.Parallel()
	h := securityapi.NewRouter(leakyDecrypt{}, serviceToken, nil, nil)

	rec := call(t, h, securityapi.OpDecryptData, security.DecryptRequest{Ciphertext: "AAAA", KeyID: "pin-v1"}, serviceToken)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.NotContains(t, rec.Body.String(), "chacha20poly1305")
	assert.NotContains(t, rec.Body.String(), "kek")
	body := decodeError(t, rec)
	assert.Equal(t, "decrypt_failed", body.Code)
	assert.Equal(t, security.ErrDecryptFailed.Error(), body.Error)
}

func TestGenerateAndVerifyToken(t *testing.T) {
	t.Parallel()
	h, _ := newTestRouter(t)

	rec := call(t, h, securityapi.OpGenerateSecureToken, security.TokenRequest{
		AccountID:     "100100000042",
		Purpose:       "PAYMENT",
		ExpiryMinutes: 5,
	}, serviceToken)
	require.Equal(t, http.StatusOK, rec.Code)

	var tok security.ReferenceToken
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&tok))
	assert.True(t, strings.HasPrefix(tok.Value, "REF-"))

	rec = call(t, h, securityapi.OpVerifySecureToken, security.VerifyTokenRequest{
		Token:     tok.Value,
		AccountID: "100100000042",
		Purpose:   "PAYMENT",
	}, serviceToken)
	require.Equal(t, http.StatusOK, rec.Code)

	var res security.VerifyTokenResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.True(t, res.Valid)
}
