package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/phrazzld/vaultcore/internal/config"
	"github.com/phrazzld/vaultcore/internal/security"
	"github.com/phrazzld/vaultcore/internal/securityapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testServiceToken = "integration-service-token"

// newSecurityServer runs the security RPC surface in-process.
func newSecurityServer(t *testing.T) *httptest.Server {
	t.Helper()

	keyring, err := security.NewKeyring(bytes.Repeat([]byte{3}, 32), []string{"pin-v1"}, nil)
	require.NoError(t, err)
	tokens, err := security.NewTokenIssuer(bytes.Repeat([]byte{5}, 32))
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

	srv := httptest.NewServer(securityapi.NewRouter(svc, testServiceToken, nil, nil))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(securityURL string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:            8080,
			LogLevel:        "error",
			Environment:     "test",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    5 * time.Second,
			ShutdownTimeout: time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Auth: config.AuthConfig{
			SessionSecret:        strings.Repeat("s", 32),
			SessionLifetimeHours: 24,
			NonceTTLMinutes:      5,
		},
		Security: config.SecurityConfig{
			PINKeyID:     "pin-v1",
			ServiceToken: testServiceToken,
		},
		SecurityClient: config.SecurityClientConfig{
			BaseURL:          securityURL,
			IdentityTimeout:  5 * time.Second,
			PINTimeout:       3 * time.Second,
			CryptoTimeout:    2 * time.Second,
			SignatureTimeout: 2 * time.Second,
		},
		Ledger:    config.LedgerConfig{Backend: "memory", BranchCode: "1001"},
		RateLimit: config.RateLimitConfig{NonceLimit: 5, Window: time.Minute},
	}
}

func newTestApp(t *testing.T) (*application, http.Handler) {
	t.Helper()

	sec := newSecurityServer(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	app, err := newApplication(context.Background(), testConfig(sec.URL), log)
	require.NoError(t, err)
	t.Cleanup(app.cleanup)
	return app, app.setupRouter()
}

func send(t *testing.T, h http.Handler, method, path string, body any, token string) (int, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	out := map[string]any{}
	if rr.Body.Len() > 0 && strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	}
	return rr.Code, out
}

func openAccount(t *testing.T, h http.Handler, name, deposit, pin string) string {
	t.Helper()

	status, body := send(t, h, http.MethodPost, "/accounts", map[string]string{
		"holder_name":     name,
		"date_of_birth":   "1988-02-29",
		"contact":         strings.ToLower(name) + "@example.com",
		"pan_number":      "ABCPE1234F",
		"id_number":       "234123412346",
		"account_type":    "SAVINGS",
		"initial_deposit": deposit,
		"pin":             pin,
	}, "")
	require.Equal(t, http.StatusCreated, status, body)
	number, _ := body["account_number"].(string)
	require.True(t, strings.HasPrefix(number, "1001"))
	return number
}

func TestHealthAndMetrics(t *testing.T) {
	_, h := newTestApp(t)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get("X-Trace-ID"))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "vault_http_requests_total")
}

func TestPaymentFlowAndLockout(t *testing.T) {
	_, h := newTestApp(t)

	alice := openAccount(t, h, "Alice", "1000.00", "4321")
	bob := openAccount(t, h, "Bob", "10.00", "1234")

	status, body := send(t, h, http.MethodPost, "/payments", map[string]string{
		"from_account": alice,
		"to_account":   bob,
		"amount":       "250.00",
		"pin":          "4321",
		"description":  "rent",
	}, "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "SUCCESS", body["status"])
	assert.Equal(t, "750.00", body["from_balance"])
	assert.Equal(t, "260.00", body["to_balance"])
	assert.NotEmpty(t, body["reference_number"])

	status, body = send(t, h, http.MethodPost, "/payments", map[string]string{
		"from_account": bob,
		"to_account":   alice,
		"amount":       "1000.00",
		"pin":          "1234",
	}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "FAILED", body["status"])

	wrong := map[string]string{
		"from_account": alice,
		"to_account":   bob,
		"amount":       "1.00",
		"pin":          "0000",
	}
	status, body = send(t, h, http.MethodPost, "/payments", wrong, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.EqualValues(t, 2, body["attempts_remaining"])

	status, _ = send(t, h, http.MethodPost, "/payments", wrong, "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = send(t, h, http.MethodPost, "/payments", wrong, "")
	assert.Equal(t, http.StatusLocked, status)
	assert.Equal(t, "LOCKED", body["status"])

	// The correct PIN no longer helps once the account is locked.
	wrong["pin"] = "4321"
	status, _ = send(t, h, http.MethodPost, "/payments", wrong, "")
	assert.Equal(t, http.StatusLocked, status)

	status, body = send(t, h, http.MethodGet, "/accounts/"+alice, nil, "")
	require.Equal(t, http.StatusOK, status)
	account := body["account"].(map[string]any)
	assert.Equal(t, "LOCKED", account["status"])
	assert.Equal(t, "750.00", account["balance"])

	status, body = send(t, h, http.MethodGet, "/accounts/"+bob+"/transactions", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["transactions"], 1)
}

func TestWalletLoginFlow(t *testing.T) {
	_, h := newTestApp(t)

	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(key.PubKey().SerializeCompressed()), &chaincfg.MainNetParams)
	require.NoError(t, err)
	address := addr.EncodeAddress()

	status, challenge := send(t, h, http.MethodGet, "/auth/nonce?address="+address, nil, "")
	require.Equal(t, http.StatusOK, status, challenge)
	nonce := challenge["nonce"].(string)
	message := challenge["message"].(string)
	assert.Contains(t, message, address)

	signature, err := security.SignMessage(key, message, true)
	require.NoError(t, err)

	verify := map[string]string{"address": address, "signature": signature, "nonce": nonce}
	status, login := send(t, h, http.MethodPost, "/auth/verify", verify, "")
	require.Equal(t, http.StatusOK, status, login)
	token := login["token"].(string)

	// A nonce is single use.
	status, _ = send(t, h, http.MethodPost, "/auth/verify", verify, "")
	assert.Equal(t, http.StatusBadRequest, status)

	// A nonce that was never issued is an invalid credential.
	unknown := map[string]string{"address": address, "signature": signature, "nonce": strings.Repeat("ab", 32)}
	status, body := send(t, h, http.MethodPost, "/auth/verify", unknown, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", body["status"])

	status, session := send(t, h, http.MethodGet, "/auth/session", nil, token)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, address, session["address"])
	assert.Equal(t, true, session["verified"])

	status, _ = send(t, h, http.MethodDelete, "/auth/session", nil, token)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = send(t, h, http.MethodGet, "/auth/session", nil, token)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestNonceRateLimit(t *testing.T) {
	_, h := newTestApp(t)

	address := "1BoatSLRHtKNngkdXEeobR76b53LETtpyT"
	for i := 0; i < 5; i++ {
		status, _ := send(t, h, http.MethodGet, "/auth/nonce?address="+address, nil, "")
		require.Equal(t, http.StatusOK, status)
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/nonce?address="+address, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
}

func nonceFrom(t *testing.T, h http.Handler, address, forwardedFor string) int {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/auth/nonce?address="+address, nil)
	req.Header.Set("X-Forwarded-For", forwardedFor)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr.Code
}

func TestNonceRateLimitIgnoresUntrustedForwarding(t *testing.T) {
	_, h := newTestApp(t)

	address := "1BoatSLRHtKNngkdXEeobR76b53LETtpyT"
	succeeded := 0
	for i := 0; i < 20; i++ {
		if nonceFrom(t, h, address, fmt.Sprintf("198.51.100.%d", i+1)) == http.StatusOK {
			succeeded++
		}
	}
	assert.Equal(t, 5, succeeded)
	assert.Equal(t, http.StatusTooManyRequests, nonceFrom(t, h, address, "203.0.113.200"))
}

func TestNonceRateLimitBehindTrustedProxy(t *testing.T) {
	sec := newSecurityServer(t)
	cfg := testConfig(sec.URL)
	// httptest requests arrive from 192.0.2.1.
	cfg.Server.TrustedProxies = []string{"192.0.2.0/24"}

	app, err := newApplication(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(app.cleanup)
	h := app.setupRouter()

	address := "1BoatSLRHtKNngkdXEeobR76b53LETtpyT"
	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusOK, nonceFrom(t, h, address, fmt.Sprintf("198.51.100.%d", i+1)))
	}

	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, nonceFrom(t, h, address, "203.0.113.7"))
	}
	assert.Equal(t, http.StatusTooManyRequests, nonceFrom(t, h, address, "203.0.113.7"))
}

func TestSecurityServiceUnavailable(t *testing.T) {
	sec := newSecurityServer(t)
	cfg := testConfig(sec.URL)
	sec.Close()

	app, err := newApplication(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(app.cleanup)

	status, body := send(t, app.setupRouter(), http.MethodPost, "/accounts", map[string]string{
		"holder_name":     "Carol",
		"date_of_birth":   "1970-01-01",
		"contact":         "carol@example.com",
		"pan_number":      "ABCPE1234F",
		"id_number":       "234123412346",
		"account_type":    "CURRENT",
		"initial_deposit": "5",
		"pin":             "9876",
	}, "")
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "DEPENDENCY_ERROR", body["status"])
	assert.Equal(t, "Security service unavailable", body["message"])
}
