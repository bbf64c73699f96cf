// Package securityclient is the business process's view of the security
// service. It implements security.Service over the JSON RPC surface exposed
// by securityapi, applying a fixed deadline to every call and never
// retrying.
package securityclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/phrazzld/vaultcore/internal/domain"
	"github.com/phrazzld/vaultcore/internal/metrics"
	"github.com/phrazzld/vaultcore/internal/platform/logger"
	"github.com/phrazzld/vaultcore/internal/security"
	"github.com/phrazzld/vaultcore/internal/securityapi"
)

// Default per-call budgets.
const (
	DefaultIdentityTimeout  = 5 * time.Second
	DefaultPINTimeout       = 3 * time.Second
	DefaultCryptoTimeout    = 2 * time.Second
	DefaultSignatureTimeout = 2 * time.Second
)

// maxResponseBytes bounds every response body read from the security service.
const maxResponseBytes = 1 << 20

// Config configures a Client. Zero timeouts take the defaults.
type Config struct {
	BaseURL          string
	ServiceToken     string
	IdentityTimeout  time.Duration
	PINTimeout       time.Duration
	CryptoTimeout    time.Duration
	SignatureTimeout time.Duration

	// HTTPClient is used for every call. Nil means a client with no timeout
	// of its own; the per-call deadline bounds each request.
	HTTPClient *http.Client
}

// Client calls a remote security service.
type Client struct {
	baseURL string
	token   string
	timeout map[string]time.Duration
	http    *http.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
}

var _ security.Service = (*Client)(nil)

// New creates a Client. m may be nil.
func New(cfg Config, log *slog.Logger, m *metrics.Metrics) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("security client base url is required")
	}
	if log == nil {
		log = slog.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	identity := orDefault(cfg.IdentityTimeout, DefaultIdentityTimeout)
	pin := orDefault(cfg.PINTimeout, DefaultPINTimeout)
	crypto := orDefault(cfg.CryptoTimeout, DefaultCryptoTimeout)
	signature := orDefault(cfg.SignatureTimeout, DefaultSignatureTimeout)

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.ServiceToken,
		timeout: map[string]time.Duration{
			securityapi.OpVerifyIdentity:      identity,
			securityapi.OpValidatePIN:         pin,
			securityapi.OpEncryptData:         crypto,
			securityapi.OpDecryptData:         crypto,
			securityapi.OpGenerateSecureToken: crypto,
			securityapi.OpVerifySecureToken:   crypto,
			securityapi.OpVerifySignature:     signature,
		},
		http:    httpClient,
		logger:  log.With(slog.String("component", "security_client")),
		metrics: m,
	}, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// VerifyIdentity implements security.Service.
func (c *Client) VerifyIdentity(ctx context.Context, req security.IdentityRequest) (security.IdentityResult, error) {
	var res security.IdentityResult
	err := c.call(ctx, securityapi.OpVerifyIdentity, req, &res)
	return res, err
}

// ValidatePIN implements security.Service.
func (c *Client) ValidatePIN(ctx context.Context, req security.PINRequest) (security.PINResult, error) {
	var res security.PINResult
	err := c.call(ctx, securityapi.OpValidatePIN, req, &res)
	return res, err
}

// EncryptData implements security.Service.
func (c *Client) EncryptData(ctx context.Context, plaintext []byte, keyID string) (string, error) {
	var res security.EncryptResult
	err := c.call(ctx, securityapi.OpEncryptData, security.EncryptRequest{Plaintext: plaintext, KeyID: keyID}, &res)
	return res.Ciphertext, err
}

// DecryptData implements security.Service.
func (c *Client) DecryptData(ctx context.Context, ciphertext string, keyID string) ([]byte, error) {
	var res security.DecryptResult
	err := c.call(ctx, securityapi.OpDecryptData, security.DecryptRequest{Ciphertext: ciphertext, KeyID: keyID}, &res)
	return res.Plaintext, err
}

// VerifySignature implements security.Service.
func (c *Client) VerifySignature(ctx context.Context, req security.SignatureRequest) (security.SignatureResult, error) {
	var res security.SignatureResult
	err := c.call(ctx, securityapi.OpVerifySignature, req, &res)
	return res, err
}

// GenerateSecureToken implements security.Service.
func (c *Client) GenerateSecureToken(ctx context.Context, req security.TokenRequest) (security.ReferenceToken, error) {
	var res security.ReferenceToken
	err := c.call(ctx, securityapi.OpGenerateSecureToken, req, &res)
	return res, err
}

// VerifySecureToken implements security.Service.
func (c *Client) VerifySecureToken(ctx context.Context, token, accountID, purpose string) error {
	var res security.VerifyTokenResult
	return c.call(ctx, securityapi.OpVerifySecureToken, security.VerifyTokenRequest{
		Token:     token,
		AccountID: accountID,
		Purpose:   purpose,
	}, &res)
}

// call performs one RPC under the operation's deadline. Every failure is
// returned in the domain taxonomy: a missed deadline is
// domain.ErrDependencyTimeout, anything else domain.ErrDependency, with the
// remote security sentinel still matchable through errors.Is.
func (c *Client) call(ctx context.Context, op string, in, out any) (err error) {
	start := time.Now()
	timeout := c.timeout[op]
	log := logger.FromContextOrDefault(ctx, c.logger).With(slog.String("op", op))

	defer func() {
		c.metrics.ObserveSecurity(op, resultLabel(err), time.Since(start))
		if err != nil {
			log.Debug("security call failed",
				slog.Duration("elapsed", time.Since(start)),
				slog.String("error", err.Error()))
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%w: %s: encode request: %w", domain.ErrDependency, op, err)
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/rpc/"+op, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %s: build request: %w", domain.ErrDependency, op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set(securityapi.ServiceTokenHeader, c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return c.transportError(callCtx, op, timeout, err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return c.transportError(callCtx, op, timeout, err)
	}

	if resp.StatusCode != http.StatusOK {
		return remoteFailure(op, resp.StatusCode, payload)
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%w: %s: decode response: %w", domain.ErrDependency, op, err)
	}
	return nil
}

func (c *Client) transportError(callCtx context.Context, op string, timeout time.Duration, err error) error {
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s exceeded %s", domain.ErrDependencyTimeout, op, timeout)
	}
	return security.AsDependencyError(op, err)
}

// remoteError carries the server's message while matching the sentinel its
// code names.
type remoteError struct {
	sentinel error
	msg      string
}

func (e *remoteError) Error() string { return e.msg }

func (e *remoteError) Unwrap() error { return e.sentinel }

func remoteFailure(op string, status int, payload []byte) error {
	var body securityapi.ErrorResponse
	if err := json.Unmarshal(payload, &body); err != nil || body.Code == "" {
		return fmt.Errorf("%w: %s: unexpected status %d", domain.ErrDependency, op, status)
	}

	sentinel := security.FromCode(body.Code)
	if sentinel == nil {
		return fmt.Errorf("%w: %s: %s (status %d)", domain.ErrDependency, op, body.Code, status)
	}
	msg := body.Error
	if msg == "" {
		msg = sentinel.Error()
	}
	return security.AsDependencyError(op, &remoteError{sentinel: sentinel, msg: msg})
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrDependencyTimeout):
		return "timeout"
	}
	if code := security.Code(err); code != "internal" {
		return code
	}
	return "unavailable"
}
