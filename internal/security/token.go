package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"io"
	"regexp"
	"time"
)

const (
	tokenPrefix       = "REF-"
	tokenRandomSize   = 16
	tokenTagSize      = 16
	maxTokenExpiryMin = 24 * 60
)

var (
	tokenEncoding  = base32.StdEncoding.WithPadding(base32.NoPadding)
	purposePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]{0,31}$`)
)

// TokenIssuer mints and verifies reference tokens. A token embeds its expiry,
// 16 random bytes and a truncated HMAC-SHA256 tag over
// account|purpose|expiry|random, so verification needs no storage.
type TokenIssuer struct {
	secret []byte
	rand   io.Reader
	now    func() time.Time
}

// NewTokenIssuer creates an issuer keyed by secret.
func NewTokenIssuer(secret []byte) (*TokenIssuer, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("%w: token secret must be at least 32 bytes", ErrInvalidRequest)
	}
	return &TokenIssuer{
		secret: append([]byte(nil), secret...),
		rand:   rand.Reader,
		now:    time.Now,
	}, nil
}

// Generate mints a token for req.
func (t *TokenIssuer) Generate(req TokenRequest) (ReferenceToken, error) {
	if req.AccountID == "" {
		return ReferenceToken{}, fmt.Errorf("%w: account id is required", ErrInvalidRequest)
	}
	if !purposePattern.MatchString(req.Purpose) {
		return ReferenceToken{}, fmt.Errorf("%w: purpose must be upper-case identifier", ErrInvalidRequest)
	}
	if req.ExpiryMinutes < 1 || req.ExpiryMinutes > maxTokenExpiryMin {
		return ReferenceToken{}, fmt.Errorf("%w: expiry must be 1-%d minutes", ErrInvalidRequest, maxTokenExpiryMin)
	}

	random := make([]byte, tokenRandomSize)
	if _, err := io.ReadFull(t.rand, random); err != nil {
		return ReferenceToken{}, fmt.Errorf("read random: %w", err)
	}

	expiresAt := t.now().UTC().Add(time.Duration(req.ExpiryMinutes) * time.Minute).Truncate(time.Second)
	expiry := uint64(expiresAt.Unix())

	body := make([]byte, 0, 8+tokenRandomSize+tokenTagSize)
	body = binary.BigEndian.AppendUint64(body, expiry)
	body = append(body, random...)
	body = append(body, t.tag(req.AccountID, req.Purpose, expiry, random)...)

	return ReferenceToken{
		Value:     tokenPrefix + tokenEncoding.EncodeToString(body),
		AccountID: req.AccountID,
		Purpose:   req.Purpose,
		ExpiresAt: expiresAt,
	}, nil
}

// Verify checks that value was minted by this issuer for accountID and
// purpose and has not expired.
func (t *TokenIssuer) Verify(value, accountID, purpose string) error {
	if len(value) <= len(tokenPrefix) || value[:len(tokenPrefix)] != tokenPrefix {
		return ErrInvalidToken
	}
	body, err := tokenEncoding.DecodeString(value[len(tokenPrefix):])
	if err != nil || len(body) != 8+tokenRandomSize+tokenTagSize {
		return ErrInvalidToken
	}

	expiry := binary.BigEndian.Uint64(body[:8])
	random := body[8 : 8+tokenRandomSize]
	tag := body[8+tokenRandomSize:]

	if !hmac.Equal(tag, t.tag(accountID, purpose, expiry, random)) {
		return ErrInvalidToken
	}
	if !t.now().Before(time.Unix(int64(expiry), 0)) {
		return ErrTokenExpired
	}
	return nil
}

func (t *TokenIssuer) tag(accountID, purpose string, expiry uint64, random []byte) []byte {
	mac := hmac.New(sha256.New, t.secret)
	fmt.Fprintf(mac, "%s|%s|%d|", accountID, purpose, expiry)
	mac.Write(random)
	return mac.Sum(nil)[:tokenTagSize]
}
