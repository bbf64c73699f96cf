package security

import "time"

// Operation names the business action a PIN check authorizes.
type Operation string

// Operations the banking service validates PINs for.
const (
	OperationPayment Operation = "PAYMENT"
	OperationEnquiry Operation = "ENQUIRY"
)

// IdentityRequest carries the two identity documents checked at onboarding.
type IdentityRequest struct {
	PANNumber string `json:"pan_number"`
	IDNumber  string `json:"id_number"`
}

// IdentityResult reports whether both documents passed format and checksum
// validation.
type IdentityResult struct {
	Verified   bool    `json:"verified"`
	Confidence float64 `json:"confidence"`
	Message    string  `json:"message"`
}

// PINRequest asks the service to check pin against the account's sealed PIN.
// EncryptedPIN is the opaque blob produced by EncryptData at account creation;
// only this service can open it.
type PINRequest struct {
	AccountID    string    `json:"account_id"`
	PIN          string    `json:"pin"`
	Operation    Operation `json:"operation"`
	EncryptedPIN string    `json:"encrypted_pin"`
}

// PINResult is the outcome of a PIN check. It never says why a check failed.
type PINResult struct {
	Valid             bool `json:"valid"`
	AttemptsRemaining int  `json:"attempts_remaining"`
	AccountLocked     bool `json:"account_locked"`
}

// EncryptRequest and EncryptResult are the wire shapes of EncryptData.
type EncryptRequest struct {
	Plaintext []byte `json:"plaintext"`
	KeyID     string `json:"key_id"`
}

// EncryptResult carries the sealed envelope.
type EncryptResult struct {
	Ciphertext string `json:"ciphertext"`
}

// DecryptRequest and DecryptResult are the wire shapes of DecryptData.
type DecryptRequest struct {
	Ciphertext string `json:"ciphertext"`
	KeyID      string `json:"key_id"`
}

// DecryptResult carries the opened plaintext.
type DecryptResult struct {
	Plaintext []byte `json:"plaintext"`
}

// SignatureRequest asks whether Signature over Message was produced by the
// key controlling Address.
type SignatureRequest struct {
	Address   string `json:"address"`
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

// SignatureResult reports the verification outcome.
type SignatureResult struct {
	Verified   bool    `json:"verified"`
	Confidence float64 `json:"confidence"`
}

// TokenRequest asks for a reference token bound to an account and purpose.
type TokenRequest struct {
	AccountID     string `json:"account_id"`
	Purpose       string `json:"purpose"`
	ExpiryMinutes int    `json:"expiry_minutes"`
}

// ReferenceToken is an audit and idempotency handle for a single payment.
// It grants no authority.
type ReferenceToken struct {
	Value     string    `json:"token"`
	AccountID string    `json:"account_id"`
	Purpose   string    `json:"purpose"`
	ExpiresAt time.Time `json:"expires_at"`
}

// VerifyTokenRequest is the wire shape of VerifySecureToken.
type VerifyTokenRequest struct {
	Token     string `json:"token"`
	AccountID string `json:"account_id"`
	Purpose   string `json:"purpose"`
}

// VerifyTokenResult reports a successful token check. Failures travel as
// typed errors.
type VerifyTokenResult struct {
	Valid bool `json:"valid"`
}
