package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	envelopeVersion = 1
	keySize         = chacha20poly1305.KeySize
	nonceSize       = chacha20poly1305.NonceSizeX
	tagSize         = chacha20poly1305.Overhead
	wrappedKeySize  = keySize + tagSize
	maxKeyIDLength  = 64
)

// Keyring holds key-encryption keys by id. Each EncryptData call draws a
// fresh data key, seals the payload with it and wraps the data key with the
// named KEK, so rotating a KEK never requires re-deriving user secrets.
type Keyring struct {
	keks map[string][]byte
	rand io.Reader
}

// NewKeyring derives a KEK for every id in derivedIDs from master with
// HKDF-SHA256, then adds the explicit keys, which win on conflict.
func NewKeyring(master []byte, derivedIDs []string, explicit map[string][]byte) (*Keyring, error) {
	if len(master) < keySize {
		return nil, fmt.Errorf("%w: master key must be at least %d bytes", ErrInvalidRequest, keySize)
	}

	keks := make(map[string][]byte, len(derivedIDs)+len(explicit))
	for _, id := range derivedIDs {
		if err := checkKeyID(id); err != nil {
			return nil, err
		}
		kek := make([]byte, keySize)
		r := hkdf.New(sha256.New, master, nil, []byte("vaultcore/kek/"+id))
		if _, err := io.ReadFull(r, kek); err != nil {
			return nil, fmt.Errorf("derive key %q: %w", id, err)
		}
		keks[id] = kek
	}
	for id, key := range explicit {
		if err := checkKeyID(id); err != nil {
			return nil, err
		}
		if len(key) != keySize {
			return nil, fmt.Errorf("%w: key %q must be %d bytes", ErrInvalidRequest, id, keySize)
		}
		keks[id] = append([]byte(nil), key...)
	}

	return &Keyring{keks: keks, rand: rand.Reader}, nil
}

func checkKeyID(id string) error {
	if id == "" || len(id) > maxKeyIDLength {
		return fmt.Errorf("%w: key id must be 1-%d bytes", ErrInvalidRequest, maxKeyIDLength)
	}
	return nil
}

// Has reports whether keyID is configured.
func (k *Keyring) Has(keyID string) bool {
	_, ok := k.keks[keyID]
	return ok
}

// Encrypt seals plaintext under keyID and returns a base64 envelope:
//
//	version | len(keyID) | keyID | wrapNonce | wrappedDataKey | dataNonce | ciphertext
func (k *Keyring) Encrypt(plaintext []byte, keyID string) (string, error) {
	kek, ok := k.keks[keyID]
	if !ok {
		return "", ErrUnknownKey
	}

	dataKey := make([]byte, keySize)
	wrapNonce := make([]byte, nonceSize)
	dataNonce := make([]byte, nonceSize)
	for _, b := range [][]byte{dataKey, wrapNonce, dataNonce} {
		if _, err := io.ReadFull(k.rand, b); err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
	}

	header := envelopeHeader(keyID)

	kekAEAD, err := chacha20poly1305.NewX(kek)
	if err != nil {
		return "", fmt.Errorf("init kek cipher: %w", err)
	}
	wrapped := kekAEAD.Seal(nil, wrapNonce, dataKey, header)

	dataAEAD, err := chacha20poly1305.NewX(dataKey)
	if err != nil {
		return "", fmt.Errorf("init data cipher: %w", err)
	}
	sealed := dataAEAD.Seal(nil, dataNonce, plaintext, header)

	out := make([]byte, 0, len(header)+2*nonceSize+len(wrapped)+len(sealed))
	out = append(out, header...)
	out = append(out, wrapNonce...)
	out = append(out, wrapped...)
	out = append(out, dataNonce...)
	out = append(out, sealed...)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt opens an envelope produced by Encrypt under the same keyID.
func (k *Keyring) Decrypt(envelope string, keyID string) ([]byte, error) {
	kek, ok := k.keks[keyID]
	if !ok {
		return nil, ErrUnknownKey
	}

	raw, err := base64.StdEncoding.DecodeString(envelope)
	if err != nil {
		return nil, ErrMalformedCiphertext
	}
	if len(raw) < 2 || raw[0] != envelopeVersion {
		return nil, ErrMalformedCiphertext
	}

	idLen := int(raw[1])
	headerLen := 2 + idLen
	minLen := headerLen + nonceSize + wrappedKeySize + nonceSize + tagSize
	if len(raw) < minLen {
		return nil, ErrMalformedCiphertext
	}
	if string(raw[2:headerLen]) != keyID {
		return nil, ErrDecryptFailed
	}

	header := raw[:headerLen]
	rest := raw[headerLen:]
	wrapNonce, rest := rest[:nonceSize], rest[nonceSize:]
	wrapped, rest := rest[:wrappedKeySize], rest[wrappedKeySize:]
	dataNonce, sealed := rest[:nonceSize], rest[nonceSize:]

	kekAEAD, err := chacha20poly1305.NewX(kek)
	if err != nil {
		return nil, fmt.Errorf("init kek cipher: %w", err)
	}
	dataKey, err := kekAEAD.Open(nil, wrapNonce, wrapped, header)
	if err != nil {
		return nil, ErrDecryptFailed
	}

	dataAEAD, err := chacha20poly1305.NewX(dataKey)
	if err != nil {
		return nil, fmt.Errorf("init data cipher: %w", err)
	}
	plaintext, err := dataAEAD.Open(nil, dataNonce, sealed, header)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}

func envelopeHeader(keyID string) []byte {
	h := make([]byte, 0, 2+len(keyID))
	h = append(h, envelopeVersion, byte(len(keyID)))
	return append(h, keyID...)
}
