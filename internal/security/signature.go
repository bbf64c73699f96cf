package security

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

const (
	signedMessageMagic  = "Bitcoin Signed Message:\n"
	compactSignatureLen = 65
)

// ParamsForNetwork resolves a configured network name.
func ParamsForNetwork(name string) (*chaincfg.Params, error) {
	switch strings.ToLower(name) {
	case "mainnet", "":
		return &chaincfg.MainNetParams, nil
	case "testnet3", "testnet":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	default:
		return nil, fmt.Errorf("%w: unknown network %q", ErrInvalidRequest, name)
	}
}

// SignatureVerifier checks wallet signed-message proofs for P2PKH and P2WPKH
// addresses on one network.
type SignatureVerifier struct {
	params *chaincfg.Params
}

// NewSignatureVerifier creates a verifier for params.
func NewSignatureVerifier(params *chaincfg.Params) *SignatureVerifier {
	return &SignatureVerifier{params: params}
}

// Verify recovers the signing key from a compact signature and checks that it
// controls req.Address. A signature that does not verify is a normal
// Verified=false result; only an unusable address is an error.
func (v *SignatureVerifier) Verify(req SignatureRequest) (SignatureResult, error) {
	addr, err := btcutil.DecodeAddress(strings.TrimSpace(req.Address), v.params)
	if err != nil || !addr.IsForNet(v.params) {
		return SignatureResult{}, fmt.Errorf("%w: address is not valid for this network", ErrInvalidRequest)
	}

	sig, err := base64.StdEncoding.DecodeString(strings.TrimSpace(req.Signature))
	if err != nil || len(sig) != compactSignatureLen {
		return SignatureResult{}, nil
	}

	pub, compressed, err := ecdsa.RecoverCompact(sig, messageHash(req.Message))
	if err != nil {
		return SignatureResult{}, nil
	}

	var serialized []byte
	if compressed {
		serialized = pub.SerializeCompressed()
	} else {
		serialized = pub.SerializeUncompressed()
	}
	keyHash := btcutil.Hash160(serialized)

	var derived btcutil.Address
	switch addr.(type) {
	case *btcutil.AddressPubKeyHash:
		derived, err = btcutil.NewAddressPubKeyHash(keyHash, v.params)
	case *btcutil.AddressWitnessPubKeyHash:
		if !compressed {
			return SignatureResult{}, nil
		}
		derived, err = btcutil.NewAddressWitnessPubKeyHash(keyHash, v.params)
	default:
		return SignatureResult{}, fmt.Errorf("%w: unsupported address type", ErrInvalidRequest)
	}
	if err != nil {
		return SignatureResult{}, nil
	}

	if derived.EncodeAddress() != addr.EncodeAddress() {
		return SignatureResult{}, nil
	}
	return SignatureResult{Verified: true, Confidence: 1.0}, nil
}

// SignMessage produces the base64 compact signature a wallet would return for
// message. Used by the wallet-signer tool and tests.
func SignMessage(key *btcec.PrivateKey, message string, compressed bool) (string, error) {
	sig, err := ecdsa.SignCompact(key, messageHash(message), compressed)
	if err != nil {
		return "", fmt.Errorf("sign message: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// messageHash is the double-SHA256 of the magic-prefixed message, each part
// length-prefixed as a varint string.
func messageHash(message string) []byte {
	var buf bytes.Buffer
	// bytes.Buffer writes never fail.
	_ = wire.WriteVarString(&buf, 0, signedMessageMagic)
	_ = wire.WriteVarString(&buf, 0, message)
	return chainhash.DoubleHashB(buf.Bytes())
}
