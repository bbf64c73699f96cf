package main

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

// addressFor encodes the address the gateway will check the signature
// against.
func addressFor(wif *btcutil.WIF, params *chaincfg.Params, segwit bool) (string, error) {
	hash := btcutil.Hash160(wif.SerializePubKey())
	if segwit {
		if !wif.CompressPubKey {
			return "", fmt.Errorf("segwit addresses require a compressed key")
		}
		addr, err := btcutil.NewAddressWitnessPubKeyHash(hash, params)
		if err != nil {
			return "", fmt.Errorf("encode address: %w", err)
		}
		return addr.EncodeAddress(), nil
	}
	addr, err := btcutil.NewAddressPubKeyHash(hash, params)
	if err != nil {
		return "", fmt.Errorf("encode address: %w", err)
	}
	return addr.EncodeAddress(), nil
}
