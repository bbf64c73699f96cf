// Command wallet-signer produces wallet signed-message proofs for local
// testing of the login flow. It prints the address for a key and, given a
// challenge message, the base64 signature the gateway expects.
//
//	wallet-signer -new
//	wallet-signer -wif <key> -message "$(cat challenge.txt)"
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/phrazzld/vaultcore/internal/security"
)

func main() {
	newKey := flag.Bool("new", false, "generate a fresh key and print its WIF")
	wifFlag := flag.String("wif", "", "WIF-encoded private key")
	network := flag.String("network", "mainnet", "mainnet, testnet3, regtest or signet")
	segwit := flag.Bool("segwit", false, "print the P2WPKH address instead of P2PKH")
	message := flag.String("message", "", "challenge message to sign")
	flag.Parse()

	if err := run(*newKey, *wifFlag, *network, *segwit, *message); err != nil {
		fmt.Fprintf(os.Stderr, "wallet-signer: %v\n", err)
		os.Exit(1)
	}
}

func run(newKey bool, wifStr, network string, segwit bool, message string) error {
	params, err := security.ParamsForNetwork(network)
	if err != nil {
		return err
	}

	var wif *btcutil.WIF
	switch {
	case newKey:
		key, err := btcec.NewPrivateKey()
		if err != nil {
			return fmt.Errorf("generate key: %w", err)
		}
		if wif, err = btcutil.NewWIF(key, params, true); err != nil {
			return fmt.Errorf("encode key: %w", err)
		}
		fmt.Printf("WIF:       %s\n", wif.String())
	case wifStr != "":
		if wif, err = btcutil.DecodeWIF(wifStr); err != nil {
			return fmt.Errorf("decode WIF: %w", err)
		}
	default:
		return fmt.Errorf("either -new or -wif is required")
	}

	address, err := addressFor(wif, params, segwit)
	if err != nil {
		return err
	}
	fmt.Printf("Address:   %s\n", address)

	if message == "" {
		return nil
	}
	sig, err := security.SignMessage(wif.PrivKey, message, wif.CompressPubKey)
	if err != nil {
		return err
	}
	fmt.Printf("Signature: %s\n", sig)
	return nil
}
