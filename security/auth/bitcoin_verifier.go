package auth

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

const bitcoinMessageMagic = "Bitcoin Signed Message:\n"

var ErrInvalidAddress = errors.New("auth: invalid address")

// BitcoinVerifier checks wallet "signmessage" signatures: a base64 compact
// recoverable secp256k1 signature whose recovered key hashes to a P2PKH address.
type BitcoinVerifier struct {
	params *chaincfg.Params
}

// NewBitcoinVerifier uses mainnet parameters when params is nil.
func NewBitcoinVerifier(params *chaincfg.Params) *BitcoinVerifier {
	if params == nil {
		params = &chaincfg.MainNetParams
	}
	return &BitcoinVerifier{params: params}
}

func (v *BitcoinVerifier) Scheme() string {
	return SchemeBitcoin
}

// BitcoinMessageHash is the double SHA-256 of the magic-prefixed message.
func BitcoinMessageHash(message string) []byte {
	var buf bytes.Buffer
	_ = wire.WriteVarString(&buf, 0, bitcoinMessageMagic)
	_ = wire.WriteVarString(&buf, 0, message)
	return chainhash.DoubleHashB(buf.Bytes())
}

func (v *BitcoinVerifier) ValidateAddress(address string) error {
	addr, err := btcutil.DecodeAddress(address, v.params)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if _, ok := addr.(*btcutil.AddressPubKeyHash); !ok {
		return fmt.Errorf("%w: only pay-to-pubkey-hash addresses can sign messages", ErrInvalidAddress)
	}
	if !addr.IsForNet(v.params) {
		return fmt.Errorf("%w: address is not for %s", ErrInvalidAddress, v.params.Name)
	}
	return nil
}

func (v *BitcoinVerifier) Verify(message, address, signature string) (bool, error) {
	if err := v.ValidateAddress(address); err != nil {
		return false, err
	}

	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false, fmt.Errorf("malformed base64 signature: %w", err)
	}

	pub, compressed, err := ecdsa.RecoverCompact(sig, BitcoinMessageHash(message))
	if err != nil {
		return false, fmt.Errorf("failed to recover public key: %w", err)
	}

	var serialized []byte
	if compressed {
		serialized = pub.SerializeCompressed()
	} else {
		serialized = pub.SerializeUncompressed()
	}

	recovered, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(serialized), v.params)
	if err != nil {
		return false, err
	}
	return recovered.EncodeAddress() == address, nil
}
