package client

import (
	"crypto/ed25519"
	"errors"

	"github.com/mr-tron/base58"
)

var ErrUnsupportedKey = errors.New("crypto: unsupported private key length")

// Ed25519Wallet signs challenges with an Ed25519 seed; its address is the
// base58 public key.
type Ed25519Wallet struct {
	priv ed25519.PrivateKey
}

func NewEd25519Wallet(seed []byte) (*Ed25519Wallet, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, ErrUnsupportedKey
	}
	return &Ed25519Wallet{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

func (w *Ed25519Wallet) Address() string {
	return base58.Encode(w.priv.Public().(ed25519.PublicKey))
}

func (w *Ed25519Wallet) Sign(message string) (string, error) {
	return base58.Encode(ed25519.Sign(w.priv, []byte(message))), nil
}

func Verify(address, message, sig string) bool {
	decoded, err := base58.Decode(address)
	if err != nil || len(decoded) != ed25519.PublicKeySize {
		return false
	}
	signature, err := base58.Decode(sig)
	if err != nil {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(decoded), []byte(message), signature)
}
