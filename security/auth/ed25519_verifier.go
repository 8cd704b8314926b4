package auth

import (
	"crypto/ed25519"
	"fmt"

	"github.com/mezonai/starchain/common"
)

// Ed25519Verifier accepts base58 public keys as addresses and base58 signatures,
// the key format used by mezon wallets.
type Ed25519Verifier struct{}

func NewEd25519Verifier() *Ed25519Verifier {
	return &Ed25519Verifier{}
}

func (v *Ed25519Verifier) Scheme() string {
	return SchemeEd25519
}

func (v *Ed25519Verifier) ValidateAddress(address string) error {
	_, err := decodePublicKey(address)
	return err
}

func decodePublicKey(address string) (ed25519.PublicKey, error) {
	raw, err := common.DecodeBase58ToBytes(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: public key must be %d bytes, got %d", ErrInvalidAddress, ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

func (v *Ed25519Verifier) Verify(message, address, signature string) (bool, error) {
	pub, err := decodePublicKey(address)
	if err != nil {
		return false, err
	}

	sig, err := common.DecodeBase58ToBytes(signature)
	if err != nil {
		return false, fmt.Errorf("malformed base58 signature: %w", err)
	}
	if len(sig) != ed25519.SignatureSize {
		return false, nil
	}
	return ed25519.Verify(pub, []byte(message), sig), nil
}

// SignEd25519 signs message with a 32-byte seed and returns the base58 signature
// together with the signer's address.
func SignEd25519(seed []byte, message string) (signature, address string, err error) {
	if len(seed) != ed25519.SeedSize {
		return "", "", fmt.Errorf("unsupported private key length %d", len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return common.EncodeBytesToBase58(ed25519.Sign(priv, []byte(message))), common.EncodeBytesToBase58(pub), nil
}
