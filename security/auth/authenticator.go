package auth

import (
	"fmt"

	"github.com/mezonai/starchain/logx"
	"github.com/mezonai/starchain/monitoring"
	"github.com/mezonai/starchain/stringutil"
)

const challengeSuffix = "starRegistry"

const (
	SchemeBitcoin = "bitcoin"
	SchemeEd25519 = "ed25519"
)

// Verifier checks a wallet signature over a message. Implementations return an
// error only for input they cannot interpret at all.
//
//go:generate mockgen -source=authenticator.go -destination=mocks/verifier_mock.go -package=mocks Verifier
type Verifier interface {
	Scheme() string
	ValidateAddress(address string) error
	Verify(message, address, signature string) (bool, error)
}

// NewVerifier returns the verifier for a configured signature scheme.
func NewVerifier(scheme string) (Verifier, error) {
	switch scheme {
	case SchemeBitcoin, "":
		return NewBitcoinVerifier(nil), nil
	case SchemeEd25519:
		return NewEd25519Verifier(), nil
	default:
		return nil, fmt.Errorf("unsupported signature scheme: %s", scheme)
	}
}

// Authenticator builds the challenge a wallet must sign and checks the answer.
type Authenticator struct {
	verifier Verifier
}

func NewAuthenticator(verifier Verifier) *Authenticator {
	return &Authenticator{verifier: verifier}
}

// GenerateChallenge is reproducible by the client from the address and the
// timestamp returned with the pending session.
func GenerateChallenge(address string, timestamp int64) string {
	return fmt.Sprintf("%s:%d:%s", address, timestamp, challengeSuffix)
}

func (a *Authenticator) GenerateChallenge(address string, timestamp int64) string {
	return GenerateChallenge(address, timestamp)
}

func (a *Authenticator) ValidateAddress(address string) error {
	return a.verifier.ValidateAddress(address)
}

func (a *Authenticator) Scheme() string {
	return a.verifier.Scheme()
}

// Verify recomputes the challenge and checks signature against it. Any error or
// panic raised by the verifier counts as a failed verification.
func (a *Authenticator) Verify(address string, timestamp int64, signature string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logx.Error("AUTH", "Verifier panicked for ", stringutil.ShortenLog(address), ": ", r)
			ok = false
		}
		monitoring.RecordSignatureCheck(ok)
	}()

	message := GenerateChallenge(address, timestamp)
	valid, err := a.verifier.Verify(message, address, signature)
	if err != nil {
		logx.Warn("AUTH", "Signature check failed for ", stringutil.ShortenLog(address), ": ", err)
		return false
	}
	return valid
}
