package interfaces

import "time"

// SessionService gates star registration behind a signed challenge
type SessionService interface {
	CreateOrRefreshPendingSession(address string) (ts int64, validated bool)
	GetPendingSession(address string) (int64, bool)
	ApproveSession(address string) (int64, bool)
	GetValidatedSession(address string) (int64, bool)
	Evict(address string)
	PendingWindow() time.Duration
	ValidatedWindow() time.Duration
	Remaining(ts int64, window time.Duration) int64
}

// Authenticator builds and checks the wallet challenge
type Authenticator interface {
	GenerateChallenge(address string, timestamp int64) string
	Verify(address string, timestamp int64, signature string) bool
	ValidateAddress(address string) error
}
