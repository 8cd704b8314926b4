package mempool

import (
	"sync"
	"time"

	"github.com/mezonai/starchain/exception"
	"github.com/mezonai/starchain/logx"
	"github.com/mezonai/starchain/monitoring"
)

const (
	DefaultPendingWindow   = 300 * time.Second
	DefaultValidatedWindow = 1800 * time.Second
	DefaultSweepInterval   = 10 * time.Second
)

type SessionConfig struct {
	PendingWindow   time.Duration
	ValidatedWindow time.Duration
	SweepInterval   time.Duration
	// Now defaults to time.Now
	Now func() time.Time
}

func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		PendingWindow:   DefaultPendingWindow,
		ValidatedWindow: DefaultValidatedWindow,
		SweepInterval:   DefaultSweepInterval,
		Now:             time.Now,
	}
}

type sessionMap struct {
	mu      sync.Mutex
	entries map[string]int64
}

// SessionStore tracks which addresses have requested a challenge (pending) and
// which have proven ownership and may write one star (validated). An address
// lives in at most one of the two maps. Timestamps are unix seconds.
//
// Expiry is computed on every read; the background sweep only frees memory.
// When both maps are needed, pending is locked before validated.
type SessionStore struct {
	config    *SessionConfig
	pending   sessionMap
	validated sessionMap

	startOnce sync.Once
	stopOnce  sync.Once
	stopSweep chan struct{}
}

// NewSessionStore creates a store; zero fields of config fall back to the defaults.
func NewSessionStore(config *SessionConfig) *SessionStore {
	cfg := DefaultSessionConfig()
	if config != nil {
		if config.PendingWindow > 0 {
			cfg.PendingWindow = config.PendingWindow
		}
		if config.ValidatedWindow > 0 {
			cfg.ValidatedWindow = config.ValidatedWindow
		}
		if config.SweepInterval > 0 {
			cfg.SweepInterval = config.SweepInterval
		}
		if config.Now != nil {
			cfg.Now = config.Now
		}
	}

	return &SessionStore{
		config:    cfg,
		pending:   sessionMap{entries: make(map[string]int64)},
		validated: sessionMap{entries: make(map[string]int64)},
		stopSweep: make(chan struct{}),
	}
}

func (s *SessionStore) PendingWindow() time.Duration {
	return s.config.PendingWindow
}

func (s *SessionStore) ValidatedWindow() time.Duration {
	return s.config.ValidatedWindow
}

func (s *SessionStore) now() int64 {
	return s.config.Now().Unix()
}

func expired(now, ts int64, window time.Duration) bool {
	return now-ts > int64(window/time.Second)
}

// Remaining returns how many seconds of window are left for a session stamped at ts.
func (s *SessionStore) Remaining(ts int64, window time.Duration) int64 {
	left := int64(window/time.Second) - (s.now() - ts)
	if left < 0 {
		return 0
	}
	return left
}

// CreateOrRefreshPendingSession returns the timestamp of the live pending entry for
// address, creating it if needed. Repeated requests do not extend the window.
// A live validated entry is left untouched: its timestamp is returned with
// validated set and no pending entry is created.
func (s *SessionStore) CreateOrRefreshPendingSession(address string) (ts int64, validated bool) {
	now := s.now()

	s.pending.mu.Lock()
	defer s.pending.mu.Unlock()
	s.validated.mu.Lock()
	defer s.validated.mu.Unlock()

	if vts, ok := s.validated.entries[address]; ok {
		if !expired(now, vts, s.config.ValidatedWindow) {
			return vts, true
		}
		delete(s.validated.entries, address)
	}

	if ts, ok := s.pending.entries[address]; ok && !expired(now, ts, s.config.PendingWindow) {
		return ts, false
	}
	s.pending.entries[address] = now
	return now, false
}

// GetPendingSession returns the pending timestamp, or false if absent or expired.
func (s *SessionStore) GetPendingSession(address string) (int64, bool) {
	return s.get(&s.pending, address, s.config.PendingWindow)
}

// GetValidatedSession returns the validated timestamp, or false if absent or expired.
func (s *SessionStore) GetValidatedSession(address string) (int64, bool) {
	return s.get(&s.validated, address, s.config.ValidatedWindow)
}

func (s *SessionStore) get(m *sessionMap, address string, window time.Duration) (int64, bool) {
	now := s.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	ts, ok := m.entries[address]
	if !ok || expired(now, ts, window) {
		return 0, false
	}
	return ts, true
}

// ApproveSession moves a live pending entry to validated, stamped with the current time.
func (s *SessionStore) ApproveSession(address string) (int64, bool) {
	now := s.now()

	s.pending.mu.Lock()
	defer s.pending.mu.Unlock()

	ts, ok := s.pending.entries[address]
	if !ok {
		return 0, false
	}
	if expired(now, ts, s.config.PendingWindow) {
		delete(s.pending.entries, address)
		return 0, false
	}

	s.validated.mu.Lock()
	defer s.validated.mu.Unlock()

	delete(s.pending.entries, address)
	s.validated.entries[address] = now
	logx.Debug("SESSION", "Approved session for ", address)
	return now, true
}

// Evict removes the validated entry of address so it cannot write a second star.
func (s *SessionStore) Evict(address string) {
	s.validated.mu.Lock()
	defer s.validated.mu.Unlock()
	delete(s.validated.entries, address)
}

// Start launches the background sweep. Calling it more than once has no effect.
func (s *SessionStore) Start() {
	s.startOnce.Do(func() {
		exception.SafeGo("SessionSweep", s.sweepLoop)
	})
}

func (s *SessionStore) sweepLoop() {
	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.safeSweep()
		case <-s.stopSweep:
			return
		}
	}
}

// safeSweep keeps the loop alive when one pass panics.
func (s *SessionStore) safeSweep() {
	defer exception.Recover("SessionSweep")
	s.Sweep()
}

// Sweep deletes expired entries from both maps and returns how many were removed.
func (s *SessionStore) Sweep() (pendingRemoved, validatedRemoved int) {
	now := s.now()
	pendingRemoved, pendingLeft := sweepMap(&s.pending, now, s.config.PendingWindow)
	validatedRemoved, validatedLeft := sweepMap(&s.validated, now, s.config.ValidatedWindow)

	monitoring.SetSessionCount("pending", pendingLeft)
	monitoring.SetSessionCount("validated", validatedLeft)
	if pendingRemoved+validatedRemoved > 0 {
		logx.Debug("SESSION", "Swept ", pendingRemoved, " pending and ", validatedRemoved, " validated sessions")
	}
	return pendingRemoved, validatedRemoved
}

func sweepMap(m *sessionMap, now int64, window time.Duration) (removed, left int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for address, ts := range m.entries {
		if expired(now, ts, window) {
			delete(m.entries, address)
			removed++
		}
	}
	return removed, len(m.entries)
}

// Len returns the number of stored entries, expired or not.
func (s *SessionStore) Len() (pending, validated int) {
	s.pending.mu.Lock()
	pending = len(s.pending.entries)
	s.pending.mu.Unlock()

	s.validated.mu.Lock()
	validated = len(s.validated.entries)
	s.validated.mu.Unlock()
	return pending, validated
}

// Shutdown stops the background sweep. It is safe to call more than once.
func (s *SessionStore) Shutdown() {
	s.stopOnce.Do(func() {
		close(s.stopSweep)
		logx.Info("SESSION", "Session sweep stopped")
	})
}
