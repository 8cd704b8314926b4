package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/mezonai/starchain/exception"
	"github.com/mezonai/starchain/logx"
)

type RateLimiterConfig struct {
	MaxRequests     int
	WindowSize      time.Duration
	CleanupInterval time.Duration
}

func DefaultConfig() *RateLimiterConfig {
	return &RateLimiterConfig{
		MaxRequests:     20,
		WindowSize:      time.Second,
		CleanupInterval: 5 * time.Minute, // cleanup every 5 minutes
	}
}

type RateLimiterData struct {
	mu           sync.Mutex
	currentCount int
	windowStart  time.Time
}

// RateLimiter is a fixed-window counter per key (client IP or wallet address).
type RateLimiter struct {
	config      *RateLimiterConfig
	requests    map[string]*RateLimiterData
	mu          sync.Mutex
	now         func() time.Time
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

func NewRateLimiter(config *RateLimiterConfig) *RateLimiter {
	if config == nil {
		config = DefaultConfig()
	}

	rl := &RateLimiter{
		config:      config,
		requests:    make(map[string]*RateLimiterData),
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}

	exception.SafeGo("RateLimiterCleanup", rl.cleanupExpiredEntries)

	return rl
}

// AllowWithContext checks if a request from the given key is allowed with context
func (rl *RateLimiter) AllowWithContext(ctx context.Context, key string) bool {
	if ctx.Err() != nil {
		return false
	}
	now := rl.now()

	rl.mu.Lock()
	data, exists := rl.requests[key]
	if !exists {
		data = &RateLimiterData{windowStart: now}
		rl.requests[key] = data
	}
	rl.mu.Unlock()

	data.mu.Lock()
	defer data.mu.Unlock()

	if now.Sub(data.windowStart) >= rl.config.WindowSize {
		data.currentCount = 0
		data.windowStart = now
	}

	if data.currentCount >= rl.config.MaxRequests {
		return false
	}

	data.currentCount++
	return true
}

func (rl *RateLimiter) cleanupExpiredEntries() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanup drops keys whose window ended at least one window ago.
func (rl *RateLimiter) cleanup() int {
	cutoff := rl.now().Add(-2 * rl.config.WindowSize)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for key, data := range rl.requests {
		data.mu.Lock()
		stale := data.windowStart.Before(cutoff)
		data.mu.Unlock()
		if stale {
			delete(rl.requests, key)
			removed++
		}
	}
	return removed
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

// GlobalRateLimiter applies separate limits per client IP and per wallet address.
type GlobalRateLimiter struct {
	ipLimiter     *RateLimiter
	walletLimiter *RateLimiter
}

type GlobalRateLimiterConfig struct {
	IPConfig     *RateLimiterConfig
	WalletConfig *RateLimiterConfig
}

func DefaultGlobalConfig() *GlobalRateLimiterConfig {
	return &GlobalRateLimiterConfig{
		IPConfig: &RateLimiterConfig{
			MaxRequests:     20,
			WindowSize:      time.Second,
			CleanupInterval: 5 * time.Minute,
		},
		WalletConfig: &RateLimiterConfig{
			MaxRequests:     5,
			WindowSize:      time.Second,
			CleanupInterval: 5 * time.Minute,
		},
	}
}

func NewGlobalRateLimiter(config *GlobalRateLimiterConfig) *GlobalRateLimiter {
	if config == nil {
		config = DefaultGlobalConfig()
	}

	return &GlobalRateLimiter{
		ipLimiter:     NewRateLimiter(config.IPConfig),
		walletLimiter: NewRateLimiter(config.WalletConfig),
	}
}

func (grl *GlobalRateLimiter) AllowIPWithContext(ctx context.Context, ip string) bool {
	if !grl.ipLimiter.AllowWithContext(ctx, ip) {
		logx.Warn("SECURITY", "Rate limit exceeded for IP: ", ip)
		return false
	}
	return true
}

func (grl *GlobalRateLimiter) AllowWalletWithContext(ctx context.Context, wallet string) bool {
	if !grl.walletLimiter.AllowWithContext(ctx, wallet) {
		logx.Warn("SECURITY", "Rate limit exceeded for wallet: ", wallet)
		return false
	}
	return true
}

func (grl *GlobalRateLimiter) Stop() {
	grl.ipLimiter.Stop()
	grl.walletLimiter.Stop()
}
