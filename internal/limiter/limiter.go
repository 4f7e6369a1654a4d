// Package limiter throttles login attempts per (email, client IP).
package limiter

import (
	"context"
	"crypto/sha256"
	"time"
)

// Defaults applied when configuration leaves a knob at zero.
const (
	DefaultMaxFails = 5
	DefaultWindow   = 15 * time.Minute
	DefaultBlockFor = 15 * time.Minute
)

// Limiter controls login attempts and temporary lockouts.
type Limiter interface {
	// Allow reports whether login is currently allowed and optional retry-after.
	Allow(ctx context.Context, email string, ipHash []byte) (bool, time.Duration, error)
	// Success resets counters after a successful login.
	Success(ctx context.Context, email string, ipHash []byte) error
	// Failure records a failed attempt; may place a temporary block.
	Failure(ctx context.Context, email string, ipHash []byte) (bool, time.Duration, error)
}

// Settings are the sliding-window parameters shared by every implementation.
type Settings struct {
	Window   time.Duration
	MaxFails int
	BlockFor time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.Window <= 0 {
		s.Window = DefaultWindow
	}
	if s.MaxFails <= 0 {
		s.MaxFails = DefaultMaxFails
	}
	if s.BlockFor <= 0 {
		s.BlockFor = DefaultBlockFor
	}
	return s
}

// HashIP returns a stable hash for an IP string to avoid storing raw addresses.
func HashIP(ip string) []byte {
	h := sha256.Sum256([]byte(ip))
	return h[:]
}
