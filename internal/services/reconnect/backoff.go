package reconnect

import (
	"math"
	"math/rand"
	"time"
)

// BackoffConfig paces rejoin attempts after a relay disruption.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
	// MaxAttempts caps rejoin attempts per disruption. Zero retries forever.
	MaxAttempts int
}

// DefaultBackoff returns the backoff used when none is configured.
func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       true,
		MaxAttempts:  8,
	}
}

// NextBackoffDelay returns how long the reconnector sleeps after the Nth
// failed rejoin (1-based). The first retry waits InitialDelay, later ones grow
// by Multiplier up to MaxDelay. With Jitter the grown delay is scaled by a
// factor drawn from [0.5, 1.5) so two peers dropped together do not retry in
// lockstep.
func NextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if attempt <= 1 || cfg.InitialDelay <= 0 {
		return max(cfg.InitialDelay, 0)
	}
	growth := math.Max(cfg.Multiplier, 1)
	d := float64(cfg.InitialDelay) * math.Pow(growth, float64(attempt-1))
	if cfg.MaxDelay > 0 {
		d = math.Min(d, float64(cfg.MaxDelay))
	}
	if cfg.Jitter && rng != nil {
		d *= 0.5 + rng.Float64()
	}
	return time.Duration(d)
}
