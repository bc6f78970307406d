package transport

import (
	"math"
	"math/rand"
	"time"
)

// BackoffConfig shapes the wait between dial attempts.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration

	// Jitter scales each wait by a random factor in [0.5, 1.5).
	Jitter bool
}

func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       true,
	}
}

// NextBackoffDelay is the wait after the given failed attempt (1-based): InitialDelay
// grown by Multiplier per earlier attempt, capped at MaxDelay.
func NextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if cfg.InitialDelay <= 0 {
		return 0
	}
	growth := max(cfg.Multiplier, 1.0)
	delay := cfg.InitialDelay
	for i := 1; i < attempt; i++ {
		if cfg.MaxDelay > 0 && delay >= cfg.MaxDelay {
			break
		}
		next := float64(delay) * growth
		if next >= math.MaxInt64 || time.Duration(next) <= delay {
			break
		}
		delay = time.Duration(next)
	}
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	if cfg.Jitter && attempt > 1 {
		delay = spread(delay, rng)
	}
	return delay
}

// spread applies jitter; without a source it takes the low end of the range.
func spread(d time.Duration, rng *rand.Rand) time.Duration {
	factor := 0.5
	if rng != nil {
		factor += rng.Float64()
	}
	return time.Duration(float64(d) * factor)
}
