package eth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/AlexNa-Holdings/web3stake/metrics"
	"github.com/rs/zerolog/log"
)

// Rate limiter of one RPC endpoint with auto-tuning
type rateLimiter struct {
	maxTokens    int
	lastSuccess  time.Time // last successful call without 429
	backoffUntil time.Time // don't make any calls until this time
	autoMode     bool      // true = auto-tune rate, false = fixed rate
	lastCallTime time.Time // when last RPC call was made
	backoff      time.Duration
	onChange     func(rate int) // called with the new rate in auto mode
	mu           sync.Mutex
}

const (
	initialRateLimit = 5                // start with 5 calls/sec (conservative for cold start)
	minRateLimit     = 1                // minimum 1 call/sec
	maxRateLimit     = 100              // maximum 100 calls/sec
	increaseInterval = 60 * time.Second // increase rate after 60 seconds without errors
	increasePercent  = 10               // increase by 10%
	decreasePercent  = 50               // decrease by 50% on 429 error
	rateLimitBackoff = 5 * time.Second
)

func newRateLimiter(rate int, auto bool) *rateLimiter {
	autoMode := auto || rate == 0 // auto if explicitly set or if rate is 0/not set
	startRate := initialRateLimit
	if rate > 0 {
		startRate = rate
	}

	log.Debug().Int("rate", startRate).Bool("auto", autoMode).Msg("RPC rate limiter initialized")
	metrics.RPCRateLimit.Set(float64(startRate))

	return &rateLimiter{
		maxTokens:   startRate,
		lastSuccess: time.Now(),
		autoMode:    autoMode,
		backoff:     rateLimitBackoff,
	}
}

// waitForToken blocks until a call is allowed.
// At N calls/sec there is at least 1/N seconds between calls.
func (rl *rateLimiter) waitForToken(ctx context.Context) error {
	for {
		rl.mu.Lock()

		now := time.Now()

		var wait time.Duration
		if now.Before(rl.backoffUntil) {
			wait = rl.backoffUntil.Sub(now)
		} else if since := now.Sub(rl.lastCallTime); since < time.Second/time.Duration(rl.maxTokens) {
			wait = time.Second/time.Duration(rl.maxTokens) - since
		}

		if wait > 0 {
			rl.mu.Unlock()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue // re-check everything after waiting
		}

		// no errors for a while, speed up (auto mode only)
		if rl.autoMode && time.Since(rl.lastSuccess) > increaseInterval && rl.maxTokens < maxRateLimit {
			newMax := rl.maxTokens + (rl.maxTokens * increasePercent / 100)
			if newMax == rl.maxTokens {
				newMax++
			}
			if newMax > maxRateLimit {
				newMax = maxRateLimit
			}
			log.Debug().Int("oldRate", rl.maxTokens).Int("newRate", newMax).Msg("Rate limit increased (auto)")
			rl.setRate(newMax)
			rl.lastSuccess = time.Now()
		}

		rl.lastCallTime = now
		rl.mu.Unlock()

		log.Trace().Int("rate", rl.rate()).Str("time", now.Format("15:04:05.000")).Msg("RPC call acquired")
		return nil
	}
}

// onRateLimitError reduces the rate and sets a backoff after a 429
func (rl *rateLimiter) onRateLimitError() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	log.Warn().Int("rate", rl.maxTokens).
		Str("sinceLast", time.Since(rl.lastCallTime).String()).
		Msg("429 rate limit error")

	// give the provider time to reset its counters
	rl.backoffUntil = time.Now().Add(rl.backoff)

	if rl.autoMode {
		newMax := rl.maxTokens - (rl.maxTokens * decreasePercent / 100)
		if newMax < minRateLimit {
			newMax = minRateLimit
		}
		if newMax < rl.maxTokens {
			log.Debug().Int("oldRate", rl.maxTokens).Int("newRate", newMax).Msg("Rate limit decreased due to 429 error (auto)")
			rl.setRate(newMax)
		}
	}
}

func (rl *rateLimiter) onSuccess() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.lastSuccess = time.Now()
}

// setRate must be called with mu held
func (rl *rateLimiter) setRate(rate int) {
	rl.maxTokens = rate
	metrics.RPCRateLimit.Set(float64(rate))
	if rl.onChange != nil {
		go rl.onChange(rate) // persist in background
	}
}

func (rl *rateLimiter) rate() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.maxTokens
}

// isRateLimitError checks if an error is a 429 rate limit error
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "429") || strings.Contains(errStr, "Too Many Requests") || strings.Contains(errStr, "rate limit")
}

// isGatewayError checks if an error is a 502/503/504 gateway error
func isGatewayError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "502") || strings.Contains(errStr, "503") || strings.Contains(errStr, "504") ||
		strings.Contains(errStr, "Gateway") || strings.Contains(errStr, "Service Unavailable")
}
