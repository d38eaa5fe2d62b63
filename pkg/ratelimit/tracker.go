package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// ErrRateLimited is returned by Allow while the quota is exhausted.
var ErrRateLimited = errors.New("rate limit exhausted")

// DefaultThrottleDelay is the pause applied to each request while the quota is low.
const DefaultThrottleDelay = 500 * time.Millisecond

// Prometheus metrics for rate limit tracking.
var (
	rateLimitRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "push_rate_limit_remaining",
		Help: "Requests remaining in the current push API rate limit window",
	})

	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "push_rate_limit_blocks_total",
		Help: "Total number of requests refused locally because the quota was exhausted",
	})

	rateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "push_rate_limit_throttles_total",
		Help: "Total number of requests delayed because the quota was low",
	})
)

// Tracker keeps the last observed quota and gates requests on it.
type Tracker struct {
	mu            sync.Mutex
	state         State
	logger        zerolog.Logger
	throttleDelay time.Duration
	now           func() time.Time
}

// NewTracker creates a tracker with an unknown quota.
func NewTracker(logger zerolog.Logger) *Tracker {
	return &Tracker{
		state:         State{Remaining: -1},
		logger:        logger,
		throttleDelay: DefaultThrottleDelay,
		now:           time.Now,
	}
}

// SetThrottleDelay overrides the delay applied while throttling.
func (t *Tracker) SetThrottleDelay(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.throttleDelay = d
}

// State returns a copy of the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// UpdateFromHeaders records the quota reported by a response.
// Responses without rate limit headers leave the state untouched.
func (t *Tracker) UpdateFromHeaders(statusCode int, headers http.Header) error {
	now := t.now()

	// 429 with Retry-After: the window is exhausted until then.
	if statusCode == http.StatusTooManyRequests {
		if retryStr := headers.Get(HeaderRetryAfter); retryStr != "" {
			retryAt, err := parseRetryAfter(retryStr, now)
			if err != nil {
				return err
			}
			t.mu.Lock()
			t.state.Remaining = 0
			t.state.ResetAt = retryAt
			t.state.LastUpdate = now
			t.mu.Unlock()

			rateLimitRemaining.Set(0)
			t.logger.Warn().
				Time("reset_at", retryAt).
				Msg("Push API rate limit exceeded")
			return nil
		}
	}

	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	limit := 0
	if limitStr := headers.Get(HeaderLimit); limitStr != "" {
		if limit, err = strconv.Atoi(limitStr); err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderLimit, err)
		}
	}

	resetAt := now
	if resetStr := headers.Get(HeaderReset); resetStr != "" {
		resetSeconds, err := strconv.Atoi(resetStr)
		if err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderReset, err)
		}
		resetAt = now.Add(time.Duration(resetSeconds) * time.Second)
	}

	state := State{
		Limit:      limit,
		Remaining:  remain,
		ResetAt:    resetAt,
		LastUpdate: now,
	}

	t.mu.Lock()
	t.state = state
	t.mu.Unlock()

	rateLimitRemaining.Set(float64(remain))

	switch {
	case state.NeedsBlock(now):
		t.logger.Error().
			Int("remaining", remain).
			Time("reset_at", resetAt).
			Msg("Push API quota exhausted - requests will be blocked")
	case state.NeedsThrottling(now):
		t.logger.Warn().
			Int("remaining", remain).
			Int("limit", limit).
			Msg("Push API quota low - requests will be throttled")
	default:
		t.logger.Debug().
			Int("remaining", remain).
			Msg("Push API rate limit state updated")
	}

	return nil
}

// Allow returns ErrRateLimited while the quota is exhausted. While the quota
// is low it delays the caller by the throttle delay, honouring ctx.
func (t *Tracker) Allow(ctx context.Context) error {
	t.mu.Lock()
	state := t.state
	delay := t.throttleDelay
	t.mu.Unlock()

	now := t.now()

	if state.NeedsBlock(now) {
		wait := state.TimeUntilReset(now)
		t.logger.Warn().
			Dur("wait_duration", wait).
			Msg("Push API quota exhausted - blocking request")
		rateLimitBlocksTotal.Inc()
		return fmt.Errorf("%w: resets in %s", ErrRateLimited, wait.Round(time.Second))
	}

	if state.NeedsThrottling(now) && delay > 0 {
		rateLimitThrottlesTotal.Inc()
		t.logger.Debug().
			Int("remaining", state.Remaining).
			Dur("delay", delay).
			Msg("Throttling request")

		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return nil
}

// parseRetryAfter accepts either delay-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) (time.Time, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		return now.Add(time.Duration(secs) * time.Second), nil
	}
	at, err := http.ParseTime(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s header: %w", HeaderRetryAfter, err)
	}
	return at, nil
}
