package fetch

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"
)

const (
	DefaultAttempts  = 3
	DefaultBase      = time.Second
	DefaultMaxJitter = time.Second
	DefaultMaxDelay  = 5 * time.Minute
)

// Policy describes the retry budget and backoff shape of a fetch.
// Attempts is the total number of attempts, not the number of retries.
type Policy struct {
	Attempts  int
	Base      time.Duration
	MaxJitter time.Duration
	// MaxDelay caps the exponential part of the backoff; zero means no cap
	// below the largest representable duration.
	MaxDelay time.Duration

	// Jitter returns a value in [0, 1); nil means math/rand.
	Jitter func() float64
	// Sleep waits for d or until ctx is done; nil means a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

func DefaultPolicy() Policy {
	return Policy{
		Attempts:  DefaultAttempts,
		Base:      DefaultBase,
		MaxJitter: DefaultMaxJitter,
		MaxDelay:  DefaultMaxDelay,
	}
}

// WithAttempts returns a copy of the policy with the given attempt budget.
func (p Policy) WithAttempts(attempts int) Policy {
	p.Attempts = attempts
	return p
}

// NextDelay is the pause after the given failed attempt (1-based):
// min(Base * 2^(attempt-1), MaxDelay) plus jitter in [0, MaxJitter).
func (p Policy) NextDelay(attempt int) time.Duration {
	ceiling := p.MaxDelay
	if ceiling <= 0 {
		ceiling = math.MaxInt64 - p.MaxJitter
	}

	delay := min(p.Base, ceiling)
	for i := 1; i < attempt && delay < ceiling; i++ {
		if delay > ceiling/2 {
			delay = ceiling
			break
		}
		delay *= 2
	}

	if p.MaxJitter > 0 {
		jitter := p.Jitter
		if jitter == nil {
			jitter = rand.Float64
		}
		delay += time.Duration(jitter() * float64(p.MaxJitter))
	}

	return delay
}

func (p Policy) attempts() int {
	if p.Attempts < 1 {
		return 1
	}
	return p.Attempts
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do runs op until it succeeds or the attempt budget is spent, sleeping
// NextDelay between failed attempts. Configuration errors are returned
// immediately. The last error is wrapped in a TransientFetchError.
func (p Policy) Do(ctx context.Context, target string, op func(ctx context.Context, attempt int) error) error {
	attempts := p.attempts()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := op(ctx, attempt)
		if err == nil {
			return nil
		}
		if IsConfigurationError(err) {
			return err
		}
		lastErr = err

		if attempt == attempts {
			break
		}

		delay := p.NextDelay(attempt)
		slog.Warn("Fetch attempt failed",
			"target", target,
			"attempt", attempt,
			"max_attempts", attempts,
			"delay", delay.String(),
			"error", err)

		if err := p.sleep(ctx, delay); err != nil {
			return &TransientFetchError{Target: target, Attempts: attempt, Err: err}
		}
	}

	slog.Error("Fetch failed after all attempts", "target", target, "attempts", attempts, "error", lastErr)

	return &TransientFetchError{Target: target, Attempts: attempts, Err: lastErr}
}
