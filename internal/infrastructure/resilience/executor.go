package resilience

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
}

type ErrorClassifier func(err error) ErrorClassification

// Observer receives retry and breaker transitions for provider calls.
type Observer interface {
	ObserveRetry(operation string, wait time.Duration)
	ObserveBreakerState(operation string, state string)
}

// RetryHinter is implemented by errors that carry an upstream back-off
// request, such as a Retry-After header on a 429 from the OCR provider.
type RetryHinter interface {
	RetryAfter() time.Duration
}

type Executor struct {
	cfg Config

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

func NewExecutor(cfg Config) *Executor {
	return &Executor{
		cfg:      cfg.normalize(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

// Execute runs fn under the retry policy and, when enabled, a circuit breaker
// keyed by operation. One breaker outcome is recorded per Execute call, not
// per attempt.
func (e *Executor) Execute(
	ctx context.Context,
	operation string,
	fn func(context.Context) error,
	classifier ErrorClassifier,
) error {
	if fn == nil {
		return fmt.Errorf("resilience: %s callback is nil", operationName(operation))
	}
	call := providerCall{
		executor:   e,
		operation:  operationName(operation),
		fn:         fn,
		classifier: classifier,
	}
	if call.classifier == nil {
		call.classifier = defaultClassifier
	}

	if !e.cfg.BreakerEnabled {
		return call.run(ctx)
	}
	_, err := e.circuitBreaker(call.operation, call.classifier).Execute(func() (any, error) {
		return nil, call.run(ctx)
	})
	return err
}

func operationName(operation string) string {
	op := strings.TrimSpace(operation)
	if op == "" {
		return "unknown"
	}
	return op
}

type providerCall struct {
	executor   *Executor
	operation  string
	fn         func(context.Context) error
	classifier ErrorClassifier
}

func (c providerCall) run(ctx context.Context) error {
	cfg := c.executor.cfg
	delay := cfg.RetryInitialBackoff

	var lastErr error
	for attempt := 1; attempt <= cfg.RetryMaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		lastErr = c.fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == cfg.RetryMaxAttempts || !c.classifier(lastErr).Retryable {
			return lastErr
		}

		wait := c.executor.waitBefore(delay, lastErr)
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < wait {
			cfg.Logger.Warn("retry_skipped_deadline",
				"operation", c.operation,
				"attempt", attempt,
				"wait_ms", wait.Milliseconds(),
				"error", lastErr,
			)
			return lastErr
		}

		cfg.Logger.Warn("retry_attempt",
			"operation", c.operation,
			"attempt", attempt,
			"max_attempts", cfg.RetryMaxAttempts,
			"backoff_ms", float64(wait.Microseconds())/1000.0,
			"error", lastErr,
		)
		if cfg.Observer != nil {
			cfg.Observer.ObserveRetry(c.operation, wait)
		}
		if !sleepContext(ctx, wait) {
			return lastErr
		}
		delay = c.executor.nextDelay(delay)
	}
	return lastErr
}

// waitBefore picks the pause before the next attempt. An upstream retry
// hint wins over the local schedule but never exceeds RetryAfterCap.
func (e *Executor) waitBefore(delay time.Duration, err error) time.Duration {
	wait := min(delay, e.cfg.RetryMaxBackoff)

	var hinter RetryHinter
	if errors.As(err, &hinter) {
		if hinted := hinter.RetryAfter(); hinted > wait {
			wait = min(hinted, e.cfg.RetryAfterCap)
		}
	}
	return wait
}

func (e *Executor) nextDelay(delay time.Duration) time.Duration {
	next := time.Duration(float64(delay) * e.cfg.RetryMultiplier)
	return min(next, e.cfg.RetryMaxBackoff)
}

func sleepContext(ctx context.Context, wait time.Duration) bool {
	if wait <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (e *Executor) circuitBreaker(operation string, classifier ErrorClassifier) *gobreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if breaker, ok := e.breakers[operation]; ok {
		return breaker
	}

	cfg := e.cfg
	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        operation,
		MaxRequests: cfg.BreakerHalfOpenMaxCalls,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= cfg.BreakerMinRequests &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classifier(err).RecordFailure
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			cfg.Logger.Warn("circuit_breaker_state_change", "operation", name, "from", from.String(), "to", to.String())
			if cfg.Observer != nil {
				cfg.Observer.ObserveBreakerState(name, to.String())
			}
		},
	})
	e.breakers[operation] = breaker
	if cfg.Observer != nil {
		cfg.Observer.ObserveBreakerState(operation, gobreaker.StateClosed.String())
	}
	return breaker
}

// BreakerStates reports the current state of every breaker created so far.
func (e *Executor) BreakerStates() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]string, len(e.breakers))
	for name, breaker := range e.breakers {
		out[name] = breaker.State().String()
	}
	return out
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func defaultClassifier(error) ErrorClassification {
	return ErrorClassification{RecordFailure: true}
}
