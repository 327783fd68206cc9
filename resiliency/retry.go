package resiliency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erpc/tck/common"
	"github.com/erpc/tck/telemetry"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Policy bounds a retry-until-consistent call. Attempts counts the first try.
type Policy struct {
	Attempts        int
	Interval        time.Duration
	BackoffMaxDelay time.Duration
	BackoffFactor   float32
	Jitter          time.Duration
}

// DefaultPolicy waits up to ~19s, enough for typical replica propagation.
func DefaultPolicy() Policy {
	return Policy{
		Attempts: common.DefaultRetryAttempts,
		Interval: common.DefaultRetryInterval,
	}
}

func PolicyFromConfig(cfg *common.RetryPolicyConfig) Policy {
	if cfg == nil {
		return DefaultPolicy()
	}
	return Policy{
		Attempts:        cfg.Attempts,
		Interval:        cfg.Interval.Duration(),
		BackoffMaxDelay: cfg.BackoffMaxDelay.Duration(),
		BackoffFactor:   cfg.BackoffFactor,
		Jitter:          cfg.Jitter.Duration(),
	}
}

func (p Policy) Validate() error {
	details := map[string]interface{}{"attempts": p.Attempts, "interval": p.Interval.String()}
	if p.Attempts < 1 {
		return common.NewErrRetryConfiguration(fmt.Errorf("attempts must be at least 1"), details)
	}
	if p.Interval < 0 {
		return common.NewErrRetryConfiguration(fmt.Errorf("interval must not be negative"), details)
	}
	if p.BackoffMaxDelay > 0 && p.BackoffMaxDelay < p.Interval {
		return common.NewErrRetryConfiguration(fmt.Errorf("backoffMaxDelay must be >= interval"), details)
	}
	if p.Jitter < 0 {
		return common.NewErrRetryConfiguration(fmt.Errorf("jitter must not be negative"), details)
	}
	return nil
}

// Attempt is the ephemeral record of one failed try, handed to OnAttempt observers.
type Attempt struct {
	Number    int
	LastError error
}

type options struct {
	policy    Policy
	logger    *zerolog.Logger
	onAttempt func(Attempt)
	name      string
}

type Option func(*options)

func WithPolicy(p Policy) Option {
	return func(o *options) { o.policy = p }
}

func WithLogger(l *zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// OnAttempt is called after every failed attempt, including the last one.
func OnAttempt(fn func(Attempt)) Option {
	return func(o *options) { o.onAttempt = fn }
}

// WithName labels log lines of this call.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// Retry runs assertion until it returns nil or the attempt budget runs out. Any error is
// retry-worthy. On exhaustion the error of the final attempt is returned unmodified.
// Cancelling ctx stops waiting and returns the last assertion error if there was one.
func Retry(ctx context.Context, assertion func(ctx context.Context) error, opts ...Option) error {
	o := options{policy: DefaultPolicy(), logger: &log.Logger}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.policy.Validate(); err != nil {
		return err
	}

	var lastErr error
	attempts := 0

	policy := buildRetryPolicy(o.policy)
	_, execErr := failsafe.NewExecutor[any](policy).
		WithContext(ctx).
		GetWithExecution(func(exec failsafe.Execution[any]) (any, error) {
			attempts++
			err := assertion(exec.Context())
			if err == nil {
				return nil, nil
			}
			lastErr = err
			o.logger.Debug().Str("name", o.name).Int("attempt", attempts).Int("maxAttempts", o.policy.Attempts).Err(err).Msg("consistency check not satisfied yet")
			if o.onAttempt != nil {
				o.onAttempt(Attempt{Number: attempts, LastError: err})
			}
			return nil, err
		})

	if execErr == nil {
		telemetry.ObserverHandle(telemetry.MetricRetryAttempts, telemetry.OutcomeSuccess).Observe(float64(attempts))
		return nil
	}

	telemetry.ObserverHandle(telemetry.MetricRetryAttempts, telemetry.OutcomeExhausted).Observe(float64(attempts))
	err := translateExecError(execErr, lastErr)
	o.logger.Warn().Str("name", o.name).Int("attempts", attempts).Err(err).Msg("gave up waiting for consistency")
	return err
}

func buildRetryPolicy(p Policy) failsafe.Policy[any] {
	builder := retrypolicy.Builder[any]().
		WithMaxAttempts(p.Attempts).
		HandleIf(func(_ failsafe.ExecutionAttempt[any], _ any, err error) bool { return err != nil })

	if p.Interval > 0 {
		if p.BackoffMaxDelay > 0 {
			if p.BackoffFactor > 0 {
				builder = builder.WithBackoffFactor(p.Interval, p.BackoffMaxDelay, p.BackoffFactor)
			} else {
				builder = builder.WithBackoff(p.Interval, p.BackoffMaxDelay)
			}
		} else {
			builder = builder.WithDelay(p.Interval)
		}
	}
	if p.Jitter > 0 {
		builder = builder.WithJitter(p.Jitter)
	}

	return builder.Build()
}

// translateExecError unwraps failsafe's exhaustion wrapper so callers see the assertion's own error.
func translateExecError(execErr error, lastErr error) error {
	var exceeded *retrypolicy.ExceededError
	if errors.As(execErr, &exceeded) {
		if le := exceeded.LastError; le != nil {
			return le
		}
	}
	if lastErr != nil {
		return lastErr
	}
	return execErr
}
