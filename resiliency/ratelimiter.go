package resiliency

import (
	"fmt"
	"time"

	"github.com/erpc/tck/common"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/ratelimiter"
	"github.com/rs/zerolog"
)

// NewRateLimiter paces requests towards one target so a run does not overwhelm a shared SUT or
// oracle. Returns nil when cfg disables limiting.
func NewRateLimiter[R any](logger *zerolog.Logger, target string, cfg *common.RateLimitConfig) (failsafe.Policy[R], error) {
	if cfg == nil || cfg.MaxCount <= 0 {
		return nil, nil
	}
	period := cfg.Period.WithDefault(time.Second)
	if period <= 0 {
		return nil, common.NewErrInvalidConfig("rateLimit.period", fmt.Errorf("must be positive"))
	}

	builder := ratelimiter.BurstyBuilder[R](uint(cfg.MaxCount), period)
	if cfg.WaitTime > 0 {
		builder = builder.WithMaxWaitTime(cfg.WaitTime.Duration())
	}
	builder.OnRateLimitExceeded(func(e failsafe.ExecutionEvent[R]) {
		logger.Warn().Str("target", target).Int("maxCount", cfg.MaxCount).Str("period", period.String()).Msg("rate limit exceeded")
	})

	return builder.Build(), nil
}
