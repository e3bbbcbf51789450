package chain

import (
	"context"
	"errors"
	"time"

	"cosmossdk.io/log"
	"github.com/calehh/safesnap/types"
	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

type RetryConfig struct {
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     15 * time.Second,
		MaxElapsedTime:  2 * time.Minute,
	}
}

// Retrier retries transport calls that fail with types.ErrTransientNetwork.
// Every attempt waits on the shared limiter first.
type Retrier struct {
	cfg     RetryConfig
	limiter *rate.Limiter
	logger  log.Logger
}

func NewRetrier(cfg RetryConfig, limiter *rate.Limiter, logger log.Logger) *Retrier {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Retrier{cfg: cfg, limiter: limiter, logger: logger.With("module", "retry")}
}

func (r *Retrier) backOff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialInterval
	b.MaxInterval = r.cfg.MaxInterval
	b.MaxElapsedTime = r.cfg.MaxElapsedTime
	return backoff.WithContext(b, ctx)
}

// Do runs fn until it succeeds, fails with a non transient error, the
// retry budget is spent or ctx ends. The last error is returned.
func (r *Retrier) Do(ctx context.Context, op string, fn func() error) error {
	attempt := 0
	return backoff.RetryNotify(func() error {
		if err := r.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, types.ErrTransientNetwork) {
			return err
		}
		return backoff.Permanent(err)
	}, r.backOff(ctx), func(err error, d time.Duration) {
		r.logger.Error("retrying", "op", op, "attempt", attempt, "wait", d, "err", err)
	})
}
