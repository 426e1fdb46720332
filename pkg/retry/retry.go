package retry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/moweilong/tradeclient/pkg/apierr"
)

// Option set the policy options.
type Option func(*Policy)

// WithLogger set logger
func WithLogger(logger *zap.Logger) Option {
	return func(p *Policy) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Policy runs operations under a retry Config.
type Policy struct {
	cfg    Config
	logger *zap.Logger

	// sleep waits for d or until ctx is done.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a retry policy.
func New(cfg Config, opts ...Option) *Policy {
	p := &Policy{
		cfg:    cfg.normalize(),
		logger: zap.NewNop(),
		sleep:  Sleep,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the effective configuration.
func (p *Policy) Config() Config {
	return p.cfg
}

// Delay returns the kind specific wait before retrying err.
func (p *Policy) Delay(err error) time.Duration {
	return p.cfg.Delay(err)
}

// Do invokes op until it succeeds, fails with an error that is not recoverable, or the attempt
// or total wait budget is spent. The last error is returned unchanged.
func (p *Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	s := &strategy{cfg: p.cfg}

	for {
		err := op(ctx)
		if err == nil {
			return nil
		}

		wait, ok := s.next(err)
		if !ok {
			p.giveUp(err, s.attempt)
			return err
		}

		p.logger.Warn("retrying failed call",
			zap.String("kind", apierr.KindOf(err).String()),
			zap.Int("attempt", s.attempt),
			zap.Int("max_attempts", p.cfg.MaxAttempts),
			zap.Duration("wait", wait),
			zap.Error(err),
		)

		if sleepErr := p.sleep(ctx, wait); sleepErr != nil {
			return err
		}
	}
}

// Do is the value returning form of Policy.Do.
func Do[T any](ctx context.Context, p *Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := p.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}

func (p *Policy) giveUp(err error, attempts int) {
	fields := []zap.Field{
		zap.String("kind", apierr.KindOf(err).String()),
		zap.Int("attempts", attempts),
		zap.Error(err),
	}
	if ShouldReport(err) {
		p.logger.Error("call failed", fields...)
		return
	}
	p.logger.Debug("call failed", fields...)
}

// strategy tracks one Do call. The attempt count and the total wait are both bounded,
// so Do always returns.
type strategy struct {
	cfg       Config
	attempt   int
	totalWait time.Duration
}

// next records a failed attempt and returns the wait before the next one.
func (s *strategy) next(err error) (time.Duration, bool) {
	s.attempt++

	if !IsRecoverable(err) {
		return 0, false
	}
	if s.attempt >= s.cfg.MaxAttempts {
		return 0, false
	}

	wait := s.cfg.Wait(err, s.attempt)
	if s.cfg.MaxTotalWait > 0 && s.totalWait+wait > s.cfg.MaxTotalWait {
		return 0, false
	}
	s.totalWait += wait
	return wait, true
}

// Sleep waits for d or until ctx is done, returning ctx.Err() in the latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
