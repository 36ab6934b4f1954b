// Package retry bounds transient failures of navigation, element waits and
// batch commits with a linear backoff.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/LouYuanbo1/komprice/internal/logger"
)

const (
	DefaultRetries = 3
	DefaultBase    = time.Second
)

// Policy configures one retried operation. The zero value retries three
// times with a one second base.
type Policy struct {
	Retries int
	Base    time.Duration
	// Timer replaces the wall-clock timer between attempts; nil uses the real one.
	Timer   backoff.Timer
	Log     logger.Logger
	OnRetry func(operation string)
}

func (p Policy) withDefaults() Policy {
	if p.Retries <= 0 {
		p.Retries = DefaultRetries
	}
	if p.Base <= 0 {
		p.Base = DefaultBase
	}
	if p.Log == nil {
		p.Log = logger.NewNop()
	}
	return p
}

// linear waits base, 2*base, 3*base, ...
type linear struct {
	base    time.Duration
	attempt int
}

func (l *linear) NextBackOff() time.Duration {
	l.attempt++
	return l.base * time.Duration(l.attempt)
}

func (l *linear) Reset() {
	l.attempt = 0
}

// Permanent marks err as not worth retrying. Do returns the wrapped error itself.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

func Do(ctx context.Context, p Policy, name string, op func() error) error {
	_, err := DoValue(ctx, p, name, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}

// DoValue runs op up to p.Retries times and returns the last error unchanged
// once attempts are exhausted.
func DoValue[T any](ctx context.Context, p Policy, name string, op func() (T, error)) (T, error) {
	p = p.withDefaults()
	b := backoff.WithContext(backoff.WithMaxRetries(&linear{base: p.Base}, uint64(p.Retries-1)), ctx)

	attempt := 0
	counted := func() (T, error) {
		attempt++
		return op()
	}
	notify := func(err error, wait time.Duration) {
		p.Log.Warn("operation failed, retrying",
			logger.String("operation", name),
			logger.Int("attempt", attempt),
			logger.Int("max_attempts", p.Retries),
			logger.Duration("wait", wait),
			logger.Error(err),
		)
		if p.OnRetry != nil {
			p.OnRetry(name)
		}
	}
	v, err := backoff.RetryNotifyWithTimerAndData(counted, b, notify, p.Timer)
	if err != nil {
		p.Log.Error("operation failed",
			logger.String("operation", name),
			logger.Int("attempt", attempt),
			logger.Error(err),
		)
	}
	return v, err
}
