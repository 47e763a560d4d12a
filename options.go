package coro

import (
	"github.com/sirupsen/logrus"

	"github.com/coropkg/coro/internal/workerpool"
)

// Option configures a Scheduler at Open time.
type Option func(*schedulerConfig)

type schedulerConfig struct {
	name     string
	logger   logrus.FieldLogger
	poolOpts []workerpool.Option
}

// WithName attaches a diagnostic label to a Scheduler, included in every
// log entry it emits. Purely cosmetic; does not affect coroutine ids or
// any invariant.
func WithName(name string) Option {
	return func(c *schedulerConfig) { c.name = name }
}

// WithLogger overrides a Scheduler's structured logger. A nil logger is
// ignored.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *schedulerConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithPoolOptions configures the process-wide worker pool the first time
// any Scheduler is opened. Because the pool is a lazily-initialized
// singleton shared by every Scheduler in the process (spec §3.2, §9),
// options passed to a later Open call that does not win the
// initialization race are ignored; WithPoolOptions is intended for use at
// process startup, before any concurrent Open calls, or in a test binary
// that opens exactly one configured Scheduler before any other.
func WithPoolOptions(opts ...workerpool.Option) Option {
	return func(c *schedulerConfig) { c.poolOpts = append(c.poolOpts, opts...) }
}
