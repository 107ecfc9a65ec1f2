package debounce

import (
	"context"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

type Option func(*options)

type options struct {
	clock  clockwork.Clock
	ctx    context.Context
	logger zerolog.Logger
}

// WithClock sets the clock used to schedule and cancel the trailing timer.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithContext ties the debouncer to the lifetime of ctx: once ctx is done the
// debouncer is closed and any pending execution is dropped.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		o.ctx = ctx
	}
}

// WithLogger traces state transitions at debug level.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func buildOptions(opts []Option) options {
	o := options{
		clock:  clockwork.NewRealClock(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = clockwork.NewRealClock()
	}
	return o
}
