package testable

import "log/slog"

// Option configures Start.
type Option func(*options)

type options struct {
	flags       any
	logger      *slog.Logger
	resetErrors bool
}

func newOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// WithFlags sets the flags passed to the application's init.
func WithFlags(flags any) Option {
	return func(o *options) { o.flags = flags }
}

// WithLogger sets the logger used for debug tracing of each step.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithResetErrors makes every Update, Send and RunTasks start from an empty
// error list, so that only errors from the latest step are reported. By default errors
// accumulate for the lifetime of the context.
func WithResetErrors(reset bool) Option {
	return func(o *options) { o.resetErrors = reset }
}
