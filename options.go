package texreg

import "log/slog"

// Option configures a Registrar during creation.
//
// Example:
//
//	reg, err := texreg.New(runner, store,
//	    texreg.WithHooks(comp),
//	    texreg.WithLogger(logger),
//	)
type Option func(*options)

// options holds optional configuration for Registrar creation.
type options struct {
	hooks  Hooks
	logger *slog.Logger
}

// defaultOptions returns the default registrar options.
func defaultOptions() options {
	return options{
		hooks:  nopHooks{},
		logger: nil, // Falls back to the package logger
	}
}

// WithHooks sets the consumer-side receiver of lifecycle notifications.
// Without it notifications are still scheduled but discarded.
func WithHooks(h Hooks) Option {
	return func(o *options) {
		if h != nil {
			o.hooks = h
		}
	}
}

// WithLogger sets a logger for this registrar only, overriding the package
// logger configured with SetLogger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}
