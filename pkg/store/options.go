package store

import (
	"io"

	"github.com/sirupsen/logrus"
)

type options struct {
	logger *logrus.Logger
	seed   bool
}

// Option configures a storage backend.
type Option func(*options)

// WithLogger sets the logger used by the backend.
func WithLogger(logger *logrus.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSeedCustomers controls whether SeedCustomers are inserted on startup.
func WithSeedCustomers(seed bool) Option {
	return func(o *options) {
		o.seed = seed
	}
}

func newOptions(opts []Option) options {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	o := options{logger: discard, seed: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
