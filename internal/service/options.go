package service

import "time"

// Option configures a service.
type Option func(*options)

type options struct {
	clock func() time.Time
}

func buildOptions(opts []Option) options {
	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock replaces the wall clock used for maintenance cutoffs and handed to
// new aggregates.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}
