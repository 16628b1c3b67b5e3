package data

import (
	"go.uber.org/zap"
)

type options struct {
	log      *zap.SugaredLogger
	progress bool
}

// Option customises a Converter or Loader
type Option func(*options)

// WithLogger sets the logger, the default discards all output
func WithLogger(log *zap.SugaredLogger) Option {
	return func(o *options) { o.log = log }
}

// WithProgress shows a progress bar on stderr during conversion
func WithProgress(on bool) Option {
	return func(o *options) { o.progress = on }
}

func getOptions(opts []Option) options {
	o := options{log: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
