package token

import "go.uber.org/zap"

type options struct {
	logger *zap.Logger
	kdf    kdfParams
}

func defaultOptions() *options {
	return &options{
		logger: zap.NewNop(),
		kdf:    defaultKDFParams,
	}
}

// Option set the store options.
type Option func(*options)

func (o *options) apply(opts ...Option) {
	for _, opt := range opts {
		opt(o)
	}
}

// WithLogger set logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithArgon2Params set the key derivation cost used when the file store writes a new file.
func WithArgon2Params(time, memoryKiB uint32, threads uint8) Option {
	return func(o *options) {
		if time == 0 || memoryKiB == 0 || threads == 0 {
			return
		}
		o.kdf = kdfParams{time: time, memory: memoryKiB, threads: threads}
	}
}
