package worker

import (
	"context"
	"time"

	"github.com/google/wire"
)

// ProviderSet is the wire provider set for the worker package.
var ProviderSet = wire.NewSet(ProvidePool)

// ProvidePool creates a worker Pool with a cleanup function that
// gracefully stops the pool.
func ProvidePool(cfg *Config) (*Pool, func(), error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	pool := NewPool(cfg)
	pool.Start()

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		pool.Stop(ctx)
	}
	return pool, cleanup, nil
}

// ProvidePoolWithProcessor creates a worker Pool with a custom
// processor.
func ProvidePoolWithProcessor(cfg *Config, processor Processor) (*Pool, func(), error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	pool := NewPool(cfg, processor)
	pool.Start()

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		pool.Stop(ctx)
	}
	return pool, cleanup, nil
}
