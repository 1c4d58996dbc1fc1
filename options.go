package docdb

import "github.com/g5becks/FractalDb-sub005/internal/retry"

// opConfig holds the per-call overrides an OpOption applies.
type opConfig struct {
	retry      *retry.Policy
	retrySet   bool
}

// OpOption configures a single Collection call, taking precedence over
// both the collection-level and database-level defaults.
//
// Cancellation has no OpOption of its own: every method already takes a
// context.Context as its first argument, which is idiomatic Go's
// replacement for the spec's separate "cancellation handle".
type OpOption func(*opConfig)

// WithRetry overrides the retry policy for a single call.
func WithRetry(p retry.Policy) OpOption {
	return func(o *opConfig) {
		o.retry = &p
		o.retrySet = true
	}
}

func resolveOpConfig(opts []OpOption) opConfig {
	var o opConfig
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// CollectionOption configures a Collection at CollectionFor time, between
// the database-level default and any per-call OpOption.
type CollectionOption func(*collectionConfig)

type collectionConfig struct {
	retry    *retry.Policy
	retrySet bool
}

// WithCollectionRetry overrides the retry policy for every operation on
// one collection, unless a call-level WithRetry overrides it further.
func WithCollectionRetry(p retry.Policy) CollectionOption {
	return func(c *collectionConfig) {
		c.retry = &p
		c.retrySet = true
	}
}

func resolveCollectionConfig(opts []CollectionOption) collectionConfig {
	var c collectionConfig
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// effectivePolicy implements operation > collection > database precedence.
func effectivePolicy(dbPolicy retry.Policy, collOverride *retry.Policy, opOverride *retry.Policy) retry.Policy {
	p := dbPolicy
	if collOverride != nil {
		p = p.Merge(*collOverride)
	}
	if opOverride != nil {
		p = p.Merge(*opOverride)
	}
	return p
}
