// Package kv defines the string key-value port every persistent component
// reads and writes through.
package kv

import "context"

// Pair is one key with its value. Found is false for absent keys returned by MultiGet.
type Pair struct {
	Key   string
	Value string
	Found bool
}

// Store is an asynchronous string-to-string map. Absence is not an error:
// Get reports it through the boolean. MultiSet and MultiRemove apply all
// keys or none.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	MultiGet(ctx context.Context, keys []string) ([]Pair, error)
	MultiSet(ctx context.Context, pairs []Pair) error
	MultiRemove(ctx context.Context, keys []string) error
	GetAllKeys(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
}
