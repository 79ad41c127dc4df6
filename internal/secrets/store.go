// Package secrets provides a small key/value secret store abstraction with
// an environment-variable primary backend and an on-disk fallback, chained
// together the way a layered credential lookup typically is.
package secrets

import "context"

// Store is the minimal interface every secret backend implements: the
// companion only ever needs to get, put, and delete a named secret (API
// keys, webhook tokens, and the like).
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
}
