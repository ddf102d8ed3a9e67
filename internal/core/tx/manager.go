// Package tx provides transaction management abstractions.
// Domain services depend on these interfaces, not on pgx.
package tx

import (
	"context"
)

// Manager defines the contract for transaction management.
// The actual implementation lives in infrastructure/storage/postgres.
type Manager interface {
	// RunInTransaction executes fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn succeeds, the transaction is committed.
	//
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// KeyLocker serializes work on a logical key for the lifetime of the
// enclosing transaction. Must be called inside RunInTransaction.
type KeyLocker interface {
	LockKey(ctx context.Context, key string) error
}
