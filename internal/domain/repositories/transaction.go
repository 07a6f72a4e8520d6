package repositories

import "context"

// TxFn is the body of a transaction. It must use the ctx it is given.
type TxFn func(ctx context.Context) error

// TransactionManager runs multi-statement outline writes (full saves,
// cascading deletes, the demo seed) atomically.
type TransactionManager interface {
	// ExecTx commits when fn returns nil and rolls back otherwise. Calls
	// nested inside a running transaction join it.
	ExecTx(ctx context.Context, fn TxFn) error
}
