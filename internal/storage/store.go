// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/splitledger/splitledger/internal/ledger"
	"github.com/splitledger/splitledger/internal/settle"
)

// ErrDuplicatePayment is returned when a payment's idempotency key has
// already been recorded. Callers treat a replay as a no-op success, not a
// failure.
var ErrDuplicatePayment = errors.New("storage: idempotency key already recorded")

// NoVersionCheck disables the optimistic version check on a mutation.
// The scope version is still incremented.
const NoVersionCheck int64 = -1

// Payment is one recorded application of money against a settlement
// transaction, keyed for idempotent retries.
type Payment struct {
	ID             string
	SettlementID   string
	ScopeID        string
	IdempotencyKey string
	AmountMinor    int64
	Currency       string
	CreatedAt      int64
}

// Store defines the persistence interface for scopes, expenses, and
// settlements. Every mutation to a scope's ledger increments the scope's
// version stamp atomically with the write; passing the version the caller
// read enforces single-writer-per-scope, and a stale version fails with
// ledger.ErrConcurrentModification.
//
// This abstraction allows swapping storage backends (SQLite, PostgreSQL,
// etc.) without changing the service layer.
type Store interface {
	// CreateScope persists a new scope. ID and CreatedAt are assigned by
	// the store when unset; the version stamp starts at 1.
	CreateScope(ctx context.Context, scope *ledger.Scope) error

	// GetScope retrieves a scope with its members and current version.
	GetScope(ctx context.Context, scopeID string) (*ledger.Scope, error)

	// CreateExpense appends an expense and its splits.
	CreateExpense(ctx context.Context, exp *ledger.Expense, expectedVersion int64) error

	// GetExpense retrieves one expense with its splits.
	GetExpense(ctx context.Context, expenseID string) (*ledger.Expense, error)

	// ReplaceExpense deletes and recreates an expense under the same id
	// in one transaction. This is the only edit path.
	ReplaceExpense(ctx context.Context, exp *ledger.Expense, expectedVersion int64) error

	// DeleteExpense removes an expense and its splits.
	DeleteExpense(ctx context.Context, expenseID string, expectedVersion int64) error

	// ListExpensesByScope returns all expenses in a scope, oldest first.
	ListExpensesByScope(ctx context.Context, scopeID string) ([]*ledger.Expense, error)

	// CreateSettlement persists a confirmed settlement transaction.
	CreateSettlement(ctx context.Context, txn *settle.Transaction, expectedVersion int64) error

	// GetSettlement retrieves one settlement transaction.
	GetSettlement(ctx context.Context, txnID string) (*settle.Transaction, error)

	// UpdateSettlement persists a transaction's outstanding amount and
	// status (used for cancellation).
	UpdateSettlement(ctx context.Context, txn *settle.Transaction, expectedVersion int64) error

	// ListSettlementsByScope returns all settlement transactions in a
	// scope, oldest first.
	ListSettlementsByScope(ctx context.Context, scopeID string) ([]*settle.Transaction, error)

	// ApplyPayment atomically records a payment row and the settlement's
	// new outstanding/status. A reused idempotency key fails with
	// ErrDuplicatePayment and writes nothing.
	ApplyPayment(ctx context.Context, payment *Payment, txn *settle.Transaction, expectedVersion int64) error

	// GetPaymentByKey looks up a payment by idempotency key. Returns
	// (nil, nil) when the key has never been used.
	GetPaymentByKey(ctx context.Context, key string) (*Payment, error)

	// Close releases any resources held by the store.
	Close() error
}
