// Package ledger defines the shared-expense ledger: scopes, expense
// records, and the split computation that derives each participant's
// share at write time. All amounts are integer minor units.
package ledger

import "github.com/splitledger/splitledger/internal/money"

// ScopeKind distinguishes a multi-member group from a two-person pair.
type ScopeKind string

const (
	ScopeGroup ScopeKind = "group"
	ScopePair  ScopeKind = "pair"
)

// Scope is a closed balance system: one group or one friend pair.
// Every expense and settlement belongs to exactly one scope, and balances
// are only meaningful within a scope.
type Scope struct {
	// ID is the unique identifier for the scope (UUID format).
	ID string `json:"id"`

	// Name is the display name (e.g. "Roommates", "Alice & Bob").
	Name string `json:"name"`

	// Kind is group or pair.
	Kind ScopeKind `json:"kind"`

	// Members is the list of participant ids in this scope.
	Members []string `json:"members"`

	// Version is the optimistic concurrency stamp. Every successful
	// mutation to the scope's ledger increments it.
	Version int64 `json:"version"`

	// CreatedAt is the Unix timestamp when the scope was created.
	CreatedAt int64 `json:"created_at"`
}

// Expense is an immutable ledger entry. Splits are derived once at
// creation time and always sum to Total exactly; edits are
// delete-then-recreate, never in-place mutation.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string `json:"id"`

	// ScopeID is the scope this expense belongs to.
	ScopeID string `json:"scope_id"`

	// PayerID is the participant who paid the total up front.
	PayerID string `json:"payer_id"`

	// Total is the full expense amount in the expense currency.
	Total money.Money `json:"total"`

	// Method records how Splits were derived.
	Method SplitMethod `json:"method"`

	// Participants is the list of participant ids sharing the expense.
	Participants []string `json:"participants"`

	// Splits maps each participant to their exact share.
	// Invariant: the shares sum to Total, in minor units, no tolerance.
	Splits map[string]money.Money `json:"splits"`

	// Note is an optional description (e.g. "Groceries").
	Note string `json:"note,omitempty"`

	// CreatedAt is the Unix timestamp when the expense was recorded.
	CreatedAt int64 `json:"created_at"`
}
