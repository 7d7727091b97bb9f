package ledger

import "errors"

// Validation errors are caller errors: rejected synchronously, no partial
// state written. Imbalance and non-zero-sum errors signal an internal
// bookkeeping defect and are surfaced loudly rather than corrected.
var (
	// ErrEmptyParticipants is returned when an expense has no participants.
	ErrEmptyParticipants = errors.New("ledger: participants list is empty")

	// ErrPayerNotParticipant is returned when the payer is not included in
	// the participants list.
	ErrPayerNotParticipant = errors.New("ledger: payer must be a participant")

	// ErrInvalidSplit is returned when a computed or declared share is
	// negative, or the split method's inputs are malformed.
	ErrInvalidSplit = errors.New("ledger: invalid split")

	// ErrSplitMismatch is returned when exact split amounts do not sum to
	// the expense total.
	ErrSplitMismatch = errors.New("ledger: exact splits do not sum to total")

	// ErrImbalance is returned when a scope's balances do not sum to zero.
	// This indicates a defect in ledger bookkeeping, not a caller mistake.
	ErrImbalance = errors.New("ledger: participant balances do not sum to zero")

	// ErrExpenseNotFound is returned when an expense id has no record.
	ErrExpenseNotFound = errors.New("ledger: expense not found")

	// ErrScopeNotFound is returned when a scope id has no record.
	ErrScopeNotFound = errors.New("ledger: scope not found")

	// ErrConcurrentModification is returned when a write carries a stale
	// scope version. The caller recovers by re-reading and retrying.
	ErrConcurrentModification = errors.New("ledger: scope modified concurrently")
)
