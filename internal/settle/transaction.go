// Package settle turns a zero-sum balance vector into a minimal ordered
// payment plan and manages the lifecycle of recorded settlement payments.
package settle

import (
	"errors"
	"fmt"

	"github.com/splitledger/splitledger/internal/money"
)

var (
	// ErrNonZeroSum is returned when a balance vector handed to the planner
	// does not sum to zero. That is an upstream bookkeeping defect, so no
	// partial plan is emitted.
	ErrNonZeroSum = errors.New("settle: balance vector does not sum to zero")

	// ErrOverpayment is returned when a payment exceeds the outstanding
	// amount on a transaction. The caller must split the excess into a new
	// transaction instead.
	ErrOverpayment = errors.New("settle: payment exceeds outstanding amount")

	// ErrInvalidPayment is returned for zero or negative payment amounts.
	ErrInvalidPayment = errors.New("settle: payment amount must be positive")

	// ErrNotPayable is returned when a payment targets a cancelled or
	// otherwise non-payable transaction.
	ErrNotPayable = errors.New("settle: transaction is not payable")

	// ErrTransactionNotFound is returned when a transaction id has no record.
	ErrTransactionNotFound = errors.New("settle: transaction not found")
)

// Status is the lifecycle state of a settlement transaction.
// Pending -> PartiallyPaid -> Completed, or Pending -> Cancelled.
type Status string

const (
	StatusPending       Status = "pending"
	StatusPartiallyPaid Status = "partially_paid"
	StatusCompleted     Status = "completed"
	StatusCancelled     Status = "cancelled"
)

// Transaction is one pairwise payment within a scope. Planner output is
// ephemeral (ID empty, StatusPending); a transaction becomes a persisted
// record when the user confirms a payment against it.
type Transaction struct {
	// ID is the unique identifier (UUID format); empty for proposals.
	ID string `json:"id"`

	// ScopeID is the scope this transaction settles within.
	ScopeID string `json:"scope_id"`

	// FromID is the participant paying (the debtor).
	FromID string `json:"from_id"`

	// ToID is the participant being paid (the creditor).
	ToID string `json:"to_id"`

	// Amount is the planned payment, always positive.
	Amount money.Money `json:"amount"`

	// Outstanding is the unpaid remainder of Amount.
	Outstanding money.Money `json:"outstanding"`

	// Status is the lifecycle state.
	Status Status `json:"status"`

	// CreatedAt is the Unix timestamp when the record was persisted.
	CreatedAt int64 `json:"created_at"`
}

// payable reports whether the transaction can still accept payments.
func (t *Transaction) payable() bool {
	return t.Status == StatusPending || t.Status == StatusPartiallyPaid
}

// ApplyPayment reduces the outstanding amount by paid and advances the
// status. Paying the full outstanding completes the transaction; paying
// less marks it partially paid; paying more is rejected with no state
// change.
func (t *Transaction) ApplyPayment(paid money.Money) error {
	if !t.payable() {
		return fmt.Errorf("%w: status %s", ErrNotPayable, t.Status)
	}
	if paid.Currency != t.Outstanding.Currency {
		return fmt.Errorf("%w: payment %s, transaction %s",
			money.ErrCurrencyMismatch, paid.Currency, t.Outstanding.Currency)
	}
	if !paid.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidPayment, paid)
	}
	if paid.Amount > t.Outstanding.Amount {
		return fmt.Errorf("%w: paid %s, outstanding %s", ErrOverpayment, paid, t.Outstanding)
	}

	remaining, err := t.Outstanding.Sub(paid)
	if err != nil {
		return err
	}
	t.Outstanding = remaining
	if remaining.IsZero() {
		t.Status = StatusCompleted
	} else {
		t.Status = StatusPartiallyPaid
	}
	return nil
}

// Paid returns how much of the planned amount has been settled so far.
func (t *Transaction) Paid() money.Money {
	return money.New(t.Amount.Amount-t.Outstanding.Amount, t.Amount.Currency)
}

// Cancel marks a pending transaction cancelled. Transactions with partial
// payments cannot be cancelled.
func (t *Transaction) Cancel() error {
	if t.Status != StatusPending {
		return fmt.Errorf("%w: cannot cancel status %s", ErrNotPayable, t.Status)
	}
	t.Status = StatusCancelled
	return nil
}
