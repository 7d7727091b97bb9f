package settle

import (
	"errors"
	"testing"

	"github.com/splitledger/splitledger/internal/money"
)

func newTxn(amount int64) *Transaction {
	return &Transaction{
		ID:          "txn-1",
		ScopeID:     "scope-1",
		FromID:      "alice",
		ToID:        "bob",
		Amount:      usd(amount),
		Outstanding: usd(amount),
		Status:      StatusPending,
	}
}

func TestApplyPaymentFull(t *testing.T) {
	txn := newTxn(5000)
	if err := txn.ApplyPayment(usd(5000)); err != nil {
		t.Fatalf("ApplyPayment failed: %v", err)
	}
	if txn.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", txn.Status)
	}
	if !txn.Outstanding.IsZero() {
		t.Errorf("outstanding = %s, want zero", txn.Outstanding)
	}
	if txn.Paid().Amount != 5000 {
		t.Errorf("paid = %d, want 5000", txn.Paid().Amount)
	}
}

func TestApplyPaymentPartialThenComplete(t *testing.T) {
	txn := newTxn(5000)

	if err := txn.ApplyPayment(usd(2000)); err != nil {
		t.Fatalf("partial payment failed: %v", err)
	}
	if txn.Status != StatusPartiallyPaid {
		t.Errorf("status = %s, want partially_paid", txn.Status)
	}
	if txn.Outstanding.Amount != 3000 {
		t.Errorf("outstanding = %d, want 3000", txn.Outstanding.Amount)
	}

	if err := txn.ApplyPayment(usd(3000)); err != nil {
		t.Fatalf("final payment failed: %v", err)
	}
	if txn.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", txn.Status)
	}
}

func TestApplyPaymentOverpaymentRejected(t *testing.T) {
	txn := newTxn(50)
	err := txn.ApplyPayment(usd(51))
	if !errors.Is(err, ErrOverpayment) {
		t.Fatalf("error = %v, want ErrOverpayment", err)
	}
	// No state change on rejection.
	if txn.Status != StatusPending {
		t.Errorf("status changed to %s after rejected overpayment", txn.Status)
	}
	if txn.Outstanding.Amount != 50 {
		t.Errorf("outstanding changed to %d after rejected overpayment", txn.Outstanding.Amount)
	}
}

func TestApplyPaymentValidation(t *testing.T) {
	txn := newTxn(100)

	if err := txn.ApplyPayment(usd(0)); !errors.Is(err, ErrInvalidPayment) {
		t.Errorf("zero payment: got %v, want ErrInvalidPayment", err)
	}
	if err := txn.ApplyPayment(usd(-10)); !errors.Is(err, ErrInvalidPayment) {
		t.Errorf("negative payment: got %v, want ErrInvalidPayment", err)
	}
	if err := txn.ApplyPayment(money.New(10, "EUR")); !errors.Is(err, money.ErrCurrencyMismatch) {
		t.Errorf("wrong currency: got %v, want ErrCurrencyMismatch", err)
	}

	if err := txn.ApplyPayment(usd(100)); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if err := txn.ApplyPayment(usd(1)); !errors.Is(err, ErrNotPayable) {
		t.Errorf("payment on completed txn: got %v, want ErrNotPayable", err)
	}
}

func TestCancel(t *testing.T) {
	txn := newTxn(100)
	if err := txn.Cancel(); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if txn.Status != StatusCancelled {
		t.Errorf("status = %s, want cancelled", txn.Status)
	}

	partial := newTxn(100)
	if err := partial.ApplyPayment(usd(40)); err != nil {
		t.Fatalf("partial payment failed: %v", err)
	}
	if err := partial.Cancel(); !errors.Is(err, ErrNotPayable) {
		t.Errorf("cancel of partially paid txn: got %v, want ErrNotPayable", err)
	}
}
