package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/splitledger/splitledger/internal/ledger"
	"github.com/splitledger/splitledger/internal/metrics"
	"github.com/splitledger/splitledger/internal/money"
	"github.com/splitledger/splitledger/internal/settle"
	"github.com/splitledger/splitledger/internal/storage"
)

// RecordPaymentInput identifies what is being paid and by how much.
// Either TransactionID references an existing settlement record, or
// Proposal promotes a planner payment into a persisted transaction.
type RecordPaymentInput struct {
	ScopeID       string
	TransactionID string
	Proposal      *settle.Payment
	Paid          money.Money
	// IdempotencyKey makes retried calls safe: a replayed key returns the
	// already-recorded result instead of double-applying.
	IdempotencyKey string
	// Version is the scope version the caller read, or
	// storage.NoVersionCheck.
	Version int64
}

// RecordPayment applies a confirmed payment against a settlement
// transaction. Full payment completes the transaction, partial payment
// reduces the outstanding amount, and overpayment is rejected with no
// state change.
func (s *LedgerService) RecordPayment(ctx context.Context, in RecordPaymentInput) (*settle.Transaction, error) {
	// Idempotent replay: a known key short-circuits to the recorded
	// outcome before any state is touched.
	if in.IdempotencyKey != "" {
		if txn, ok, err := s.replayPayment(ctx, in); err != nil || ok {
			return txn, err
		}
	}

	txn, created, err := s.resolveTransaction(ctx, in)
	if err != nil {
		return nil, err
	}
	if created {
		// The version check was consumed by the settlement insert; the
		// payment applies to the transaction just created.
		in.Version = storage.NoVersionCheck
	}

	if err := txn.ApplyPayment(in.Paid); err != nil {
		slog.Warn("RecordPayment rejected",
			"scope_id", in.ScopeID, "transaction_id", txn.ID, "error", err)
		return nil, err
	}

	payment := &storage.Payment{
		SettlementID:   txn.ID,
		ScopeID:        txn.ScopeID,
		IdempotencyKey: in.IdempotencyKey,
		AmountMinor:    in.Paid.Amount,
		Currency:       in.Paid.Currency,
	}
	if err := s.store.ApplyPayment(ctx, payment, txn, in.Version); err != nil {
		if errors.Is(err, storage.ErrDuplicatePayment) {
			// Lost a race against a concurrent retry with the same key;
			// the other writer's outcome stands.
			if replayed, ok, rerr := s.replayPayment(ctx, in); rerr == nil && ok {
				return replayed, nil
			}
			return nil, err
		}
		if errors.Is(err, ledger.ErrConcurrentModification) {
			metrics.VersionConflicts.Inc()
		}
		slog.Error("RecordPayment failed",
			"scope_id", in.ScopeID, "transaction_id", txn.ID, "error", err)
		return nil, err
	}

	s.invalidatePlans(txn.ScopeID)
	metrics.PaymentsRecorded.WithLabelValues(string(txn.Status)).Inc()
	slog.Info("Payment recorded",
		"scope_id", txn.ScopeID,
		"transaction_id", txn.ID,
		"paid", in.Paid.String(),
		"outstanding", txn.Outstanding.String(),
		"status", txn.Status,
	)
	return txn, nil
}

// replayPayment returns the recorded outcome for an idempotency key, if
// any. The bool reports whether the key was found.
func (s *LedgerService) replayPayment(ctx context.Context, in RecordPaymentInput) (*settle.Transaction, bool, error) {
	payment, err := s.store.GetPaymentByKey(ctx, in.IdempotencyKey)
	if err != nil {
		return nil, false, err
	}
	if payment == nil {
		return nil, false, nil
	}

	txn, err := s.store.GetSettlement(ctx, payment.SettlementID)
	if err != nil {
		return nil, false, err
	}
	metrics.PaymentsRecorded.WithLabelValues("replay").Inc()
	slog.Info("Payment replay detected, returning recorded result",
		"idempotency_key", in.IdempotencyKey,
		"transaction_id", txn.ID,
	)
	return txn, true, nil
}

// resolveTransaction loads the referenced settlement or promotes a
// planner proposal into a pending persisted transaction. The bool
// reports whether a new transaction was created (and the version check
// consumed).
func (s *LedgerService) resolveTransaction(ctx context.Context, in RecordPaymentInput) (*settle.Transaction, bool, error) {
	if in.TransactionID != "" {
		txn, err := s.store.GetSettlement(ctx, in.TransactionID)
		if err != nil {
			return nil, false, err
		}
		if in.ScopeID != "" && txn.ScopeID != in.ScopeID {
			return nil, false, fmt.Errorf("%w: %s", settle.ErrTransactionNotFound, in.TransactionID)
		}
		return txn, false, nil
	}

	if in.Proposal == nil {
		return nil, false, fmt.Errorf("%w: no transaction reference or proposal", settle.ErrTransactionNotFound)
	}
	p := in.Proposal
	if p.FromID == p.ToID {
		return nil, false, fmt.Errorf("%w: payer and payee are the same participant", settle.ErrInvalidPayment)
	}
	if !p.Amount.IsPositive() {
		return nil, false, fmt.Errorf("%w: %s", settle.ErrInvalidPayment, p.Amount)
	}
	// Validate the payment fully before persisting so a doomed payment
	// never leaves a stray pending settlement behind or bumps the scope
	// version.
	if in.Paid.Currency != p.Amount.Currency {
		return nil, false, fmt.Errorf("%w: payment %s, proposal %s",
			money.ErrCurrencyMismatch, in.Paid.Currency, p.Amount.Currency)
	}
	if !in.Paid.IsPositive() {
		return nil, false, fmt.Errorf("%w: %s", settle.ErrInvalidPayment, in.Paid)
	}
	if in.Paid.Amount > p.Amount.Amount {
		return nil, false, fmt.Errorf("%w: paid %s, proposed %s", settle.ErrOverpayment, in.Paid, p.Amount)
	}

	txn := &settle.Transaction{
		ScopeID:     in.ScopeID,
		FromID:      p.FromID,
		ToID:        p.ToID,
		Amount:      p.Amount,
		Outstanding: p.Amount,
		Status:      settle.StatusPending,
	}
	if err := s.store.CreateSettlement(ctx, txn, in.Version); err != nil {
		if errors.Is(err, ledger.ErrConcurrentModification) {
			metrics.VersionConflicts.Inc()
		}
		return nil, false, err
	}
	slog.Info("Settlement proposal promoted",
		"scope_id", in.ScopeID, "transaction_id", txn.ID, "amount", p.Amount.String())
	return txn, true, nil
}

// CancelSettlement cancels a pending settlement transaction.
func (s *LedgerService) CancelSettlement(ctx context.Context, scopeID, txnID string, version int64) (*settle.Transaction, error) {
	txn, err := s.store.GetSettlement(ctx, txnID)
	if err != nil {
		return nil, err
	}
	if scopeID != "" && txn.ScopeID != scopeID {
		return nil, fmt.Errorf("%w: %s", settle.ErrTransactionNotFound, txnID)
	}
	if err := txn.Cancel(); err != nil {
		return nil, err
	}

	if err := s.store.UpdateSettlement(ctx, txn, version); err != nil {
		if errors.Is(err, ledger.ErrConcurrentModification) {
			metrics.VersionConflicts.Inc()
		}
		return nil, err
	}
	s.invalidatePlans(txn.ScopeID)
	slog.Info("Settlement cancelled", "scope_id", txn.ScopeID, "transaction_id", txnID)
	return txn, nil
}
