package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/splitledger/splitledger/internal/money"
	"github.com/splitledger/splitledger/internal/settle"
	"github.com/splitledger/splitledger/internal/storage"
)

// CreateSettlement persists a confirmed settlement transaction and bumps
// the scope version.
func (s *SQLiteStore) CreateSettlement(ctx context.Context, txn *settle.Transaction, expectedVersion int64) error {
	if txn.ID == "" {
		txn.ID = uuid.New().String()
	}
	if txn.CreatedAt == 0 {
		txn.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := bumpVersion(ctx, tx, txn.ScopeID, expectedVersion); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO settlements (id, scope_id, from_id, to_id, amount, outstanding, currency, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.ScopeID, txn.FromID, txn.ToID,
		txn.Amount.Amount, txn.Outstanding.Amount, txn.Amount.Currency,
		string(txn.Status), txn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert settlement: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetSettlement retrieves a settlement transaction by ID.
func (s *SQLiteStore) GetSettlement(ctx context.Context, txnID string) (*settle.Transaction, error) {
	txn, err := scanSettlement(s.db.QueryRowContext(ctx,
		`SELECT id, scope_id, from_id, to_id, amount, outstanding, currency, status, created_at
		 FROM settlements WHERE id = ?`, txnID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", settle.ErrTransactionNotFound, txnID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}
	return txn, nil
}

// UpdateSettlement persists a transaction's outstanding amount and
// status, bumping the scope version.
func (s *SQLiteStore) UpdateSettlement(ctx context.Context, txn *settle.Transaction, expectedVersion int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := bumpVersion(ctx, tx, txn.ScopeID, expectedVersion); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE settlements SET outstanding = ?, status = ? WHERE id = ?",
		txn.Outstanding.Amount, string(txn.Status), txn.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update settlement: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", settle.ErrTransactionNotFound, txn.ID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListSettlementsByScope returns all settlement transactions in a scope,
// oldest first.
func (s *SQLiteStore) ListSettlementsByScope(ctx context.Context, scopeID string) ([]*settle.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, scope_id, from_id, to_id, amount, outstanding, currency, status, created_at
		 FROM settlements WHERE scope_id = ? ORDER BY created_at, id`, scopeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}
	defer rows.Close()

	var txns []*settle.Transaction
	for rows.Next() {
		txn, err := scanSettlement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settlements: %w", err)
	}
	return txns, nil
}

// ApplyPayment records a payment row and the settlement's updated
// outstanding/status atomically. The UNIQUE constraint on
// idempotency_key turns a replayed key into ErrDuplicatePayment without
// writing anything.
func (s *SQLiteStore) ApplyPayment(ctx context.Context, payment *storage.Payment, txn *settle.Transaction, expectedVersion int64) error {
	if payment.ID == "" {
		payment.ID = uuid.New().String()
	}
	if payment.CreatedAt == 0 {
		payment.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := bumpVersion(ctx, tx, txn.ScopeID, expectedVersion); err != nil {
		return err
	}

	// Keyless payments store NULL so they never collide on the unique
	// index; only explicit keys are deduplicated.
	key := sql.NullString{String: payment.IdempotencyKey, Valid: payment.IdempotencyKey != ""}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO payments (id, settlement_id, scope_id, idempotency_key, amount, currency, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		payment.ID, payment.SettlementID, payment.ScopeID, key,
		payment.AmountMinor, payment.Currency, payment.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s", storage.ErrDuplicatePayment, payment.IdempotencyKey)
		}
		return fmt.Errorf("failed to insert payment: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE settlements SET outstanding = ?, status = ? WHERE id = ?",
		txn.Outstanding.Amount, string(txn.Status), txn.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update settlement: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", settle.ErrTransactionNotFound, txn.ID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetPaymentByKey looks up a payment by idempotency key.
func (s *SQLiteStore) GetPaymentByKey(ctx context.Context, key string) (*storage.Payment, error) {
	payment := &storage.Payment{}
	var storedKey sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, settlement_id, scope_id, idempotency_key, amount, currency, created_at
		 FROM payments WHERE idempotency_key = ?`, key,
	).Scan(&payment.ID, &payment.SettlementID, &payment.ScopeID, &storedKey,
		&payment.AmountMinor, &payment.Currency, &payment.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment by key: %w", err)
	}
	payment.IdempotencyKey = storedKey.String
	return payment, nil
}

func scanSettlement(row rowScanner) (*settle.Transaction, error) {
	txn := &settle.Transaction{}
	var amount, outstanding int64
	var currency, status string

	err := row.Scan(&txn.ID, &txn.ScopeID, &txn.FromID, &txn.ToID,
		&amount, &outstanding, &currency, &status, &txn.CreatedAt)
	if err != nil {
		return nil, err
	}

	txn.Amount = money.New(amount, currency)
	txn.Outstanding = money.New(outstanding, currency)
	txn.Status = settle.Status(status)
	return txn, nil
}
