package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/splitledger/splitledger/internal/ledger"
	"github.com/splitledger/splitledger/internal/money"
)

// CreateExpense appends an expense record with its splits and bumps the
// scope version in the same transaction.
func (s *SQLiteStore) CreateExpense(ctx context.Context, exp *ledger.Expense, expectedVersion int64) error {
	if exp.ID == "" {
		exp.ID = uuid.New().String()
	}
	if exp.CreatedAt == 0 {
		exp.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := bumpVersion(ctx, tx, exp.ScopeID, expectedVersion); err != nil {
		return err
	}
	if err := insertExpense(ctx, tx, exp); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ReplaceExpense deletes and recreates an expense under the same id.
// Balance-wise this is delete-then-recreate; storage-wise it is one
// transaction so readers never observe the gap.
func (s *SQLiteStore) ReplaceExpense(ctx context.Context, exp *ledger.Expense, expectedVersion int64) error {
	if exp.CreatedAt == 0 {
		exp.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := bumpVersion(ctx, tx, exp.ScopeID, expectedVersion); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", exp.ID)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ledger.ErrExpenseNotFound, exp.ID)
	}

	if err := insertExpense(ctx, tx, exp); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteExpense removes an expense; splits cascade.
func (s *SQLiteStore) DeleteExpense(ctx context.Context, expenseID string, expectedVersion int64) error {
	var scopeID string
	err := s.db.QueryRowContext(ctx, "SELECT scope_id FROM expenses WHERE id = ?", expenseID).Scan(&scopeID)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %s", ledger.ErrExpenseNotFound, expenseID)
	}
	if err != nil {
		return fmt.Errorf("failed to look up expense: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := bumpVersion(ctx, tx, scopeID, expectedVersion); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", expenseID)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ledger.ErrExpenseNotFound, expenseID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetExpense retrieves an expense by ID with splits and participants.
func (s *SQLiteStore) GetExpense(ctx context.Context, expenseID string) (*ledger.Expense, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, scope_id, payer_id, total, currency, method, note, created_at
		 FROM expenses WHERE id = ?`, expenseID)

	exp, err := scanExpense(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ledger.ErrExpenseNotFound, expenseID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	if err := s.loadExpenseDetails(ctx, exp); err != nil {
		return nil, err
	}
	return exp, nil
}

// ListExpensesByScope returns all expenses in a scope, oldest first.
func (s *SQLiteStore) ListExpensesByScope(ctx context.Context, scopeID string) ([]*ledger.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, scope_id, payer_id, total, currency, method, note, created_at
		 FROM expenses WHERE scope_id = ? ORDER BY created_at, id`, scopeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*ledger.Expense
	for rows.Next() {
		exp, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, exp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	for _, exp := range expenses {
		if err := s.loadExpenseDetails(ctx, exp); err != nil {
			return nil, err
		}
	}
	return expenses, nil
}

func insertExpense(ctx context.Context, tx *sql.Tx, exp *ledger.Expense) error {
	methodJSON, err := json.Marshal(exp.Method)
	if err != nil {
		return fmt.Errorf("failed to encode split method: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO expenses (id, scope_id, payer_id, total, currency, method, note, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		exp.ID, exp.ScopeID, exp.PayerID, exp.Total.Amount, exp.Total.Currency,
		string(methodJSON), exp.Note, exp.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	for _, participant := range exp.Participants {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO expense_participants (expense_id, participant) VALUES (?, ?)",
			exp.ID, participant,
		)
		if err != nil {
			return fmt.Errorf("failed to insert expense participant: %w", err)
		}
	}

	for participant, share := range exp.Splits {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO expense_splits (expense_id, participant, amount, currency) VALUES (?, ?, ?, ?)",
			exp.ID, participant, share.Amount, share.Currency,
		)
		if err != nil {
			return fmt.Errorf("failed to insert expense split: %w", err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (*ledger.Expense, error) {
	exp := &ledger.Expense{}
	var totalMinor int64
	var currency, methodJSON string
	var note sql.NullString

	err := row.Scan(&exp.ID, &exp.ScopeID, &exp.PayerID, &totalMinor, &currency,
		&methodJSON, &note, &exp.CreatedAt)
	if err != nil {
		return nil, err
	}

	exp.Total = money.New(totalMinor, currency)
	if note.Valid {
		exp.Note = note.String
	}
	if err := json.Unmarshal([]byte(methodJSON), &exp.Method); err != nil {
		return nil, fmt.Errorf("failed to decode split method: %w", err)
	}
	return exp, nil
}

// loadExpenseDetails fills in participants and splits for an expense.
func (s *SQLiteStore) loadExpenseDetails(ctx context.Context, exp *ledger.Expense) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT participant FROM expense_participants WHERE expense_id = ? ORDER BY participant",
		exp.ID)
	if err != nil {
		return fmt.Errorf("failed to get expense participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var participant string
		if err := rows.Scan(&participant); err != nil {
			return fmt.Errorf("failed to scan expense participant: %w", err)
		}
		exp.Participants = append(exp.Participants, participant)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate expense participants: %w", err)
	}

	splitRows, err := s.db.QueryContext(ctx,
		"SELECT participant, amount, currency FROM expense_splits WHERE expense_id = ?",
		exp.ID)
	if err != nil {
		return fmt.Errorf("failed to get expense splits: %w", err)
	}
	defer splitRows.Close()

	exp.Splits = make(map[string]money.Money)
	for splitRows.Next() {
		var participant, currency string
		var amount int64
		if err := splitRows.Scan(&participant, &amount, &currency); err != nil {
			return fmt.Errorf("failed to scan expense split: %w", err)
		}
		exp.Splits[participant] = money.New(amount, currency)
	}
	if err := splitRows.Err(); err != nil {
		return fmt.Errorf("failed to iterate expense splits: %w", err)
	}
	return nil
}
