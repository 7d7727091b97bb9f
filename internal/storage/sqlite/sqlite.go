// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/splitledger/splitledger/internal/ledger"
	"github.com/splitledger/splitledger/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database with pure Go driver
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Run migrations
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateScope persists a new scope with its member list.
func (s *SQLiteStore) CreateScope(ctx context.Context, scope *ledger.Scope) error {
	if scope.ID == "" {
		scope.ID = uuid.New().String()
	}
	if scope.CreatedAt == 0 {
		scope.CreatedAt = time.Now().Unix()
	}
	scope.Version = 1

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO scopes (id, name, kind, version, created_at) VALUES (?, ?, ?, ?, ?)",
		scope.ID, scope.Name, string(scope.Kind), scope.Version, scope.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert scope: %w", err)
	}

	for _, member := range scope.Members {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO scope_members (scope_id, participant) VALUES (?, ?)",
			scope.ID, member,
		)
		if err != nil {
			return fmt.Errorf("failed to insert scope member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetScope retrieves a scope by ID, including members and version stamp.
func (s *SQLiteStore) GetScope(ctx context.Context, scopeID string) (*ledger.Scope, error) {
	scope := &ledger.Scope{}
	var kind string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, kind, version, created_at FROM scopes WHERE id = ?",
		scopeID,
	).Scan(&scope.ID, &scope.Name, &kind, &scope.Version, &scope.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ledger.ErrScopeNotFound, scopeID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scope: %w", err)
	}
	scope.Kind = ledger.ScopeKind(kind)

	rows, err := s.db.QueryContext(ctx,
		"SELECT participant FROM scope_members WHERE scope_id = ? ORDER BY participant",
		scopeID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get scope members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var member string
		if err := rows.Scan(&member); err != nil {
			return nil, fmt.Errorf("failed to scan scope member: %w", err)
		}
		scope.Members = append(scope.Members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scope members: %w", err)
	}

	return scope, nil
}

// bumpVersion increments a scope's version stamp inside tx. When
// expectedVersion is not NoVersionCheck, the increment only succeeds if
// the stored version still matches, enforcing single-writer-per-scope.
func bumpVersion(ctx context.Context, tx *sql.Tx, scopeID string, expectedVersion int64) error {
	var res sql.Result
	var err error
	if expectedVersion == storage.NoVersionCheck {
		res, err = tx.ExecContext(ctx,
			"UPDATE scopes SET version = version + 1 WHERE id = ?", scopeID)
	} else {
		res, err = tx.ExecContext(ctx,
			"UPDATE scopes SET version = version + 1 WHERE id = ? AND version = ?",
			scopeID, expectedVersion)
	}
	if err != nil {
		return fmt.Errorf("failed to bump scope version: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}

	// Distinguish a missing scope from a stale version.
	var current int64
	err = tx.QueryRowContext(ctx, "SELECT version FROM scopes WHERE id = ?", scopeID).Scan(&current)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %s", ledger.ErrScopeNotFound, scopeID)
	}
	if err != nil {
		return fmt.Errorf("failed to read scope version: %w", err)
	}
	return fmt.Errorf("%w: scope %s is at version %d, write expected %d",
		ledger.ErrConcurrentModification, scopeID, current, expectedVersion)
}
