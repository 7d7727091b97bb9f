// Package service orchestrates storage and the pure ledger core. All
// scope mutations flow through here so the plan cache and version stamps
// stay coherent.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/splitledger/splitledger/internal/balance"
	"github.com/splitledger/splitledger/internal/currency"
	"github.com/splitledger/splitledger/internal/ledger"
	"github.com/splitledger/splitledger/internal/metrics"
	"github.com/splitledger/splitledger/internal/money"
	"github.com/splitledger/splitledger/internal/settle"
	"github.com/splitledger/splitledger/internal/storage"
)

// LedgerService exposes the expense ledger and settlement engine over a
// storage backend. Computation (splits, balances, plans) is pure; the
// service owns sequencing, caching, and logging.
type LedgerService struct {
	store storage.Store
	rates currency.RateProvider

	mu    sync.Mutex
	plans map[planKey]cachedPlan
}

type planKey struct {
	scopeID  string
	currency string
}

type cachedPlan struct {
	version int64
	plan    []settle.Payment
}

// NewLedgerService creates a LedgerService with the given storage backend
// and rate provider.
func NewLedgerService(store storage.Store, rates currency.RateProvider) *LedgerService {
	return &LedgerService{
		store: store,
		rates: rates,
		plans: make(map[planKey]cachedPlan),
	}
}

// invalidatePlans drops every cached plan for a scope. Called
// synchronously on each successful mutation so stale plans are never
// served.
func (s *LedgerService) invalidatePlans(scopeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.plans {
		if key.scopeID == scopeID {
			delete(s.plans, key)
		}
	}
}

// CreateScope creates a group or pair scope.
func (s *LedgerService) CreateScope(ctx context.Context, name string, kind ledger.ScopeKind, members []string) (*ledger.Scope, error) {
	if len(members) == 0 {
		return nil, ledger.ErrEmptyParticipants
	}
	if kind == ledger.ScopePair && len(members) != 2 {
		return nil, fmt.Errorf("%w: pair scope needs exactly two members", ledger.ErrInvalidSplit)
	}

	scope := &ledger.Scope{Name: name, Kind: kind, Members: members}
	if err := s.store.CreateScope(ctx, scope); err != nil {
		slog.Error("CreateScope failed", "error", err)
		return nil, err
	}
	slog.Info("Scope created", "scope_id", scope.ID, "kind", kind, "members_count", len(members))
	return scope, nil
}

// GetScope retrieves a scope by id.
func (s *LedgerService) GetScope(ctx context.Context, scopeID string) (*ledger.Scope, error) {
	return s.store.GetScope(ctx, scopeID)
}

// RecordExpenseInput carries the caller-supplied fields for one expense.
type RecordExpenseInput struct {
	ScopeID      string
	PayerID      string
	Total        money.Money
	Method       ledger.SplitMethod
	Participants []string
	Note         string
	// Version is the scope version the caller read, or
	// storage.NoVersionCheck to skip the optimistic check.
	Version int64
}

// RecordExpense validates, derives splits, and appends an expense to the
// scope's ledger.
func (s *LedgerService) RecordExpense(ctx context.Context, in RecordExpenseInput) (*ledger.Expense, error) {
	exp, err := ledger.NewExpense(in.ScopeID, in.PayerID, in.Total, in.Method, in.Participants, in.Note)
	if err != nil {
		slog.Warn("RecordExpense validation failed", "scope_id", in.ScopeID, "error", err)
		return nil, err
	}

	if err := s.store.CreateExpense(ctx, exp, in.Version); err != nil {
		if errors.Is(err, ledger.ErrConcurrentModification) {
			metrics.VersionConflicts.Inc()
		}
		slog.Error("RecordExpense failed", "scope_id", in.ScopeID, "error", err)
		return nil, err
	}

	s.invalidatePlans(in.ScopeID)
	metrics.ExpensesRecorded.WithLabelValues(string(in.Method.Kind)).Inc()
	slog.Info("Expense recorded",
		"scope_id", in.ScopeID,
		"expense_id", exp.ID,
		"payer_id", exp.PayerID,
		"total", exp.Total.String(),
		"method", in.Method.Kind,
	)
	return exp, nil
}

// EditExpense re-derives splits and replaces the stored expense under the
// same id. For balance purposes this is delete-then-recreate.
func (s *LedgerService) EditExpense(ctx context.Context, expenseID string, in RecordExpenseInput) (*ledger.Expense, error) {
	existing, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	if in.ScopeID != "" && in.ScopeID != existing.ScopeID {
		return nil, fmt.Errorf("%w: expense %s belongs to scope %s",
			ledger.ErrExpenseNotFound, expenseID, existing.ScopeID)
	}

	exp, err := ledger.NewExpense(existing.ScopeID, in.PayerID, in.Total, in.Method, in.Participants, in.Note)
	if err != nil {
		slog.Warn("EditExpense validation failed", "expense_id", expenseID, "error", err)
		return nil, err
	}
	exp.ID = expenseID

	if err := s.store.ReplaceExpense(ctx, exp, in.Version); err != nil {
		if errors.Is(err, ledger.ErrConcurrentModification) {
			metrics.VersionConflicts.Inc()
		}
		slog.Error("EditExpense failed", "expense_id", expenseID, "error", err)
		return nil, err
	}

	s.invalidatePlans(existing.ScopeID)
	slog.Info("Expense edited", "scope_id", existing.ScopeID, "expense_id", expenseID)
	return exp, nil
}

// RemoveExpense deletes an expense from its scope's ledger.
func (s *LedgerService) RemoveExpense(ctx context.Context, expenseID string, version int64) error {
	existing, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return err
	}

	if err := s.store.DeleteExpense(ctx, expenseID, version); err != nil {
		if errors.Is(err, ledger.ErrConcurrentModification) {
			metrics.VersionConflicts.Inc()
		}
		slog.Error("RemoveExpense failed", "expense_id", expenseID, "error", err)
		return err
	}

	s.invalidatePlans(existing.ScopeID)
	slog.Info("Expense removed", "scope_id", existing.ScopeID, "expense_id", expenseID)
	return nil
}

// ListExpenses returns a scope's expenses, oldest first.
func (s *LedgerService) ListExpenses(ctx context.Context, scopeID string) ([]*ledger.Expense, error) {
	if _, err := s.store.GetScope(ctx, scopeID); err != nil {
		return nil, err
	}
	return s.store.ListExpensesByScope(ctx, scopeID)
}

// ListSettlements returns a scope's settlement transactions, oldest first.
func (s *LedgerService) ListSettlements(ctx context.Context, scopeID string) ([]*settle.Transaction, error) {
	if _, err := s.store.GetScope(ctx, scopeID); err != nil {
		return nil, err
	}
	return s.store.ListSettlementsByScope(ctx, scopeID)
}

// ComputeBalances folds the scope's ledger into net balances in the
// reporting currency.
func (s *LedgerService) ComputeBalances(ctx context.Context, scopeID, reportingCurrency string) (map[string]money.Money, error) {
	snapshot, err := s.snapshot(ctx, scopeID)
	if err != nil {
		return nil, err
	}

	balances, err := balance.Compute(snapshot.expenses, snapshot.settlements, reportingCurrency, s.rates)
	if err != nil {
		if errors.Is(err, ledger.ErrImbalance) {
			// A broken invariant here means the ledger itself is corrupt.
			metrics.ImbalanceDefects.Inc()
			slog.Error("BUG: balance fold violated zero-sum invariant",
				"scope_id", scopeID, "error", err)
		}
		return nil, err
	}
	return balances, nil
}

// PlanSettlement returns the settlement plan for a scope in the given
// currency, serving a cached plan when the scope has not changed since it
// was computed.
func (s *LedgerService) PlanSettlement(ctx context.Context, scopeID, reportingCurrency string) ([]settle.Payment, int64, error) {
	snapshot, err := s.snapshot(ctx, scopeID)
	if err != nil {
		return nil, 0, err
	}
	key := planKey{scopeID: scopeID, currency: reportingCurrency}

	s.mu.Lock()
	if cached, ok := s.plans[key]; ok && cached.version == snapshot.scope.Version {
		s.mu.Unlock()
		metrics.PlanCacheHits.Inc()
		return clonePlan(cached.plan), snapshot.scope.Version, nil
	}
	s.mu.Unlock()

	balances, err := balance.Compute(snapshot.expenses, snapshot.settlements, reportingCurrency, s.rates)
	if err != nil {
		if errors.Is(err, ledger.ErrImbalance) {
			metrics.ImbalanceDefects.Inc()
			slog.Error("BUG: balance fold violated zero-sum invariant",
				"scope_id", scopeID, "error", err)
		}
		return nil, 0, err
	}

	plan, err := settle.Plan(balances)
	if err != nil {
		if errors.Is(err, settle.ErrNonZeroSum) {
			metrics.ImbalanceDefects.Inc()
			slog.Error("BUG: planner received non-zero-sum balances",
				"scope_id", scopeID, "error", err)
		}
		return nil, 0, err
	}

	s.mu.Lock()
	s.plans[key] = cachedPlan{version: snapshot.scope.Version, plan: plan}
	s.mu.Unlock()

	metrics.PlansComputed.Inc()
	slog.Info("Settlement plan computed",
		"scope_id", scopeID,
		"currency", reportingCurrency,
		"payments_count", len(plan),
	)
	return clonePlan(plan), snapshot.scope.Version, nil
}

// clonePlan hands each caller a private copy; the cached slice must
// never be reachable from outside the service.
func clonePlan(plan []settle.Payment) []settle.Payment {
	if plan == nil {
		return nil
	}
	out := make([]settle.Payment, len(plan))
	copy(out, plan)
	return out
}

type scopeSnapshot struct {
	scope       *ledger.Scope
	expenses    []*ledger.Expense
	settlements []*settle.Transaction
}

// snapshot reads a consistent view of a scope's ledger. Entries are
// append-only, so reading scope version first and entries after yields a
// snapshot at least as new as the version.
func (s *LedgerService) snapshot(ctx context.Context, scopeID string) (*scopeSnapshot, error) {
	scope, err := s.store.GetScope(ctx, scopeID)
	if err != nil {
		return nil, err
	}
	expenses, err := s.store.ListExpensesByScope(ctx, scopeID)
	if err != nil {
		return nil, err
	}
	settlements, err := s.store.ListSettlementsByScope(ctx, scopeID)
	if err != nil {
		return nil, err
	}
	return &scopeSnapshot{scope: scope, expenses: expenses, settlements: settlements}, nil
}
