// Package metrics exposes Prometheus instrumentation for the ledger core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExpensesRecorded counts expense writes by split method.
	ExpensesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "splitledger_expenses_recorded_total",
		Help: "Number of expenses recorded, by split method.",
	}, []string{"method"})

	// PlansComputed counts settlement plan computations.
	PlansComputed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "splitledger_plans_computed_total",
		Help: "Number of settlement plans computed.",
	})

	// PlanCacheHits counts plans served from the per-scope cache.
	PlanCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "splitledger_plan_cache_hits_total",
		Help: "Number of settlement plans served from cache.",
	})

	// PaymentsRecorded counts settlement payments by outcome.
	PaymentsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "splitledger_payments_recorded_total",
		Help: "Number of settlement payments recorded, by outcome.",
	}, []string{"outcome"})

	// VersionConflicts counts optimistic concurrency failures.
	VersionConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "splitledger_version_conflicts_total",
		Help: "Number of writes rejected for a stale scope version.",
	})

	// ImbalanceDefects counts zero-sum invariant violations. Any non-zero
	// value is a bug signal, not load.
	ImbalanceDefects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "splitledger_imbalance_defects_total",
		Help: "Number of balance folds that failed the zero-sum invariant.",
	})
)
