// Package balance folds a scope's ledger entries into signed per-
// participant net balances. The fold is pure: it reads an immutable
// snapshot of expenses and settlements and performs no I/O.
package balance

import (
	"fmt"
	"sort"

	"github.com/splitledger/splitledger/internal/currency"
	"github.com/splitledger/splitledger/internal/ledger"
	"github.com/splitledger/splitledger/internal/money"
	"github.com/splitledger/splitledger/internal/settle"
)

// Compute aggregates expenses and settlement payments into a net balance
// per participant, normalized to the reporting currency. Positive means
// the participant is owed; negative means they owe.
//
// For each expense the payer gains the total and every split participant
// loses their share; the payer's own share nets against their gain. For
// each settlement payment the payer (from) gains what they paid and the
// payee (to) loses it.
//
// The result must sum to exactly zero. A non-zero sum means an upstream
// component corrupted the ledger, so the fold fails with ErrImbalance
// instead of returning a skewed result.
func Compute(expenses []*ledger.Expense, settlements []*settle.Transaction, reportingCurrency string, rates currency.RateProvider) (map[string]money.Money, error) {
	totals := make(map[string]int64)

	for _, exp := range expenses {
		total, shares, err := convertExpense(exp, reportingCurrency, rates)
		if err != nil {
			return nil, fmt.Errorf("expense %s: %w", exp.ID, err)
		}
		totals[exp.PayerID] += total
		for participant, share := range shares {
			totals[participant] -= share
		}
	}

	for _, txn := range settlements {
		paid := txn.Paid()
		if paid.IsZero() {
			continue
		}
		conv, err := currency.NormalizeWith(paid, reportingCurrency, rates)
		if err != nil {
			return nil, fmt.Errorf("settlement %s: %w", txn.ID, err)
		}
		// One converted amount applied to both sides keeps the fold
		// balanced regardless of rounding.
		totals[txn.FromID] += conv.Money.Amount
		totals[txn.ToID] -= conv.Money.Amount
	}

	balances := make(map[string]money.Money, len(totals))
	var sum int64
	for participant, amount := range totals {
		balances[participant] = money.New(amount, reportingCurrency)
		sum += amount
	}
	if sum != 0 {
		return nil, fmt.Errorf("%w: residual %d minor units of %s",
			ledger.ErrImbalance, sum, reportingCurrency)
	}
	return balances, nil
}

// convertExpense normalizes an expense's total and shares to the
// reporting currency. Shares are converted individually and the rounding
// residual against the converted total is absorbed by the last
// participant in ascending id order, the same residual-absorption rule
// the split methods use, so converted shares still sum to the converted
// total exactly.
func convertExpense(exp *ledger.Expense, reportingCurrency string, rates currency.RateProvider) (int64, map[string]int64, error) {
	// Same-currency expenses use their stored splits untouched: the
	// residual rule below must never paper over a corrupted ledger entry.
	if exp.Total.Currency == reportingCurrency {
		shares := make(map[string]int64, len(exp.Splits))
		for participant, share := range exp.Splits {
			if share.Currency != reportingCurrency {
				return 0, nil, fmt.Errorf("%w: share for %q is %s",
					money.ErrCurrencyMismatch, participant, share.Currency)
			}
			shares[participant] = share.Amount
		}
		return exp.Total.Amount, shares, nil
	}

	convTotal, err := currency.NormalizeWith(exp.Total, reportingCurrency, rates)
	if err != nil {
		return 0, nil, err
	}

	ordered := make([]string, 0, len(exp.Splits))
	for participant := range exp.Splits {
		ordered = append(ordered, participant)
	}
	sort.Strings(ordered)

	shares := make(map[string]int64, len(ordered))
	var assigned int64
	for _, participant := range ordered[:len(ordered)-1] {
		conv, err := currency.NormalizeWith(exp.Splits[participant], reportingCurrency, rates)
		if err != nil {
			return 0, nil, err
		}
		shares[participant] = conv.Money.Amount
		assigned += conv.Money.Amount
	}
	last := ordered[len(ordered)-1]
	shares[last] = convTotal.Money.Amount - assigned

	return convTotal.Money.Amount, shares, nil
}
