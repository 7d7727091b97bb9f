package settle

import (
	"fmt"
	"sort"

	"github.com/splitledger/splitledger/internal/money"
)

// Payment is one step of a settlement plan: from pays to the given amount.
type Payment struct {
	FromID string      `json:"from_id"`
	ToID   string      `json:"to_id"`
	Amount money.Money `json:"amount"`
}

// party is one side of the matching, tracked by remaining magnitude.
type party struct {
	id        string
	remaining int64 // always positive
}

// Plan converts a zero-sum balance vector (positive = owed, negative =
// owes, single currency) into an ordered list of payments that zeroes
// every balance.
//
// Exact transaction minimization is a partition problem and NP-hard, so
// the planner is a deterministic greedy: repeatedly match the largest
// debtor with the largest creditor, ties broken by ascending participant
// id. Each payment fully zeroes at least one side, which bounds the plan
// at n-1 payments for n non-zero balances.
func Plan(balances map[string]money.Money) ([]Payment, error) {
	var debtors, creditors []party
	var sum int64
	currency := ""

	for id, bal := range balances {
		if currency == "" {
			currency = bal.Currency
		} else if bal.Currency != currency {
			return nil, fmt.Errorf("%w: %s vs %s", money.ErrCurrencyMismatch, bal.Currency, currency)
		}
		sum += bal.Amount
		switch {
		case bal.IsNegative():
			debtors = append(debtors, party{id: id, remaining: -bal.Amount})
		case bal.IsPositive():
			creditors = append(creditors, party{id: id, remaining: bal.Amount})
		}
	}
	if sum != 0 {
		return nil, fmt.Errorf("%w: residual %d minor units", ErrNonZeroSum, sum)
	}

	// Largest magnitude first; ascending id breaks ties so identical
	// inputs always produce identical plans.
	byMagnitude := func(parties []party) {
		sort.Slice(parties, func(i, j int) bool {
			if parties[i].remaining != parties[j].remaining {
				return parties[i].remaining > parties[j].remaining
			}
			return parties[i].id < parties[j].id
		})
	}
	byMagnitude(debtors)
	byMagnitude(creditors)

	var plan []Payment
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		debtor, creditor := &debtors[i], &creditors[j]
		amount := debtor.remaining
		if creditor.remaining < amount {
			amount = creditor.remaining
		}

		plan = append(plan, Payment{
			FromID: debtor.id,
			ToID:   creditor.id,
			Amount: money.New(amount, currency),
		})

		debtor.remaining -= amount
		creditor.remaining -= amount
		if debtor.remaining == 0 {
			i++
		}
		if creditor.remaining == 0 {
			j++
		}
	}

	// Zero-sum input guarantees both sides exhaust together.
	if i < len(debtors) || j < len(creditors) {
		return nil, fmt.Errorf("%w: unmatched parties after planning", ErrNonZeroSum)
	}
	return plan, nil
}

// Apply replays a plan against a copy of the balance vector and returns
// the resulting balances. Used to verify that a plan zeroes every
// participant.
func Apply(balances map[string]money.Money, plan []Payment) map[string]money.Money {
	out := make(map[string]money.Money, len(balances))
	for id, bal := range balances {
		out[id] = bal
	}
	for _, p := range plan {
		from := out[p.FromID]
		to := out[p.ToID]
		out[p.FromID] = money.New(from.Amount+p.Amount.Amount, from.Currency)
		out[p.ToID] = money.New(to.Amount-p.Amount.Amount, to.Currency)
	}
	return out
}
