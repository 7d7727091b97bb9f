package ledger

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/splitledger/splitledger/internal/money"
)

// SplitKind identifies the split method attached to an expense.
type SplitKind string

const (
	SplitEqual      SplitKind = "equal"
	SplitPercentage SplitKind = "percentage"
	SplitShares     SplitKind = "shares"
	SplitExact      SplitKind = "exact"
)

// totalBasisPoints is 100% expressed in basis points.
const totalBasisPoints = 10_000

// SplitMethod is a tagged variant: exactly one of the payload fields is
// meaningful for a given Kind.
type SplitMethod struct {
	Kind SplitKind `json:"kind"`

	// PercentBps maps participant to their percentage in basis points
	// (10000 = 100%). Used when Kind == SplitPercentage.
	PercentBps map[string]int64 `json:"percent_bps,omitempty"`

	// Weights maps participant to a proportional share weight.
	// Used when Kind == SplitShares.
	Weights map[string]int64 `json:"weights,omitempty"`

	// Amounts maps participant to their declared exact share.
	// Used when Kind == SplitExact.
	Amounts map[string]money.Money `json:"amounts,omitempty"`
}

// EqualSplit splits the total evenly across all participants.
func EqualSplit() SplitMethod { return SplitMethod{Kind: SplitEqual} }

// PercentageSplit splits by percentage, given in basis points per
// participant (10000 = 100%).
func PercentageSplit(bps map[string]int64) SplitMethod {
	return SplitMethod{Kind: SplitPercentage, PercentBps: bps}
}

// SharesSplit splits proportionally to integer weights.
func SharesSplit(weights map[string]int64) SplitMethod {
	return SplitMethod{Kind: SplitShares, Weights: weights}
}

// ExactSplit uses caller-declared amounts, which must sum to the total.
func ExactSplit(amounts map[string]money.Money) SplitMethod {
	return SplitMethod{Kind: SplitExact, Amounts: amounts}
}

// ComputeSplits derives each participant's share of total according to the
// split method. The result always satisfies sum(shares) == total exactly:
// integer rounding residuals are assigned deterministically (ascending
// participant id for equal splits, last participant for percentage and
// weighted splits) so plans are reproducible.
func ComputeSplits(total money.Money, method SplitMethod, participants []string) (map[string]money.Money, error) {
	if len(participants) == 0 {
		return nil, ErrEmptyParticipants
	}
	if total.IsNegative() {
		return nil, fmt.Errorf("%w: total %s is negative", ErrInvalidSplit, total)
	}

	ordered := make([]string, len(participants))
	copy(ordered, participants)
	sort.Strings(ordered)
	for i := 1; i < len(ordered); i++ {
		if ordered[i] == ordered[i-1] {
			return nil, fmt.Errorf("%w: duplicate participant %q", ErrInvalidSplit, ordered[i])
		}
	}

	switch method.Kind {
	case SplitEqual:
		return splitEqual(total, ordered)
	case SplitPercentage:
		return splitProportional(total, ordered, method.PercentBps, true)
	case SplitShares:
		return splitProportional(total, ordered, method.Weights, false)
	case SplitExact:
		return splitExact(total, ordered, method.Amounts)
	default:
		return nil, fmt.Errorf("%w: unknown split kind %q", ErrInvalidSplit, method.Kind)
	}
}

// splitEqual divides total by n with integer division and hands the
// remainder out one minor unit at a time in ascending participant order,
// so 100 across three people yields 34/33/33.
func splitEqual(total money.Money, ordered []string) (map[string]money.Money, error) {
	n := int64(len(ordered))
	base := total.Amount / n
	remainder := total.Amount - base*n

	splits := make(map[string]money.Money, len(ordered))
	for i, p := range ordered {
		share := base
		if int64(i) < remainder {
			share++
		}
		splits[p] = money.New(share, total.Currency)
	}
	return splits, nil
}

// splitProportional handles both percentage and weighted splits: every
// participant but the last gets round(total * weight / weightSum), and the
// last participant (in ascending-id order) absorbs the rounding residual.
func splitProportional(total money.Money, ordered []string, weights map[string]int64, isPercent bool) (map[string]money.Money, error) {
	var weightSum int64
	for _, p := range ordered {
		w, ok := weights[p]
		if !ok {
			return nil, fmt.Errorf("%w: participant %q has no weight", ErrInvalidSplit, p)
		}
		if w < 0 {
			return nil, fmt.Errorf("%w: participant %q has negative weight %d", ErrInvalidSplit, p, w)
		}
		weightSum += w
	}
	if len(weights) != len(ordered) {
		return nil, fmt.Errorf("%w: weight entries do not match participants", ErrInvalidSplit)
	}
	if isPercent && weightSum != totalBasisPoints {
		return nil, fmt.Errorf("%w: percentages sum to %d bps, want %d", ErrInvalidSplit, weightSum, totalBasisPoints)
	}
	if weightSum == 0 {
		return nil, fmt.Errorf("%w: all weights are zero", ErrInvalidSplit)
	}

	splits := make(map[string]money.Money, len(ordered))
	var assigned int64
	for _, p := range ordered[:len(ordered)-1] {
		share := total.ScaleRat(big.NewRat(weights[p], weightSum), money.RoundHalfUp)
		splits[p] = share
		assigned += share.Amount
	}

	last := ordered[len(ordered)-1]
	residual := total.Amount - assigned
	if residual < 0 {
		return nil, fmt.Errorf("%w: residual share for %q is negative", ErrInvalidSplit, last)
	}
	splits[last] = money.New(residual, total.Currency)
	return splits, nil
}

// splitExact validates caller-declared amounts: same currency as the
// total, no negatives, and an exact sum. Nothing is computed.
func splitExact(total money.Money, ordered []string, amounts map[string]money.Money) (map[string]money.Money, error) {
	if len(amounts) != len(ordered) {
		return nil, fmt.Errorf("%w: amount entries do not match participants", ErrInvalidSplit)
	}

	var sum int64
	splits := make(map[string]money.Money, len(ordered))
	for _, p := range ordered {
		amt, ok := amounts[p]
		if !ok {
			return nil, fmt.Errorf("%w: participant %q has no amount", ErrInvalidSplit, p)
		}
		if amt.Currency != total.Currency {
			return nil, fmt.Errorf("%w: share for %q is %s, expense is %s",
				money.ErrCurrencyMismatch, p, amt.Currency, total.Currency)
		}
		if amt.IsNegative() {
			return nil, fmt.Errorf("%w: participant %q has negative share %s", ErrInvalidSplit, p, amt)
		}
		splits[p] = amt
		sum += amt.Amount
	}

	if sum != total.Amount {
		return nil, fmt.Errorf("%w: shares sum to %d, total is %d", ErrSplitMismatch, sum, total.Amount)
	}
	return splits, nil
}

// NewExpense validates inputs and builds an Expense with derived splits.
// The storage layer assigns ID and CreatedAt.
func NewExpense(scopeID, payerID string, total money.Money, method SplitMethod, participants []string, note string) (*Expense, error) {
	if len(participants) == 0 {
		return nil, ErrEmptyParticipants
	}
	if !contains(participants, payerID) {
		return nil, fmt.Errorf("%w: %q", ErrPayerNotParticipant, payerID)
	}

	splits, err := ComputeSplits(total, method, participants)
	if err != nil {
		return nil, err
	}

	return &Expense{
		ScopeID:      scopeID,
		PayerID:      payerID,
		Total:        total,
		Method:       method,
		Participants: participants,
		Splits:       splits,
		Note:         note,
	}, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
