// Package currency converts Money values between currencies using
// caller-supplied exchange rates. The package never fetches rates itself;
// a RateProvider collaborator supplies them.
package currency

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/splitledger/splitledger/internal/money"
)

// ErrNoRate is returned when a cross-currency conversion is requested and
// no matching rate is available.
var ErrNoRate = errors.New("currency: no exchange rate provided")

// Rate is a timestamped exchange rate between two currencies.
// Value is units of To per one unit of From, kept as an exact rational so
// conversion rounding happens exactly once, at minor-unit granularity.
type Rate struct {
	From  string
	To    string
	Value *big.Rat
	AsOf  time.Time
}

// NewRate builds a Rate from a rational numerator/denominator pair.
func NewRate(from, to string, num, den int64, asOf time.Time) Rate {
	return Rate{From: from, To: to, Value: big.NewRat(num, den), AsOf: asOf}
}

// Converted is a Money value that crossed currencies, carrying the rate
// that produced it so settlement history stays auditable.
type Converted struct {
	Money money.Money
	Rate  Rate
}

// RateProvider supplies exchange rates on demand.
type RateProvider interface {
	// Rate returns the rate from one currency to another.
	// Implementations return ErrNoRate when the pair is unknown.
	Rate(from, to string) (Rate, error)
}

// Normalize converts m to the target currency using the given rate,
// rounding half-to-even to the target's minor units. Same-currency input
// passes through untouched with an identity rate.
func Normalize(m money.Money, target string, rate Rate) (Converted, error) {
	if m.Currency == target {
		return Converted{
			Money: m,
			Rate:  Rate{From: target, To: target, Value: big.NewRat(1, 1), AsOf: rate.AsOf},
		}, nil
	}
	if rate.Value == nil || rate.From != m.Currency || rate.To != target {
		return Converted{}, fmt.Errorf("%w: %s -> %s", ErrNoRate, m.Currency, target)
	}

	scaled := m.ScaleRat(rate.Value, money.RoundHalfEven)
	return Converted{
		Money: money.New(scaled.Amount, target),
		Rate:  rate,
	}, nil
}

// NormalizeWith resolves the rate through a provider and converts.
func NormalizeWith(m money.Money, target string, rates RateProvider) (Converted, error) {
	if m.Currency == target {
		return Normalize(m, target, Rate{})
	}
	if rates == nil {
		return Converted{}, fmt.Errorf("%w: %s -> %s", ErrNoRate, m.Currency, target)
	}
	rate, err := rates.Rate(m.Currency, target)
	if err != nil {
		return Converted{}, err
	}
	return Normalize(m, target, rate)
}
