// Package money provides a fixed-point monetary value type.
// All amounts are integer minor units (cents, pence, yen). No floating
// point is used anywhere in ledger arithmetic.
package money

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// ErrCurrencyMismatch is returned when two Money values with different
// currency codes are combined.
var ErrCurrencyMismatch = errors.New("money: currency mismatch")

// Money is a signed amount in the smallest unit of its currency.
//
// Examples:
//   - New(4900, "USD") = $49.00 (4900 cents)
//   - New(100, "JPY")  = ¥100 (no decimal subdivision)
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// New creates a Money value from minor units and an ISO 4217 code.
// The code is normalized to upper case.
func New(minorUnits int64, currency string) Money {
	return Money{Amount: minorUnits, Currency: strings.ToUpper(currency)}
}

// Zero returns a zero value in the given currency.
func Zero(currency string) Money { return New(0, currency) }

// SameCurrency reports whether both values share a currency code.
func (m Money) SameCurrency(other Money) bool { return m.Currency == other.Currency }

func (m Money) check(other Money) error {
	if !m.SameCurrency(other) {
		return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	return nil
}

// Add returns m + other.
func (m Money) Add(other Money) (Money, error) {
	if err := m.check(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

// Sub returns m - other.
func (m Money) Sub(other Money) (Money, error) {
	if err := m.check(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}, nil
}

// Neg returns the negated value.
func (m Money) Neg() Money { return Money{Amount: -m.Amount, Currency: m.Currency} }

// Abs returns the absolute value.
func (m Money) Abs() Money {
	if m.Amount < 0 {
		return m.Neg()
	}
	return m
}

// Min returns the smaller of two same-currency values.
func (m Money) Min(other Money) (Money, error) {
	if err := m.check(other); err != nil {
		return Money{}, err
	}
	if other.Amount < m.Amount {
		return other, nil
	}
	return m, nil
}

// Cmp compares two same-currency values: -1 if m < other, 0 if equal,
// +1 if m > other.
func (m Money) Cmp(other Money) (int, error) {
	if err := m.check(other); err != nil {
		return 0, err
	}
	switch {
	case m.Amount < other.Amount:
		return -1, nil
	case m.Amount > other.Amount:
		return 1, nil
	default:
		return 0, nil
	}
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool { return m.Amount == 0 }

// IsPositive reports whether the amount is greater than zero.
func (m Money) IsPositive() bool { return m.Amount > 0 }

// IsNegative reports whether the amount is less than zero.
func (m Money) IsNegative() bool { return m.Amount < 0 }

// Equal reports whether amount and currency both match.
func (m Money) Equal(other Money) bool {
	return m.Amount == other.Amount && m.Currency == other.Currency
}

// Rounding selects how a fractional minor-unit result is resolved.
type Rounding int

const (
	// RoundDown truncates toward negative infinity (floor).
	RoundDown Rounding = iota
	// RoundHalfUp rounds .5 away from zero.
	RoundHalfUp
	// RoundHalfEven rounds .5 to the nearest even unit (banker's rounding).
	RoundHalfEven
)

// ScaleRat multiplies the amount by the rational r and rounds the result
// to whole minor units with the given policy. Splitting and currency
// conversion both route through this so rounding is always explicit.
func (m Money) ScaleRat(r *big.Rat, rounding Rounding) Money {
	product := new(big.Rat).Mul(new(big.Rat).SetInt64(m.Amount), r)
	return Money{Amount: ratToInt64(product, rounding), Currency: m.Currency}
}

// ratToInt64 rounds a rational to an int64 with the given policy.
func ratToInt64(r *big.Rat, rounding Rounding) int64 {
	num := new(big.Int).Set(r.Num())
	den := r.Denom() // always > 0

	quo, rem := new(big.Int).QuoRem(num, den, new(big.Int))
	if rem.Sign() == 0 {
		return quo.Int64()
	}

	switch rounding {
	case RoundDown:
		if num.Sign() < 0 {
			quo.Sub(quo, big.NewInt(1))
		}
	case RoundHalfUp, RoundHalfEven:
		// Compare |2*rem| against den.
		twice := new(big.Int).Abs(rem)
		twice.Lsh(twice, 1)
		cmp := twice.Cmp(den)
		roundAway := cmp > 0
		if cmp == 0 {
			if rounding == RoundHalfUp {
				roundAway = true
			} else {
				// Half-even: round away only when the truncated
				// quotient is odd.
				roundAway = quo.Bit(0) == 1
			}
		}
		if roundAway {
			if num.Sign() < 0 {
				quo.Sub(quo, big.NewInt(1))
			} else {
				quo.Add(quo, big.NewInt(1))
			}
		}
	}
	return quo.Int64()
}

// currencyDecimals returns the number of minor-unit decimal places for a
// currency. Defaults to 2 for unknown codes.
func currencyDecimals(code string) int {
	switch strings.ToUpper(code) {
	case "JPY", "KRW", "VND":
		return 0
	case "BHD", "KWD", "OMR", "TND":
		return 3
	default:
		return 2
	}
}

// String formats the value in major units with its currency code,
// e.g. "49.00 USD" or "-100 JPY".
func (m Money) String() string {
	decimals := currencyDecimals(m.Currency)
	if decimals == 0 {
		return fmt.Sprintf("%d %s", m.Amount, m.Currency)
	}

	divisor := int64(1)
	for i := 0; i < decimals; i++ {
		divisor *= 10
	}

	amount := m.Amount
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%0*d %s", sign, amount/divisor, decimals, amount%divisor, m.Currency)
}
