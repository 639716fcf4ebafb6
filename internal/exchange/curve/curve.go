// Package curve holds the bonding-curve pricing rules. Everything here is a
// pure function of its arguments; the price of a company depends only on its
// current sold count, never on trade history.
package curve

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidSupply = errors.New("supply must be positive")
	ErrInvalidPrice  = errors.New("price must be positive")
	ErrSoldRange     = errors.New("sold must be within [0, supply]")
	ErrOverflow      = errors.New("value exceeds int64 range")
	ErrBothDesired   = errors.New("only one of desired supply and desired price may be set")
	ErrDerivedZero   = errors.New("valuation too small for the requested supply or price")
)

// MinimumPurchaseMultiplier applies when supply is at least this many tokens.
const MinimumPurchaseMultiplier = 5

var maxInt64 = decimal.NewFromInt(math.MaxInt64)

// Price returns round(base × (1 + sold/supply)), rounding half away from zero.
// Price(base, supply, 0) == base and the result is non-decreasing in sold.
func Price(base, supply, sold int64) (int64, error) {
	if supply <= 0 {
		return 0, ErrInvalidSupply
	}
	if base <= 0 {
		return 0, ErrInvalidPrice
	}
	if sold < 0 || sold > supply {
		return 0, ErrSoldRange
	}
	// base × (supply + sold) / supply, done in integer space so rounding is exact.
	num := decimal.NewFromInt(base).Mul(decimal.NewFromInt(supply).Add(decimal.NewFromInt(sold)))
	den := decimal.NewFromInt(supply)
	q, r := num.QuoRem(den, 0)
	if r.Mul(decimal.NewFromInt(2)).GreaterThanOrEqual(den) {
		q = q.Add(decimal.NewFromInt(1))
	}
	if q.GreaterThan(maxInt64) {
		return 0, ErrOverflow
	}
	return q.IntPart(), nil
}

// MinimumPurchase is price × 5 when supply ≥ 5, else price.
func MinimumPurchase(price, supply int64) (int64, error) {
	mult := int64(1)
	if supply >= MinimumPurchaseMultiplier {
		mult = MinimumPurchaseMultiplier
	}
	v := decimal.NewFromInt(price).Mul(decimal.NewFromInt(mult))
	if v.GreaterThan(maxInt64) {
		return 0, ErrOverflow
	}
	return v.IntPart(), nil
}

// Cost returns price × amount without overflowing.
func Cost(price, amount int64) decimal.Decimal {
	return decimal.NewFromInt(price).Mul(decimal.NewFromInt(amount))
}

// MeetsMinimum reports whether amount tokens at price cost at least minimum.
func MeetsMinimum(price, amount, minimum int64) bool {
	return Cost(price, amount).GreaterThanOrEqual(decimal.NewFromInt(minimum))
}

// Derive resolves (supply, price) from a valuation and at most one desired
// value. The unset value is valuation divided by the set one (integer
// division). With neither set, price is defaultPrice.
func Derive(valuation int64, desiredSupply, desiredPrice *int64, defaultPrice int64) (supply, price int64, err error) {
	if desiredSupply != nil && desiredPrice != nil {
		return 0, 0, ErrBothDesired
	}
	switch {
	case desiredSupply != nil:
		if *desiredSupply <= 0 {
			return 0, 0, ErrInvalidSupply
		}
		supply = *desiredSupply
		price = valuation / supply
	case desiredPrice != nil:
		if *desiredPrice <= 0 {
			return 0, 0, ErrInvalidPrice
		}
		price = *desiredPrice
		supply = valuation / price
	default:
		if defaultPrice <= 0 {
			return 0, 0, ErrInvalidPrice
		}
		price = defaultPrice
		supply = valuation / price
	}
	if supply <= 0 || price <= 0 {
		return 0, 0, ErrDerivedZero
	}
	return supply, price, nil
}
