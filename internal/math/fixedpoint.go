package math

import (
	"math/big"
	"sync"
)

// DecimalConfig defines fixed-point precision
type DecimalConfig struct {
	DecimalPrecision int   // Number of decimal places
	Scale            int64 // 10^DecimalPrecision
}

var (
	// Standard configs
	AmountConfig = DecimalConfig{DecimalPrecision: 6, Scale: 1_000_000} // 0.000001 of an asset unit
	PriceConfig  = DecimalConfig{DecimalPrecision: 6, Scale: 1_000_000} // price per whole unit, in base currency
	RateConfig   = DecimalConfig{DecimalPrecision: 6, Scale: 1_000_000} // daily compounding factor (1_000_000 = 1.0)
)

// BpsScale is the basis-point denominator for ratios, rates, and fees.
const BpsScale int64 = 10_000

// MultiplierScale is the fixed-point denominator for risk multipliers
// (10_000 = 1.0x).
const MultiplierScale int64 = 10_000

// MaxCollateralizationBps is the sentinel ratio for debt-free positions.
const MaxCollateralizationBps int64 = 1 << 50

// Int128 is a pooled big.Int for intermediate calculations
var int128Pool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getInt128() *big.Int {
	return int128Pool.Get().(*big.Int)
}

func putInt128(v *big.Int) {
	v.SetInt64(0) // Clear before returning to pool
	int128Pool.Put(v)
}

// MultiplyInt128 performs a * b using int128 to prevent overflow
func MultiplyInt128(a, b int64) *big.Int {
	result := getInt128()
	result.Mul(big.NewInt(a), big.NewInt(b))
	return result
}

// DivideInt128 performs numerator / denominator with rounding
func DivideInt128(numerator *big.Int, denominator int64, roundingMode RoundingMode) int64 {
	denom := big.NewInt(denominator)
	quotient := getInt128()
	remainder := getInt128()

	quotient.DivMod(numerator, denom, remainder)

	result := quotient.Int64()

	if roundingMode == RoundHalfEven {
		// Banker's rounding: if remainder == denominator/2, round to even
		half := big.NewInt(denominator / 2)
		cmp := remainder.Cmp(half)

		if cmp > 0 {
			result++
		} else if cmp == 0 && denominator%2 == 0 {
			if result%2 != 0 {
				result++
			}
		}
	}

	putInt128(quotient)
	putInt128(remainder)

	return result
}

type RoundingMode int

const (
	RoundHalfEven RoundingMode = iota // Banker's rounding (default)
	RoundDown
	RoundUp
)

// MulDiv computes a * b / denominator through an int128 intermediate.
func MulDiv(a, b, denominator int64, roundingMode RoundingMode) int64 {
	num := MultiplyInt128(a, b)
	result := DivideInt128(num, denominator, roundingMode)
	putInt128(num)
	return result
}

// ValueAtPrice converts an asset amount to base-currency value.
// amount is in AmountConfig scale, price in PriceConfig scale.
func ValueAtPrice(amount, price int64) int64 {
	return MulDiv(amount, price, PriceConfig.Scale, RoundDown)
}

// AmountAtPrice converts a base-currency value back to an asset amount.
// Rounds up so that seizures never under-collect against a value target.
func AmountAtPrice(value, price int64) int64 {
	if price <= 0 {
		return 0
	}
	num := MultiplyInt128(value, PriceConfig.Scale)
	num.Add(num, big.NewInt(price-1))
	result := DivideInt128(num, price, RoundDown)
	putInt128(num)
	return result
}

// ApplyBps computes amount * bps / 10_000, rounding down.
func ApplyBps(amount, bps int64) int64 {
	return MulDiv(amount, bps, BpsScale, RoundDown)
}

// RequiredCollateralValue returns debt * ratioBps / 10_000, rounding up.
// Rounding up keeps the health check conservative.
func RequiredCollateralValue(debt, ratioBps int64) int64 {
	num := MultiplyInt128(debt, ratioBps)
	num.Add(num, big.NewInt(BpsScale-1))
	result := DivideInt128(num, BpsScale, RoundDown)
	putInt128(num)
	return result
}

// CollateralizationBps returns collateralValue / debt as basis points,
// rounding down. A debt of zero maps to MaxCollateralizationBps.
func CollateralizationBps(collateralValue, debt int64) int64 {
	if debt <= 0 {
		return MaxCollateralizationBps
	}
	return MulDiv(collateralValue, BpsScale, debt, RoundDown)
}
