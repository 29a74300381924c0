package math

import (
	"math/big"
	"time"
)

// SecondsPerYear is the accrual denominator for annualized borrow rates.
const SecondsPerYear int64 = 31_536_000

// SimpleInterest computes principal * annualRateBps * elapsed / year.
// Used for lazy borrower-side accrual between touches of a loan.
func SimpleInterest(principal, annualRateBps int64, elapsed time.Duration) int64 {
	seconds := int64(elapsed / time.Second)
	if principal <= 0 || annualRateBps <= 0 || seconds <= 0 {
		return 0
	}

	// interest = principal * rateBps * seconds / (BpsScale * SecondsPerYear)
	num := MultiplyInt128(principal, annualRateBps)
	num.Mul(num, big.NewInt(seconds))

	denom := getInt128()
	denom.Mul(big.NewInt(BpsScale), big.NewInt(SecondsPerYear))

	quotient := getInt128()
	quotient.Quo(num, denom)
	result := quotient.Int64()

	putInt128(num)
	putInt128(denom)
	putInt128(quotient)

	return result
}

// CompoundDaily computes the interest earned on balance over a whole number
// of days at a per-day factor (RateConfig scale, 1_000_000 = 1.0). Returns
// balance * (factor^days - 1). Days are small in practice so the loop is fine.
func CompoundDaily(balance, dailyFactor int64, days int64) int64 {
	if balance <= 0 || days <= 0 || dailyFactor <= RateConfig.Scale {
		return 0
	}

	scale := big.NewInt(RateConfig.Scale)
	factor := big.NewInt(dailyFactor)

	compounded := getInt128()
	compounded.Set(big.NewInt(balance))
	for i := int64(0); i < days; i++ {
		compounded.Mul(compounded, factor)
		compounded.Quo(compounded, scale)
	}

	interest := compounded.Int64() - balance
	putInt128(compounded)

	if interest < 0 {
		return 0
	}
	return interest
}

// ScaleRate rescales a per-day factor's excess over 1.0 by a risk multiplier
// (MultiplierScale fixed point). A multiplier above 1.0x raises lender yield.
func ScaleRate(dailyFactor, multiplier int64) int64 {
	if dailyFactor <= RateConfig.Scale {
		return RateConfig.Scale
	}
	excess := dailyFactor - RateConfig.Scale
	return RateConfig.Scale + MulDiv(excess, multiplier, MultiplierScale, RoundDown)
}
