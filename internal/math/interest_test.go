package math_test

import (
	"testing"
	"time"

	fpmath "LendLedger/internal/math"
)

// ============================================================================
// Test: simple interest
// ============================================================================

func TestSimpleInterest(t *testing.T) {
	year := time.Duration(fpmath.SecondsPerYear) * time.Second

	// 1000.000000 at 6% for one year
	got := fpmath.SimpleInterest(1_000_000_000, 600, year)
	if got != 60_000_000 {
		t.Errorf("one year at 6%%: got %d, want 60000000", got)
	}

	// half a year halves it
	got = fpmath.SimpleInterest(1_000_000_000, 600, year/2)
	if got != 30_000_000 {
		t.Errorf("half year: got %d, want 30000000", got)
	}

	// truncates toward zero, never rounds up
	got = fpmath.SimpleInterest(1_000_000, 1, time.Second)
	if got != 0 {
		t.Errorf("sub-unit accrual: got %d, want 0", got)
	}

	if fpmath.SimpleInterest(0, 600, year) != 0 {
		t.Error("zero principal should accrue nothing")
	}
	if fpmath.SimpleInterest(1_000_000_000, 0, year) != 0 {
		t.Error("zero rate should accrue nothing")
	}
	if fpmath.SimpleInterest(1_000_000_000, 600, 0) != 0 {
		t.Error("zero elapsed should accrue nothing")
	}
}

// ============================================================================
// Test: daily compounding
// ============================================================================

func TestCompoundDaily(t *testing.T) {
	// one day at 0.1% on 1000.000000
	got := fpmath.CompoundDaily(1_000_000_000, 1_001_000, 1)
	if got != 1_000_000 {
		t.Errorf("one day: got %d, want 1000000", got)
	}

	// two days compound on the grown balance: 1000 * 1.001^2 - 1000
	got = fpmath.CompoundDaily(1_000_000_000, 1_001_000, 2)
	if got != 2_001_000 {
		t.Errorf("two days: got %d, want 2001000", got)
	}

	if fpmath.CompoundDaily(1_000_000_000, 1_000_000, 30) != 0 {
		t.Error("flat factor should accrue nothing")
	}
	if fpmath.CompoundDaily(1_000_000_000, 1_001_000, 0) != 0 {
		t.Error("zero days should accrue nothing")
	}
	if fpmath.CompoundDaily(0, 1_001_000, 30) != 0 {
		t.Error("zero balance should accrue nothing")
	}
}

func TestScaleRate(t *testing.T) {
	// neutral multiplier leaves the factor alone
	if got := fpmath.ScaleRate(1_001_000, fpmath.MultiplierScale); got != 1_001_000 {
		t.Errorf("neutral: got %d, want 1001000", got)
	}
	// 1.25x scales only the excess over 1.0
	if got := fpmath.ScaleRate(1_001_000, 12_500); got != 1_001_250 {
		t.Errorf("1.25x: got %d, want 1001250", got)
	}
	// flat or inverted factors clamp to 1.0
	if got := fpmath.ScaleRate(1_000_000, 12_500); got != 1_000_000 {
		t.Errorf("flat: got %d, want 1000000", got)
	}
	if got := fpmath.ScaleRate(999_000, 12_500); got != 1_000_000 {
		t.Errorf("inverted: got %d, want 1000000", got)
	}
}

// ============================================================================
// Test: price and ratio conversions
// ============================================================================

func TestValueAtPrice(t *testing.T) {
	// 2.000000 units at 2000.000000 each
	if got := fpmath.ValueAtPrice(2_000_000, 2_000_000_000); got != 4_000_000_000 {
		t.Errorf("value: got %d, want 4000000000", got)
	}
	// rounds down
	if got := fpmath.ValueAtPrice(1, 1_999_999); got != 1 {
		t.Errorf("fractional value: got %d, want 1", got)
	}
}

func TestAmountAtPrice_RoundsUp(t *testing.T) {
	// exact division stays exact
	if got := fpmath.AmountAtPrice(4_000_000_000, 2_000_000_000); got != 2_000_000 {
		t.Errorf("exact: got %d, want 2000000", got)
	}
	// an inexact division rounds up so the seized value covers the target
	got := fpmath.AmountAtPrice(1_000_000_000, 3_000_000_000)
	if got != 333_334 {
		t.Errorf("inexact: got %d, want 333334", got)
	}
	if fpmath.ValueAtPrice(got, 3_000_000_000) < 1_000_000_000 {
		t.Error("rounded-up amount must cover the value target")
	}

	if fpmath.AmountAtPrice(1_000_000, 0) != 0 {
		t.Error("non-positive price should yield zero")
	}
}

func TestRequiredCollateralValue_RoundsUp(t *testing.T) {
	// 140% of 1000.000000
	if got := fpmath.RequiredCollateralValue(1_000_000_000, 14_000); got != 1_400_000_000 {
		t.Errorf("exact: got %d, want 1400000000", got)
	}
	// inexact requirement rounds up, keeping the check conservative
	if got := fpmath.RequiredCollateralValue(3, 14_000); got != 5 {
		t.Errorf("inexact: got %d, want 5", got)
	}
}

func TestCollateralizationBps(t *testing.T) {
	if got := fpmath.CollateralizationBps(1_400_000_000, 1_000_000_000); got != 14_000 {
		t.Errorf("ratio: got %d, want 14000", got)
	}
	// rounds down, never overstating health
	if got := fpmath.CollateralizationBps(1_399_999_999, 1_000_000_000); got != 13_999 {
		t.Errorf("ratio rounding: got %d, want 13999", got)
	}
	if got := fpmath.CollateralizationBps(500, 0); got != fpmath.MaxCollateralizationBps {
		t.Errorf("debt-free: got %d, want sentinel", got)
	}
}

func TestApplyBps(t *testing.T) {
	if got := fpmath.ApplyBps(1_000_000_000, 200); got != 20_000_000 {
		t.Errorf("2%%: got %d, want 20000000", got)
	}
	// rounds down
	if got := fpmath.ApplyBps(9_999, 1); got != 0 {
		t.Errorf("sub-unit cut: got %d, want 0", got)
	}
}

// ============================================================================
// Test: int128 helpers
// ============================================================================

func TestMulDiv_Rounding(t *testing.T) {
	if got := fpmath.MulDiv(7, 1, 2, fpmath.RoundDown); got != 3 {
		t.Errorf("round down: got %d, want 3", got)
	}
	// banker's rounding lands on the even neighbor at exact halves
	if got := fpmath.MulDiv(3, 1, 2, fpmath.RoundHalfEven); got != 2 {
		t.Errorf("half even 1.5: got %d, want 2", got)
	}
	if got := fpmath.MulDiv(5, 1, 2, fpmath.RoundHalfEven); got != 2 {
		t.Errorf("half even 2.5: got %d, want 2", got)
	}
}

func TestMulDiv_NoOverflow(t *testing.T) {
	// a * b overflows int64 but the int128 intermediate carries it
	const big = int64(1) << 62
	if got := fpmath.MulDiv(big, 4, 4, fpmath.RoundDown); got != big {
		t.Errorf("wide intermediate: got %d, want %d", got, big)
	}
}
