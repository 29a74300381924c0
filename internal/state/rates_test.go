package state_test

import (
	"testing"

	"LendLedger/internal/state"
)

func newRateModel(t *testing.T) *state.RateModel {
	t.Helper()
	m, err := state.NewRateModel(state.DefaultRateParams())
	if err != nil {
		t.Fatalf("new rate model: %v", err)
	}
	return m
}

// ============================================================================
// Test: utilization
// ============================================================================

func TestUtilization_EmptyPool(t *testing.T) {
	m := newRateModel(t)
	if u := m.UtilizationBps(0, 0); u != 0 {
		t.Errorf("empty pool: got %d, want 0", u)
	}
	if u := m.UtilizationBps(100, 0); u != 0 {
		t.Errorf("zero funds: got %d, want 0", u)
	}
}

func TestUtilization_CappedAtFull(t *testing.T) {
	m := newRateModel(t)
	if u := m.UtilizationBps(2_000, 1_000); u != 10_000 {
		t.Errorf("over-borrowed: got %d, want 10000", u)
	}
}

func TestUtilization_Half(t *testing.T) {
	m := newRateModel(t)
	if u := m.UtilizationBps(500, 1_000); u != 5_000 {
		t.Errorf("got %d, want 5000", u)
	}
}

// ============================================================================
// Test: borrow rate curve
// ============================================================================

func TestBorrowRate_MonotoneInUtilization(t *testing.T) {
	m := newRateModel(t)
	var signal state.MarketSignal

	prev := m.BorrowRateBps(0, signal)
	for u := int64(100); u <= 10_000; u += 100 {
		rate := m.BorrowRateBps(u, signal)
		if rate < prev {
			t.Fatalf("rate fell from %d to %d at utilization %d", prev, rate, u)
		}
		prev = rate
	}
}

func TestBorrowRate_AtZeroIsBase(t *testing.T) {
	m := newRateModel(t)
	p := state.DefaultRateParams()
	if rate := m.BorrowRateBps(0, state.MarketSignal{}); rate != p.BaseRateBps {
		t.Errorf("got %d, want base %d", rate, p.BaseRateBps)
	}
}

func TestBorrowRate_SteeperAboveKink(t *testing.T) {
	m := newRateModel(t)
	p := state.DefaultRateParams()
	var signal state.MarketSignal

	below := m.BorrowRateBps(p.KinkBps, signal) - m.BorrowRateBps(p.KinkBps-1_000, signal)
	above := m.BorrowRateBps(p.KinkBps+1_000, signal) - m.BorrowRateBps(p.KinkBps, signal)
	if above <= below {
		t.Errorf("slope above kink (%d) should exceed slope below (%d)", above, below)
	}
}

func TestBorrowRate_PremiumOnVolatility(t *testing.T) {
	m := newRateModel(t)
	p := state.DefaultRateParams()

	calm := m.BorrowRateBps(5_000, state.MarketSignal{MaxVolBps: p.VolThresholdBps})
	turbulent := m.BorrowRateBps(5_000, state.MarketSignal{MaxVolBps: p.VolThresholdBps + 1})
	if turbulent != calm+p.PremiumBps {
		t.Errorf("premium not applied: calm=%d turbulent=%d", calm, turbulent)
	}
}

func TestBorrowRate_PremiumOnDegradedOracle(t *testing.T) {
	m := newRateModel(t)
	p := state.DefaultRateParams()

	healthy := m.BorrowRateBps(5_000, state.MarketSignal{})
	degraded := m.BorrowRateBps(5_000, state.MarketSignal{Degraded: true})
	if degraded != healthy+p.PremiumBps {
		t.Errorf("degraded oracle premium not applied: healthy=%d degraded=%d", healthy, degraded)
	}
}

// ============================================================================
// Test: borrower and supply rates
// ============================================================================

func TestBorrowerRate_TierModifierFlooredAtZero(t *testing.T) {
	m := newRateModel(t)

	base := m.BorrowRateBps(0, state.MarketSignal{})
	if rate := m.BorrowerRateBps(0, state.MarketSignal{}, -(base + 500)); rate != 0 {
		t.Errorf("negative rate should floor at 0, got %d", rate)
	}
	if rate := m.BorrowerRateBps(0, state.MarketSignal{}, 150); rate != base+150 {
		t.Errorf("got %d, want %d", rate, base+150)
	}
}

func TestSupplyRate_BelowBorrowRate(t *testing.T) {
	m := newRateModel(t)

	for _, u := range []int64{1_000, 5_000, 9_000, 10_000} {
		borrow := m.BorrowRateBps(u, state.MarketSignal{})
		supply := m.SupplyRateBps(u, state.MarketSignal{})
		if supply >= borrow {
			t.Errorf("utilization %d: supply %d should be below borrow %d", u, supply, borrow)
		}
	}
}

// ============================================================================
// Test: parameter updates
// ============================================================================

func TestRateUpdate_BoundedStep(t *testing.T) {
	m := newRateModel(t)

	next := state.DefaultRateParams()
	next.BaseRateBps += 300
	if err := m.Update(next); err != nil {
		t.Fatalf("bounded update rejected: %v", err)
	}

	jump := m.Params()
	jump.Slope2Bps += 3_000
	if err := m.Update(jump); err == nil {
		t.Error("oversized slope2 step should be rejected")
	}
}

func TestRateParams_Validate(t *testing.T) {
	p := state.DefaultRateParams()
	p.KinkBps = 10_000
	if err := p.Validate(); err == nil {
		t.Error("kink at 100% should be rejected")
	}

	p = state.DefaultRateParams()
	p.Slope1Bps = -1
	if err := p.Validate(); err == nil {
		t.Error("negative slope should be rejected")
	}
}
