package state_test

import (
	"testing"

	"LendLedger/internal/state"
)

// ============================================================================
// Test: TierEngine.TierOf
// ============================================================================

func TestTierOf_Totality(t *testing.T) {
	eng, err := state.NewTierEngine(state.DefaultTierTable(), 1_000)
	if err != nil {
		t.Fatalf("new tier engine: %v", err)
	}

	for score := -10; score <= 110; score++ {
		tier := eng.TierOf(score)
		if tier < 1 || tier > state.TierCount {
			t.Fatalf("score %d mapped to tier %d, want 1..%d", score, tier, state.TierCount)
		}
	}
}

func TestTierOf_Monotonic(t *testing.T) {
	eng, err := state.NewTierEngine(state.DefaultTierTable(), 1_000)
	if err != nil {
		t.Fatalf("new tier engine: %v", err)
	}

	prev := eng.TierOf(0)
	for score := 1; score <= 100; score++ {
		tier := eng.TierOf(score)
		if tier > prev {
			t.Fatalf("tier worsened from %d to %d as score rose to %d", prev, tier, score)
		}
		prev = tier
	}
}

func TestTierOf_Boundaries(t *testing.T) {
	eng, _ := state.NewTierEngine(state.DefaultTierTable(), 1_000)

	cases := []struct {
		score int
		tier  int
	}{
		{100, 1},
		{80, 1},
		{79, 2},
		{60, 2},
		{59, 3},
		{40, 3},
		{39, 4},
		{20, 4},
		{19, 5},
		{0, 5},
	}
	for _, c := range cases {
		if got := eng.TierOf(c.score); got != c.tier {
			t.Errorf("score %d: got tier %d, want %d", c.score, got, c.tier)
		}
	}
}

func TestTierOf_BelowAllBandsIsMostConservative(t *testing.T) {
	eng, _ := state.NewTierEngine(state.DefaultTierTable(), 1_000)
	if got := eng.TierOf(-5); got != state.TierCount {
		t.Errorf("negative score: got tier %d, want %d", got, state.TierCount)
	}
}

// ============================================================================
// Test: TierEngine.TermsOf
// ============================================================================

func TestTermsOf_MaxLoanScalesWithPool(t *testing.T) {
	eng, _ := state.NewTierEngine(state.DefaultTierTable(), 1_000)

	terms, err := eng.TermsOf(1, 1_000_000_000)
	if err != nil {
		t.Fatalf("terms: %v", err)
	}
	// tier 1 fraction is 25%
	if terms.MaxLoanAmount != 250_000_000 {
		t.Errorf("max loan: got %d, want 250000000", terms.MaxLoanAmount)
	}
	if terms.CollateralRatioBps != 14_000 {
		t.Errorf("ratio: got %d, want 14000", terms.CollateralRatioBps)
	}
}

func TestTermsOf_Tier5Ineligible(t *testing.T) {
	eng, _ := state.NewTierEngine(state.DefaultTierTable(), 1_000)

	terms, err := eng.TermsOf(5, 1_000_000_000)
	if err != nil {
		t.Fatalf("terms: %v", err)
	}
	if terms.MaxLoanAmount != 0 {
		t.Errorf("tier 5 max loan: got %d, want 0", terms.MaxLoanAmount)
	}
}

func TestTermsOf_IndexBounds(t *testing.T) {
	eng, _ := state.NewTierEngine(state.DefaultTierTable(), 1_000)
	if _, err := eng.TermsOf(0, 100); err == nil {
		t.Error("tier 0 should be rejected")
	}
	if _, err := eng.TermsOf(6, 100); err == nil {
		t.Error("tier 6 should be rejected")
	}
}

// ============================================================================
// Test: TierEngine.Update
// ============================================================================

func TestTierUpdate_BoundedStep(t *testing.T) {
	eng, _ := state.NewTierEngine(state.DefaultTierTable(), 1_000)

	next := state.DefaultTierTable()
	next.Version = 2
	next.Tiers[0].CollateralRatioBps += 500
	if err := eng.Update(next); err != nil {
		t.Fatalf("bounded update rejected: %v", err)
	}

	jump := eng.Table()
	jump.Version = 3
	jump.Tiers[0].CollateralRatioBps += 5_000
	if err := eng.Update(jump); err == nil {
		t.Error("oversized ratio step should be rejected")
	}
}

func TestTierUpdate_StaleVersion(t *testing.T) {
	eng, _ := state.NewTierEngine(state.DefaultTierTable(), 1_000)

	next := state.DefaultTierTable()
	// version 1 again, not 2
	if err := eng.Update(next); err == nil {
		t.Error("same-version update should be rejected")
	}
}

func TestTierValidate_RejectsGappedBands(t *testing.T) {
	table := state.DefaultTierTable()
	table.Tiers[1].MaxScore = 70 // leaves 71..79 uncovered
	if err := table.Validate(); err == nil {
		t.Error("gapped score bands should be rejected")
	}
}

func TestTierValidate_RejectsRatioBelowPar(t *testing.T) {
	table := state.DefaultTierTable()
	table.Tiers[0].CollateralRatioBps = 9_000
	if err := table.Validate(); err == nil {
		t.Error("ratio below 100% should be rejected")
	}
}
