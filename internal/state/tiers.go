package state

import (
	"errors"
	"fmt"

	fpmath "LendLedger/internal/math"
)

var (
	errTierCount       = errors.New("tier engine: config must define exactly 5 tiers")
	errTierBands       = errors.New("tier engine: score bands must be contiguous and descending")
	errTierRatio       = errors.New("tier engine: collateral ratio must be at least 100%")
	errTierFraction    = errors.New("tier engine: max loan fraction out of range")
	errTierStep        = errors.New("tier engine: update exceeds max single-step change")
	errTierVersion     = errors.New("tier engine: stale config version")
	ErrIneligibleTier  = errors.New("tier engine: tier is not eligible to borrow")
	errTierIndexBounds = errors.New("tier engine: tier index out of range")
)

// TierCount is fixed by the credit policy.
const TierCount = 5

// TierConfig defines the borrow terms for one credit-score band.
type TierConfig struct {
	MinScore           int   `json:"min_score"`
	MaxScore           int   `json:"max_score"`
	CollateralRatioBps int64 `json:"collateral_ratio_bps"` // >= 10_000 (100%)
	RateModifierBps    int64 `json:"rate_modifier_bps"`    // signed, added to the model rate
	MaxLoanFractionBps int64 `json:"max_loan_fraction_bps"` // of pool totalFunds; 0 = ineligible
}

// TierTable is the versioned tier configuration, ordered by descending
// score band (index 0 = tier 1, the strongest credit).
type TierTable struct {
	Version int64                 `json:"version"`
	Tiers   [TierCount]TierConfig `json:"tiers"`
}

// DefaultTierTable mirrors the launch credit policy.
func DefaultTierTable() TierTable {
	return TierTable{
		Version: 1,
		Tiers: [TierCount]TierConfig{
			{MinScore: 80, MaxScore: 100, CollateralRatioBps: 14_000, RateModifierBps: -100, MaxLoanFractionBps: 2_500},
			{MinScore: 60, MaxScore: 79, CollateralRatioBps: 16_000, RateModifierBps: -50, MaxLoanFractionBps: 2_000},
			{MinScore: 40, MaxScore: 59, CollateralRatioBps: 18_000, RateModifierBps: 0, MaxLoanFractionBps: 1_500},
			{MinScore: 20, MaxScore: 39, CollateralRatioBps: 20_000, RateModifierBps: 150, MaxLoanFractionBps: 1_000},
			{MinScore: 0, MaxScore: 19, CollateralRatioBps: 25_000, RateModifierBps: 300, MaxLoanFractionBps: 0},
		},
	}
}

// Validate checks band ordering and term ranges.
func (t *TierTable) Validate() error {
	for i, tier := range t.Tiers {
		if tier.CollateralRatioBps < fpmath.BpsScale {
			return fmt.Errorf("%w: tier %d ratio %d", errTierRatio, i+1, tier.CollateralRatioBps)
		}
		if tier.MaxLoanFractionBps < 0 || tier.MaxLoanFractionBps > fpmath.BpsScale {
			return fmt.Errorf("%w: tier %d fraction %d", errTierFraction, i+1, tier.MaxLoanFractionBps)
		}
		if tier.MinScore > tier.MaxScore {
			return fmt.Errorf("%w: tier %d min %d > max %d", errTierBands, i+1, tier.MinScore, tier.MaxScore)
		}
		if i > 0 && t.Tiers[i-1].MinScore != tier.MaxScore+1 {
			return fmt.Errorf("%w: gap between tier %d and %d", errTierBands, i, i+1)
		}
	}
	// Tier 5 is the permanently ineligible band.
	if t.Tiers[TierCount-1].MaxLoanFractionBps != 0 {
		return fmt.Errorf("%w: tier %d must have zero fraction", errTierFraction, TierCount)
	}
	return nil
}

// Terms are the borrow terms derived for a tier at current pool size.
type Terms struct {
	CollateralRatioBps int64
	RateModifierBps    int64
	MaxLoanAmount      int64
}

// TierEngine maps credit scores to tiers and tier terms. Pure reads except
// for the audited config update path.
type TierEngine struct {
	table      TierTable
	maxStepBps int64 // bound on any single-step ratio/fraction change; 0 disables the bound
}

func NewTierEngine(table TierTable, maxStepBps int64) (*TierEngine, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return &TierEngine{table: table, maxStepBps: maxStepBps}, nil
}

// TierOf returns the 1-based tier index for a score. Total: scores below all
// bands map to the most conservative tier, scores above all bands to tier 1.
func (e *TierEngine) TierOf(score int) int {
	for i, tier := range e.table.Tiers {
		if score >= tier.MinScore && score <= tier.MaxScore {
			return i + 1
		}
	}
	if score > e.table.Tiers[0].MaxScore {
		return 1
	}
	return TierCount
}

// TermsOf derives the borrow terms for a tier against the current pool size.
// Tier 5 always yields a zero max loan, making it permanently ineligible.
func (e *TierEngine) TermsOf(tier int, poolTotalFunds int64) (Terms, error) {
	if tier < 1 || tier > TierCount {
		return Terms{}, fmt.Errorf("%w: %d", errTierIndexBounds, tier)
	}
	cfg := e.table.Tiers[tier-1]
	return Terms{
		CollateralRatioBps: cfg.CollateralRatioBps,
		RateModifierBps:    cfg.RateModifierBps,
		MaxLoanAmount:      fpmath.ApplyBps(poolTotalFunds, cfg.MaxLoanFractionBps),
	}, nil
}

// Table returns a copy of the active configuration.
func (e *TierEngine) Table() TierTable {
	return e.table
}

// Update replaces the tier table through the audited path: the new table must
// validate, carry the next version, and move no ratio or fraction more than
// maxStepBps in a single step.
func (e *TierEngine) Update(next TierTable) error {
	if err := next.Validate(); err != nil {
		return err
	}
	if next.Version != e.table.Version+1 {
		return fmt.Errorf("%w: have %d, got %d", errTierVersion, e.table.Version, next.Version)
	}
	if e.maxStepBps > 0 {
		for i := range next.Tiers {
			if delta := abs64(next.Tiers[i].CollateralRatioBps - e.table.Tiers[i].CollateralRatioBps); delta > e.maxStepBps {
				return fmt.Errorf("%w: tier %d ratio delta %d", errTierStep, i+1, delta)
			}
			if delta := abs64(next.Tiers[i].MaxLoanFractionBps - e.table.Tiers[i].MaxLoanFractionBps); delta > e.maxStepBps {
				return fmt.Errorf("%w: tier %d fraction delta %d", errTierStep, i+1, delta)
			}
		}
	}
	e.table = next
	return nil
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
