package state

import (
	"errors"
	"fmt"

	fpmath "LendLedger/internal/math"
)

var (
	errRateParamBounds = errors.New("rate model: parameter out of bounds")
	errRateParamStep   = errors.New("rate model: update exceeds max single-step change")
)

// RateParams holds the kink-model parameters, all in basis points.
type RateParams struct {
	BaseRateBps      int64 `json:"base_rate_bps"`
	Slope1Bps        int64 `json:"slope1_bps"`
	Slope2Bps        int64 `json:"slope2_bps"`
	KinkBps          int64 `json:"kink_bps"`           // utilization kink point
	ReserveFactorBps int64 `json:"reserve_factor_bps"` // protocol share of supply interest
	PremiumBps       int64 `json:"premium_bps"`        // fixed additive risk premium
	VolThresholdBps  int64 `json:"vol_threshold_bps"`  // market volatility gate for the premium
	MaxStepBps       int64 `json:"max_step_bps"`       // bound on per-update parameter moves
}

// DefaultRateParams mirrors a Compound-style two-slope curve: gentle below
// the kink to encourage borrowing, steep above it to pull in deposits.
func DefaultRateParams() RateParams {
	return RateParams{
		BaseRateBps:      200,   // 2% APR floor
		Slope1Bps:        400,   // +4% across the first 80% utilization
		Slope2Bps:        7_500, // +75% across the last 20%
		KinkBps:          8_000, // 80%
		ReserveFactorBps: 1_000, // 10%
		PremiumBps:       300,   // +3% when the market signal trips
		VolThresholdBps:  500,   // 5% reading-to-reading move
		MaxStepBps:       500,
	}
}

// Validate checks individual parameter ranges.
func (p *RateParams) Validate() error {
	if p.BaseRateBps < 0 || p.Slope1Bps < 0 || p.Slope2Bps < 0 || p.PremiumBps < 0 {
		return fmt.Errorf("%w: negative rate component", errRateParamBounds)
	}
	if p.KinkBps <= 0 || p.KinkBps >= fpmath.BpsScale {
		return fmt.Errorf("%w: kink %d", errRateParamBounds, p.KinkBps)
	}
	if p.ReserveFactorBps < 0 || p.ReserveFactorBps >= fpmath.BpsScale {
		return fmt.Errorf("%w: reserve factor %d", errRateParamBounds, p.ReserveFactorBps)
	}
	return nil
}

// MarketSignal is the oracle-derived input to the risk premium: the maximum
// observed volatility across collateral feeds, and whether any feed is stale.
type MarketSignal struct {
	MaxVolBps int64
	Degraded  bool
}

// RateModel computes borrow and supply rates from utilization. Pure function
// of its parameters and inputs; rate computation never fails. A degraded
// oracle adds the fixed premium instead of erroring.
type RateModel struct {
	params RateParams
}

func NewRateModel(params RateParams) (*RateModel, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &RateModel{params: params}, nil
}

// Params returns the active parameters.
func (m *RateModel) Params() RateParams {
	return m.params
}

// UtilizationBps returns borrowed/totalFunds in basis points, zero for an
// empty pool, capped at 100%.
func (m *RateModel) UtilizationBps(borrowed, totalFunds int64) int64 {
	if totalFunds <= 0 || borrowed <= 0 {
		return 0
	}
	u := fpmath.MulDiv(borrowed, fpmath.BpsScale, totalFunds, fpmath.RoundDown)
	if u > fpmath.BpsScale {
		return fpmath.BpsScale
	}
	return u
}

// BorrowRateBps computes the model borrow rate for a utilization level.
// Below the kink: base + u*slope1. Above: base + kink*slope1 + (u-kink)*slope2.
// The premium is added when the market signal trips either gate.
func (m *RateModel) BorrowRateBps(utilizationBps int64, signal MarketSignal) int64 {
	p := m.params

	var rate int64
	if utilizationBps <= p.KinkBps {
		rate = p.BaseRateBps + fpmath.MulDiv(utilizationBps, p.Slope1Bps, fpmath.BpsScale, fpmath.RoundDown)
	} else {
		rate = p.BaseRateBps +
			fpmath.MulDiv(p.KinkBps, p.Slope1Bps, fpmath.BpsScale, fpmath.RoundDown) +
			fpmath.MulDiv(utilizationBps-p.KinkBps, p.Slope2Bps, fpmath.BpsScale, fpmath.RoundDown)
	}

	if signal.Degraded || signal.MaxVolBps > p.VolThresholdBps {
		rate += p.PremiumBps
	}
	return rate
}

// BorrowerRateBps applies the tier modifier to the model rate, floored at zero.
func (m *RateModel) BorrowerRateBps(utilizationBps int64, signal MarketSignal, tierModifierBps int64) int64 {
	rate := m.BorrowRateBps(utilizationBps, signal) + tierModifierBps
	if rate < 0 {
		return 0
	}
	return rate
}

// SupplyRateBps = borrow rate x utilization x (1 - reserveFactor).
func (m *RateModel) SupplyRateBps(utilizationBps int64, signal MarketSignal) int64 {
	borrow := m.BorrowRateBps(utilizationBps, signal)
	rate := fpmath.MulDiv(borrow, utilizationBps, fpmath.BpsScale, fpmath.RoundDown)
	return fpmath.MulDiv(rate, fpmath.BpsScale-m.params.ReserveFactorBps, fpmath.BpsScale, fpmath.RoundDown)
}

// Update replaces the parameters, bounding every move by the current
// MaxStepBps to prevent abrupt rate shifts.
func (m *RateModel) Update(next RateParams) error {
	if err := next.Validate(); err != nil {
		return err
	}
	if step := m.params.MaxStepBps; step > 0 {
		checks := []struct {
			name     string
			old, new int64
		}{
			{"base_rate", m.params.BaseRateBps, next.BaseRateBps},
			{"slope1", m.params.Slope1Bps, next.Slope1Bps},
			{"slope2", m.params.Slope2Bps, next.Slope2Bps},
			{"kink", m.params.KinkBps, next.KinkBps},
			{"reserve_factor", m.params.ReserveFactorBps, next.ReserveFactorBps},
			{"premium", m.params.PremiumBps, next.PremiumBps},
		}
		for _, c := range checks {
			if delta := abs64(c.new - c.old); delta > step {
				return fmt.Errorf("%w: %s delta %d > %d", errRateParamStep, c.name, delta, step)
			}
		}
	}
	m.params = next
	return nil
}
