package state

import (
	fpmath "LendLedger/internal/math"
)

// LoanExposure is one active loan's contribution to the weighted risk score.
type LoanExposure struct {
	Outstanding int64
	Tier        int
}

// NeutralBand is the weighted-score band with a 1.0x multiplier. An empty
// loan book is defined as neutral.
const NeutralBand = 2

// RiskEngine derives the global risk coefficient from the tier-weighted
// exposure of open loans and the protocol's historical repayment ratio.
// Multipliers use MultiplierScale fixed point (10_000 = 1.0x).
type RiskEngine struct {
	bandMultipliers [TierCount + 1]int64 // indexed by truncated weighted band 0..5
}

func NewRiskEngine() *RiskEngine {
	return &RiskEngine{
		// Bands at or below neutral carry no surcharge; riskier books
		// scale lender yield up.
		bandMultipliers: [TierCount + 1]int64{
			10_000, // 0 (empty book / strongest tiers)
			10_000, // 1
			10_000, // 2 (neutral)
			11_000, // 3
			12_500, // 4
			14_000, // 5
		},
	}
}

// WeightedBand truncates sum(outstanding*tier)/sum(outstanding) to an integer
// band. No open loans map to the neutral band.
func (r *RiskEngine) WeightedBand(exposures []LoanExposure) int {
	var weighted, total int64
	for _, e := range exposures {
		if e.Outstanding <= 0 {
			continue
		}
		weighted += e.Outstanding * int64(e.Tier)
		total += e.Outstanding
	}
	if total == 0 {
		return NeutralBand
	}
	band := int(weighted / total)
	if band > TierCount {
		band = TierCount
	}
	return band
}

// TierMultiplier maps a band to its multiplier.
func (r *RiskEngine) TierMultiplier(band int) int64 {
	if band < 0 {
		band = 0
	}
	if band > TierCount {
		band = TierCount
	}
	return r.bandMultipliers[band]
}

// RepaymentMultiplier maps the historical repayment ratio to a multiplier
// that rises as the ratio falls below the configured thresholds.
func (r *RiskEngine) RepaymentMultiplier(ratioBps int64) int64 {
	switch {
	case ratioBps >= 9_500:
		return 10_000
	case ratioBps >= 9_000:
		return 10_500
	case ratioBps >= 8_000:
		return 11_000
	default:
		return 12_000 // below 80% repayment
	}
}

// GlobalMultiplier is the product of the tier and repayment multipliers.
func (r *RiskEngine) GlobalMultiplier(exposures []LoanExposure, repaymentRatioBps int64) int64 {
	tierMult := r.TierMultiplier(r.WeightedBand(exposures))
	repayMult := r.RepaymentMultiplier(repaymentRatioBps)
	return fpmath.MulDiv(tierMult, repayMult, fpmath.MultiplierScale, fpmath.RoundDown)
}
