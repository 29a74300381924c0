package event

import (
	"time"

	"github.com/google/uuid"
)

type CreditScoreAssigned struct {
	User  uuid.UUID `json:"user"`
	Score int       `json:"score"`
}

func (e *CreditScoreAssigned) EventType() EventType { return EventTypeCreditScoreAssigned }
func (e *CreditScoreAssigned) Actor() uuid.UUID     { return e.User }

type EmergencyPaused struct{}

func (e *EmergencyPaused) EventType() EventType { return EventTypeEmergencyPaused }
func (e *EmergencyPaused) Actor() uuid.UUID     { return uuid.Nil }

type EmergencyUnpaused struct{}

func (e *EmergencyUnpaused) EventType() EventType { return EventTypeEmergencyUnpaused }
func (e *EmergencyUnpaused) Actor() uuid.UUID     { return uuid.Nil }

// TierBand mirrors one tier's terms so the full table is reconstructible
// from the log on replay.
type TierBand struct {
	MinScore           int   `json:"min_score"`
	MaxScore           int   `json:"max_score"`
	CollateralRatioBps int64 `json:"collateral_ratio_bps"`
	RateModifierBps    int64 `json:"rate_modifier_bps"`
	MaxLoanFractionBps int64 `json:"max_loan_fraction_bps"`
}

type TierConfigUpdated struct {
	Version int64      `json:"version"`
	Tiers   []TierBand `json:"tiers"`
}

func (e *TierConfigUpdated) EventType() EventType { return EventTypeTierConfigUpdated }
func (e *TierConfigUpdated) Actor() uuid.UUID     { return uuid.Nil }

type RateParamsUpdated struct {
	BaseRateBps      int64 `json:"base_rate_bps"`
	Slope1Bps        int64 `json:"slope1_bps"`
	Slope2Bps        int64 `json:"slope2_bps"`
	KinkBps          int64 `json:"kink_bps"`
	ReserveFactorBps int64 `json:"reserve_factor_bps"`
	PremiumBps       int64 `json:"premium_bps"`
	VolThresholdBps  int64 `json:"vol_threshold_bps"`
	MaxStepBps       int64 `json:"max_step_bps"`
}

func (e *RateParamsUpdated) EventType() EventType { return EventTypeRateParamsUpdated }
func (e *RateParamsUpdated) Actor() uuid.UUID     { return uuid.Nil }

type AssetListed struct {
	Asset         string `json:"asset"`
	Stable        bool   `json:"stable"`
	MaxAgeSeconds int64  `json:"max_age_seconds"`
}

func (e *AssetListed) EventType() EventType { return EventTypeAssetListed }
func (e *AssetListed) Actor() uuid.UUID     { return uuid.Nil }

type PriceUpdated struct {
	Asset           string    `json:"asset"`
	Price           int64     `json:"price"` // raw feed value, scaled by 10^Decimals
	Decimals        uint8     `json:"decimals"`
	UpdatedAt       time.Time `json:"updated_at"`
	RoundID         uint64    `json:"round_id"`
	AnsweredInRound uint64    `json:"answered_in_round"`
}

func (e *PriceUpdated) EventType() EventType { return EventTypePriceUpdated }
func (e *PriceUpdated) Actor() uuid.UUID     { return uuid.Nil }

type DailyRateSet struct {
	Factor int64 `json:"factor"` // RateConfig scale, 1_000_000 = 1.0/day
}

func (e *DailyRateSet) EventType() EventType { return EventTypeDailyRateSet }
func (e *DailyRateSet) Actor() uuid.UUID     { return uuid.Nil }
