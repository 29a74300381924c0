package engine

import (
	"time"

	"github.com/google/uuid"

	"LendLedger/internal/event"
	"LendLedger/internal/ledger"
	"LendLedger/internal/oracle"
	"LendLedger/internal/state"
)

// Admin operations. Authorization (the authority bearer token) is enforced at
// the API boundary; the engine trusts its caller and records every change in
// the event log for audit.

// SetCreditScore assigns a borrower's credit score.
func (e *Engine) SetCreditScore(user uuid.UUID, score int) error {
	const op = "set_credit_score"
	if err := e.enter(op, true); err != nil {
		return err
	}
	defer e.exit()

	if err := e.scores.Set(user, score); err != nil {
		e.reject(op, "validation")
		return err
	}
	return e.commit(op, &event.CreditScoreAssigned{User: user, Score: score}, nil, e.clock())
}

// Pause halts all state-changing lending operations.
func (e *Engine) Pause() error {
	const op = "pause"
	if err := e.enter(op, false); err != nil {
		return err
	}
	defer e.exit()

	if e.paused {
		e.reject(op, "state")
		return ErrPaused
	}
	e.paused = true
	if e.metrics != nil {
		e.metrics.EnginePaused.Set(1)
	}
	e.log.Warn().Msg("emergency pause engaged")
	return e.commit(op, &event.EmergencyPaused{}, nil, e.clock())
}

// Unpause resumes normal operation.
func (e *Engine) Unpause() error {
	const op = "unpause"
	if err := e.enter(op, false); err != nil {
		return err
	}
	defer e.exit()

	if !e.paused {
		e.reject(op, "state")
		return ErrNotPaused
	}
	e.paused = false
	if e.metrics != nil {
		e.metrics.EnginePaused.Set(0)
	}
	e.log.Warn().Msg("emergency pause lifted")
	return e.commit(op, &event.EmergencyUnpaused{}, nil, e.clock())
}

// UpdateTierTable replaces the tier configuration through the versioned,
// step-bounded path.
func (e *Engine) UpdateTierTable(next state.TierTable) error {
	const op = "update_tiers"
	if err := e.enter(op, false); err != nil {
		return err
	}
	defer e.exit()

	if err := e.tiers.Update(next); err != nil {
		e.reject(op, "validation")
		return err
	}
	e.log.Info().Int64("version", next.Version).Msg("tier table updated")
	bands := make([]event.TierBand, 0, len(next.Tiers))
	for _, t := range next.Tiers {
		bands = append(bands, event.TierBand{
			MinScore:           t.MinScore,
			MaxScore:           t.MaxScore,
			CollateralRatioBps: t.CollateralRatioBps,
			RateModifierBps:    t.RateModifierBps,
			MaxLoanFractionBps: t.MaxLoanFractionBps,
		})
	}
	return e.commit(op, &event.TierConfigUpdated{Version: next.Version, Tiers: bands}, nil, e.clock())
}

// UpdateRateParams replaces the interest model parameters, step-bounded.
func (e *Engine) UpdateRateParams(next state.RateParams) error {
	const op = "update_rate_params"
	if err := e.enter(op, false); err != nil {
		return err
	}
	defer e.exit()

	if err := e.rates.Update(next); err != nil {
		e.reject(op, "validation")
		return err
	}
	return e.commit(op, &event.RateParamsUpdated{
		BaseRateBps:      next.BaseRateBps,
		Slope1Bps:        next.Slope1Bps,
		Slope2Bps:        next.Slope2Bps,
		KinkBps:          next.KinkBps,
		ReserveFactorBps: next.ReserveFactorBps,
		PremiumBps:       next.PremiumBps,
		VolThresholdBps:  next.VolThresholdBps,
		MaxStepBps:       next.MaxStepBps,
	}, nil, e.clock())
}

// ListAsset allow-lists a collateral asset and binds it to the push price
// feed with the given staleness bound.
func (e *Engine) ListAsset(symbol string, stable bool, maxAge time.Duration) error {
	const op = "list_asset"
	if err := e.enter(op, false); err != nil {
		return err
	}
	defer e.exit()

	ledger.RegisterAsset(symbol)
	e.collateral.SetAsset(state.AssetConfig{
		Symbol: symbol,
		MaxAge: maxAge,
		Stable: stable,
		Listed: true,
	})
	e.prices.SetFeed(symbol, e.pushFeed, maxAge)

	e.log.Info().Str("asset", symbol).Bool("stable", stable).Msg("asset listed")
	return e.commit(op, &event.AssetListed{
		Asset:         symbol,
		Stable:        stable,
		MaxAgeSeconds: int64(maxAge / time.Second),
	}, nil, e.clock())
}

// SetDailyFactor sets the base per-day compounding factor for lender yield.
func (e *Engine) SetDailyFactor(factor int64) error {
	const op = "set_daily_rate"
	if err := e.enter(op, false); err != nil {
		return err
	}
	defer e.exit()

	if err := e.lenders.SetDailyFactor(factor); err != nil {
		e.reject(op, "validation")
		return err
	}
	return e.commit(op, &event.DailyRateSet{Factor: factor}, nil, e.clock())
}

// PushPrice records an authority-pushed oracle reading. Allowed while paused:
// fresh prices are needed to judge recovery and unwind safely.
func (e *Engine) PushPrice(asset string, price int64, roundID uint64) error {
	const op = "push_price"
	if err := e.enter(op, false); err != nil {
		return err
	}
	defer e.exit()

	now := e.clock()
	reading := oracle.FreshReading(price, roundID, now)
	if err := e.pushFeed.Set(asset, reading); err != nil {
		e.reject(op, "validation")
		return err
	}
	return e.commit(op, &event.PriceUpdated{
		Asset:           asset,
		Price:           reading.Value,
		Decimals:        reading.Decimals,
		UpdatedAt:       reading.UpdatedAt,
		RoundID:         reading.RoundID,
		AnsweredInRound: reading.AnsweredInRound,
	}, nil, now)
}

// ApplyPriceUpdate records a relayer-delivered oracle reading with its
// original round and decimals. Used as the sink for the NATS price feed.
func (e *Engine) ApplyPriceUpdate(u oracle.PriceUpdate) error {
	const op = "apply_price_update"
	if err := e.enter(op, false); err != nil {
		return err
	}
	defer e.exit()

	if err := u.Validate(); err != nil {
		e.reject(op, "validation")
		return err
	}
	if err := e.pushFeed.Set(u.Asset, u.Reading()); err != nil {
		e.reject(op, "validation")
		return err
	}
	return e.commit(op, &event.PriceUpdated{
		Asset:           u.Asset,
		Price:           u.Value,
		Decimals:        u.Decimals,
		UpdatedAt:       u.UpdatedAt,
		RoundID:         u.RoundID,
		AnsweredInRound: u.AnsweredInRound,
	}, nil, e.clock())
}
