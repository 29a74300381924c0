package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"LendLedger/internal/event"
	"LendLedger/internal/ledger"
	fpmath "LendLedger/internal/math"
	"LendLedger/internal/state"
)

// StartLiquidation opens a liquidation window for an undercollateralized
// borrower. Anyone may call it; the health check is the gate.
func (e *Engine) StartLiquidation(borrower uuid.UUID) (uuid.UUID, error) {
	const op = "start_liquidation"
	if err := e.enter(op, true); err != nil {
		return uuid.Nil, err
	}
	defer e.exit()

	loan, err := e.loans.Active(borrower)
	if err != nil {
		e.reject(op, "no_loan")
		return uuid.Nil, err
	}

	now := e.clock()
	e.loans.Accrue(loan, now)

	if e.healthy(borrower, loan.Outstanding(), loan.Tier) {
		e.reject(op, "healthy")
		return uuid.Nil, ErrPositionHealthy
	}

	rec, err := e.liquidations.Start(borrower, now)
	if err != nil {
		e.reject(op, "state")
		return uuid.Nil, err
	}
	loan.LiquidationID = &rec.RecordID

	e.log.Warn().
		Str("borrower", borrower.String()).
		Str("record_id", rec.RecordID.String()).
		Time("deadline", rec.Deadline).
		Msg("liquidation started")
	if e.metrics != nil {
		e.metrics.LiquidationsStarted.Inc()
	}

	return rec.RecordID, e.commit(op, &event.LiquidationStarted{
		RecordID: rec.RecordID,
		Borrower: borrower,
		Deadline: rec.Deadline,
	}, nil, now)
}

// RecoverFromLiquidation tops up collateral during the grace period and
// re-checks health. The deposit stands either way; the window closes only
// when the position is healthy again.
func (e *Engine) RecoverFromLiquidation(borrower uuid.UUID, asset string, amount int64) (recovered bool, err error) {
	const op = "recover_liquidation"
	if err := e.enter(op, true); err != nil {
		return false, err
	}
	defer e.exit()

	rec := e.liquidations.Get(borrower)
	if rec == nil {
		e.reject(op, "state")
		return false, fmt.Errorf("engine: borrower %s: no open liquidation", borrower)
	}
	loan, err := e.loans.Active(borrower)
	if err != nil {
		return false, err
	}

	if err := e.collateral.Deposit(borrower, asset, amount); err != nil {
		e.reject(op, "validation")
		return false, err
	}
	assetID, err := e.assetID(asset)
	if err != nil {
		return false, err
	}

	now := e.clock()
	e.loans.Accrue(loan, now)

	batch := ledger.NewBatch(e.sequence, now.UnixMicro())
	batch.Transfer(
		ledger.JournalTypeCollateralDeposit,
		ledger.NewUserAccountKey(borrower, ledger.SubTypeCollateral, assetID),
		ledger.NewExternalAccountKey(ledger.SubTypeExternalCollateral, assetID),
		assetID, amount,
	)

	if !e.healthy(borrower, loan.Outstanding(), loan.Tier) {
		// Top-up recorded, window stays open. Not an error: the deposit
		// committed, and the caller reads recovered=false.
		if err := e.commit(op, &event.CollateralDeposited{User: borrower, Asset: asset, Amount: amount}, batch, now); err != nil {
			return false, err
		}
		return false, nil
	}

	if _, err := e.liquidations.Clear(borrower); err != nil {
		return false, err
	}
	loan.LiquidationID = nil

	e.log.Info().
		Str("borrower", borrower.String()).
		Str("record_id", rec.RecordID.String()).
		Msg("liquidation recovered")
	if e.metrics != nil {
		e.metrics.LiquidationsDone.WithLabelValues("recovered").Inc()
	}

	return true, e.commit(op, &event.LiquidationRecovered{
		RecordID: rec.RecordID,
		Borrower: borrower,
		Asset:    asset,
		Amount:   amount,
	}, batch, now)
}

// ExecuteLiquidation seizes collateral after the grace period: outstanding
// debt plus the penalty, capped at the borrower's priced holdings. The
// outstanding principal is cleared and counts as repaid for the risk ratio.
func (e *Engine) ExecuteLiquidation(borrower uuid.UUID) error {
	const op = "execute_liquidation"
	if err := e.enter(op, true); err != nil {
		return err
	}
	defer e.exit()
	return e.executeLiquidationLocked(op, borrower)
}

func (e *Engine) executeLiquidationLocked(op string, borrower uuid.UUID) error {
	rec := e.liquidations.Get(borrower)
	if rec == nil {
		e.reject(op, "state")
		return fmt.Errorf("engine: borrower %s: no open liquidation", borrower)
	}

	now := e.clock()
	expired, err := e.liquidations.Expired(borrower, now)
	if err != nil {
		return err
	}
	if !expired {
		e.reject(op, "grace")
		return fmt.Errorf("%w: borrower %s, runs until %s", state.ErrGraceNotElapsed, borrower, rec.Deadline.Format(time.RFC3339))
	}

	loan, err := e.loans.Active(borrower)
	if err != nil {
		return err
	}
	e.loans.Accrue(loan, now)

	outstanding := loan.Outstanding()
	penalty := fpmath.ApplyBps(outstanding, e.cfg.LiquidationPenaltyBps)
	seized := e.collateral.Seize(borrower, outstanding+penalty)

	principal := e.loans.ClearForLiquidation(loan)
	e.pool.RecordLiquidation(loan.Tier, principal)
	if _, err := e.liquidations.Clear(borrower); err != nil {
		return err
	}

	batch := ledger.NewBatch(e.sequence, now.UnixMicro())
	for _, s := range seized {
		assetID, aerr := e.assetID(s.Asset)
		if aerr != nil {
			continue
		}
		batch.Transfer(
			ledger.JournalTypeCollateralSeizure,
			ledger.NewSystemAccountKey(ledger.SubTypeSystemSeized, assetID),
			ledger.NewUserAccountKey(borrower, ledger.SubTypeCollateral, assetID),
			assetID, s.Amount,
		)
	}

	e.log.Warn().
		Str("borrower", borrower.String()).
		Str("record_id", rec.RecordID.String()).
		Int64("outstanding", outstanding).
		Int64("penalty", penalty).
		Int("assets_seized", len(seized)).
		Msg("liquidation executed")
	if e.metrics != nil {
		e.metrics.LiquidationsDone.WithLabelValues("executed").Inc()
		e.metrics.LoansActive.Dec()
	}

	return e.commit(op, &event.LiquidationExecuted{
		RecordID:    rec.RecordID,
		Borrower:    borrower,
		Outstanding: outstanding,
		Penalty:     penalty,
		Seized:      seized,
	}, batch, now)
}

// CheckEligible is the read-only half of the liquidation sweep: borrowers
// whose grace deadline has passed, in deadline order.
func (e *Engine) CheckEligible() []uuid.UUID {
	e.mu.Lock()
	defer e.mu.Unlock()

	recs := e.liquidations.Eligible(e.clock())
	out := make([]uuid.UUID, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.Borrower)
	}
	return out
}

// ExecuteEligible runs ExecuteLiquidation for every expired window. A failure
// on one borrower is logged and does not stop the sweep.
func (e *Engine) ExecuteEligible() []uuid.UUID {
	const op = "execute_eligible"
	if err := e.enter(op, true); err != nil {
		return nil
	}
	defer e.exit()

	recs := e.liquidations.Eligible(e.clock())
	executed := make([]uuid.UUID, 0, len(recs))
	for _, rec := range recs {
		if err := e.executeLiquidationLocked(op, rec.Borrower); err != nil {
			e.log.Error().
				Err(err).
				Str("borrower", rec.Borrower.String()).
				Msg("sweep: liquidation failed")
			continue
		}
		executed = append(executed, rec.Borrower)
	}
	return executed
}

// healthy checks collateral value against outstanding debt at the tier's
// required ratio. A borrower holding only stablecoins is measured against the
// lower stable threshold instead.
func (e *Engine) healthy(borrower uuid.UUID, outstanding int64, tier int) bool {
	if outstanding <= 0 {
		return true
	}
	value, skipped := e.collateral.TotalValue(borrower)
	e.logSkipped(borrower, skipped)

	thresholdBps := e.cfg.StableThresholdBps
	if !e.collateral.AllStable(borrower) {
		terms, err := e.tiers.TermsOf(tier, e.pool.TotalFunds)
		if err != nil {
			return false
		}
		thresholdBps = terms.CollateralRatioBps
	}
	return value >= fpmath.RequiredCollateralValue(outstanding, thresholdBps)
}
