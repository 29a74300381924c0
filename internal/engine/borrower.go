package engine

import (
	"fmt"

	"github.com/google/uuid"

	"LendLedger/internal/event"
	"LendLedger/internal/ledger"
	fpmath "LendLedger/internal/math"
	"LendLedger/internal/state"
)

// DepositCollateral adds collateral to the user's position. Blocked while the
// borrower is in liquidation; RecoverFromLiquidation is the top-up path there.
func (e *Engine) DepositCollateral(user uuid.UUID, asset string, amount int64) error {
	const op = "deposit_collateral"
	if err := e.enter(op, true); err != nil {
		return err
	}
	defer e.exit()

	if e.liquidations.Get(user) != nil {
		e.reject(op, "in_liquidation")
		return ErrInLiquidation
	}
	if err := e.collateral.Deposit(user, asset, amount); err != nil {
		e.reject(op, "validation")
		return err
	}
	assetID, err := e.assetID(asset)
	if err != nil {
		return err
	}

	now := e.clock()
	batch := ledger.NewBatch(e.sequence, now.UnixMicro())
	batch.Transfer(
		ledger.JournalTypeCollateralDeposit,
		ledger.NewUserAccountKey(user, ledger.SubTypeCollateral, assetID),
		ledger.NewExternalAccountKey(ledger.SubTypeExternalCollateral, assetID),
		assetID, amount,
	)

	return e.commit(op, &event.CollateralDeposited{User: user, Asset: asset, Amount: amount}, batch, now)
}

// WithdrawCollateral removes collateral, refusing any withdrawal that would
// leave an active loan below its tier's required ratio.
func (e *Engine) WithdrawCollateral(user uuid.UUID, asset string, amount int64) error {
	const op = "withdraw_collateral"
	if err := e.enter(op, true); err != nil {
		return err
	}
	defer e.exit()

	if e.liquidations.Get(user) != nil {
		e.reject(op, "in_liquidation")
		return ErrInLiquidation
	}
	if amount <= 0 {
		e.reject(op, "validation")
		return fmt.Errorf("%w: %d", ErrNonPositiveAmount, amount)
	}
	if held := e.collateral.Balance(user, asset); held < amount {
		e.reject(op, "validation")
		return fmt.Errorf("%w: have %d, want %d", state.ErrInsufficientCollateral, held, amount)
	}

	now := e.clock()

	if loan, err := e.loans.Active(user); err == nil {
		e.loans.Accrue(loan, now)

		value, skipped := e.collateral.TotalValue(user)
		e.logSkipped(user, skipped)

		// The withdrawn slice only counted toward the valuation if its
		// price resolves; an unpriced asset leaves the value unchanged.
		var withdrawnValue int64
		if price, perr := e.prices.Price(asset); perr == nil {
			withdrawnValue = fpmath.ValueAtPrice(amount, price)
		}

		terms, terr := e.tiers.TermsOf(loan.Tier, e.pool.TotalFunds)
		if terr != nil {
			return terr
		}
		required := fpmath.RequiredCollateralValue(loan.Outstanding(), terms.CollateralRatioBps)
		if value-withdrawnValue < required {
			e.reject(op, "health")
			return fmt.Errorf("%w: remaining %d, required %d", ErrWithdrawalBreaksHealth, value-withdrawnValue, required)
		}
	}

	if err := e.collateral.Withdraw(user, asset, amount); err != nil {
		e.reject(op, "validation")
		return err
	}
	assetID, err := e.assetID(asset)
	if err != nil {
		return err
	}

	batch := ledger.NewBatch(e.sequence, now.UnixMicro())
	batch.Transfer(
		ledger.JournalTypeCollateralWithdrawal,
		ledger.NewExternalAccountKey(ledger.SubTypeExternalCollateral, assetID),
		ledger.NewUserAccountKey(user, ledger.SubTypeCollateral, assetID),
		assetID, amount,
	)

	return e.commit(op, &event.CollateralWithdrawn{User: user, Asset: asset, Amount: amount}, batch, now)
}

// Borrow originates a loan in the base currency against the user's
// collateral, at the tier terms derived from their credit score.
func (e *Engine) Borrow(user uuid.UUID, amount int64) error {
	const op = "borrow"
	if err := e.enter(op, true); err != nil {
		return err
	}
	defer e.exit()

	if amount <= 0 {
		e.reject(op, "validation")
		return fmt.Errorf("%w: %d", ErrNonPositiveAmount, amount)
	}
	if existing := e.loans.Get(user); existing != nil && existing.Active {
		e.reject(op, "active_loan")
		return state.ErrActiveLoanExists
	}

	tier := e.tiers.TierOf(e.scores.Get(user))
	terms, err := e.tiers.TermsOf(tier, e.pool.TotalFunds)
	if err != nil {
		return err
	}
	if terms.MaxLoanAmount == 0 {
		e.reject(op, "ineligible_tier")
		return fmt.Errorf("%w: tier %d", state.ErrIneligibleTier, tier)
	}
	if amount > e.pool.TotalFunds/2 {
		e.reject(op, "pool_half")
		return fmt.Errorf("%w: amount %d, liquidity %d", ErrExceedsPoolHalf, amount, e.pool.TotalFunds)
	}
	if amount > terms.MaxLoanAmount {
		e.reject(op, "tier_limit")
		return fmt.Errorf("%w: amount %d, tier %d max %d", ErrExceedsTierLimit, amount, tier, terms.MaxLoanAmount)
	}

	value, skipped := e.collateral.TotalValue(user)
	e.logSkipped(user, skipped)
	required := fpmath.RequiredCollateralValue(amount, terms.CollateralRatioBps)
	if value < required {
		e.reject(op, "collateral")
		return fmt.Errorf("%w: value %d, required %d", ErrCollateralBelowRatio, value, required)
	}

	now := e.clock()
	rateBps := e.rates.BorrowerRateBps(e.utilizationBps(), e.marketSignal(), terms.RateModifierBps)
	fee := fpmath.ApplyBps(amount, e.cfg.OriginationFeeBps)

	loan, err := e.loans.Originate(user, amount, tier, rateBps, now)
	if err != nil {
		return err
	}
	e.pool.RecordBorrow(tier, amount)

	batch := ledger.NewBatch(e.sequence, now.UnixMicro())
	batch.Transfer(
		ledger.JournalTypeLoanDisbursement,
		ledger.NewUserAccountKey(user, ledger.SubTypeWallet, e.baseAssetID),
		ledger.NewPoolReserveKey(e.baseAssetID),
		e.baseAssetID, amount-fee,
	)
	if fee > 0 {
		batch.Transfer(
			ledger.JournalTypeOriginationFee,
			ledger.NewSystemAccountKey(ledger.SubTypeSystemReserve, e.baseAssetID),
			ledger.NewPoolReserveKey(e.baseAssetID),
			e.baseAssetID, fee,
		)
	}

	e.log.Info().
		Str("borrower", user.String()).
		Int64("amount", amount).
		Int("tier", tier).
		Int64("rate_bps", loan.RateBps).
		Msg("loan originated")

	if e.metrics != nil {
		e.metrics.LoansActive.Inc()
	}

	return e.commit(op, &event.Borrowed{
		Borrower:       user,
		Amount:         amount,
		Tier:           tier,
		RateBps:        rateBps,
		OriginationFee: fee,
	}, batch, now)
}

// Repay reduces the borrower's debt, interest first. Payments above
// outstanding debt are rejected unless the engine runs in refund mode.
// A full repayment while in liquidation also closes the liquidation window.
func (e *Engine) Repay(user uuid.UUID, value int64) error {
	const op = "repay"
	if err := e.enter(op, true); err != nil {
		return err
	}
	defer e.exit()

	if value <= 0 {
		e.reject(op, "validation")
		return fmt.Errorf("%w: %d", ErrNonPositiveAmount, value)
	}
	loan, err := e.loans.Active(user)
	if err != nil {
		e.reject(op, "no_loan")
		return err
	}

	now := e.clock()
	e.loans.Accrue(loan, now)
	tier := loan.Tier

	rep, err := e.loans.ApplyRepayment(loan, value, e.cfg.OverpayRefund)
	if err != nil {
		e.reject(op, "overpay")
		return err
	}
	e.pool.RecordRepayment(tier, rep.PrincipalPaid, rep.InterestPaid)

	if rep.Cleared {
		if rec, cerr := e.liquidations.Clear(user); cerr == nil {
			e.log.Info().
				Str("borrower", user.String()).
				Str("record_id", rec.RecordID.String()).
				Msg("liquidation closed by full repayment")
			if e.metrics != nil {
				e.metrics.LiquidationsDone.WithLabelValues("repaid").Inc()
			}
		}
		if e.metrics != nil {
			e.metrics.LoansActive.Dec()
		}
	}

	batch := ledger.NewBatch(e.sequence, now.UnixMicro())
	batch.Transfer(
		ledger.JournalTypeLoanRepayment,
		ledger.NewPoolReserveKey(e.baseAssetID),
		ledger.NewUserAccountKey(user, ledger.SubTypeWallet, e.baseAssetID),
		e.baseAssetID, value-rep.Refund,
	)

	return e.commit(op, &event.Repaid{
		Borrower:      user,
		Value:         value,
		InterestPaid:  rep.InterestPaid,
		PrincipalPaid: rep.PrincipalPaid,
		Refund:        rep.Refund,
		Cleared:       rep.Cleared,
	}, batch, now)
}

func (e *Engine) logSkipped(user uuid.UUID, skipped []string) {
	for _, sym := range skipped {
		e.log.Warn().
			Str("user", user.String()).
			Str("asset", sym).
			Msg("collateral valuation skipped asset with failed price lookup")
		if e.metrics != nil {
			e.metrics.OracleValuationSkips.WithLabelValues(sym).Inc()
		}
	}
}
