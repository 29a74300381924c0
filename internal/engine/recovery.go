package engine

import (
	"bytes"
	"fmt"
	"time"

	"github.com/google/uuid"

	"LendLedger/internal/event"
	"LendLedger/internal/ledger"
	"LendLedger/internal/oracle"
	"LendLedger/internal/state"
)

// Replay applies one committed output from the persisted log to an engine
// being rebuilt after a restart. Outputs must arrive in sequence order.
// Effects come from the recorded payloads and journal batches, never from
// re-running the operation's guards, so replay cannot diverge on inputs the
// guards saw at commit time. Nothing is re-emitted and nothing is re-hashed;
// the stored chain is adopted as-is after a continuity check.
func (e *Engine) Replay(out Output) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	env := out.Envelope
	if env.Sequence != e.sequence {
		return fmt.Errorf("engine: replay gap: expected sequence %d, got %d", e.sequence, env.Sequence)
	}
	if prev := e.hasher.GetPrevHash(); !bytes.Equal(env.PrevHash[:], prev[:]) {
		return fmt.Errorf("engine: replay sequence %d: hash chain broken", env.Sequence)
	}

	evt, err := event.Decode(env.EventType, env.Payload)
	if err != nil {
		return fmt.Errorf("engine: replay sequence %d: %w", env.Sequence, err)
	}
	if err := e.applyReplayed(evt, env.Timestamp); err != nil {
		return fmt.Errorf("engine: replay sequence %d (%s): %w", env.Sequence, env.EventType, err)
	}

	if out.Batch != nil && len(out.Batch.Journals) > 0 {
		if err := e.balances.ApplyBatch(out.Batch); err != nil {
			return fmt.Errorf("engine: replay sequence %d: apply batch: %w", env.Sequence, err)
		}
	}
	if err := e.postCheckInvariants(); err != nil {
		return fmt.Errorf("engine: replay sequence %d: %w", env.Sequence, err)
	}

	e.sequence = env.Sequence + 1
	e.hasher.SetPrevHash(env.StateHash)
	return nil
}

// applyReplayed dispatches the recorded effects of one event. The envelope
// timestamp stands in for the engine clock, so lazily accrued interest
// rebuilds exactly as it stood when the event committed.
func (e *Engine) applyReplayed(evt event.Event, ts time.Time) error {
	switch ev := evt.(type) {
	case *event.CollateralDeposited:
		// Covers plain deposits and liquidation top-ups that fell short.
		return e.collateral.Deposit(ev.User, ev.Asset, ev.Amount)

	case *event.CollateralWithdrawn:
		return e.collateral.Withdraw(ev.User, ev.Asset, ev.Amount)

	case *event.CollateralSeized:
		return e.applySeized(ev.User, ev.Seized)

	case *event.Borrowed:
		if _, err := e.loans.Originate(ev.Borrower, ev.Amount, ev.Tier, ev.RateBps, ts); err != nil {
			return err
		}
		e.pool.RecordBorrow(ev.Tier, ev.Amount)
		return nil

	case *event.Repaid:
		loan, err := e.loans.Active(ev.Borrower)
		if err != nil {
			return err
		}
		e.loans.Accrue(loan, ts)
		tier := loan.Tier
		e.loans.ApplyRecordedRepayment(loan, ev.InterestPaid, ev.PrincipalPaid, ev.Cleared)
		e.pool.RecordRepayment(tier, ev.PrincipalPaid, ev.InterestPaid)
		if ev.Cleared {
			// a full repayment during liquidation also closed the window
			_, _ = e.liquidations.Clear(ev.Borrower)
		}
		return nil

	case *event.LiquidationStarted:
		loan, err := e.loans.Active(ev.Borrower)
		if err != nil {
			return err
		}
		e.loans.Accrue(loan, ts)
		rec := &state.LiquidationRecord{
			RecordID:  ev.RecordID,
			Borrower:  ev.Borrower,
			StartedAt: ts,
			Deadline:  ev.Deadline,
		}
		if err := e.liquidations.Restore(rec); err != nil {
			return err
		}
		loan.LiquidationID = &rec.RecordID
		return nil

	case *event.LiquidationRecovered:
		if err := e.collateral.Deposit(ev.Borrower, ev.Asset, ev.Amount); err != nil {
			return err
		}
		loan, err := e.loans.Active(ev.Borrower)
		if err != nil {
			return err
		}
		e.loans.Accrue(loan, ts)
		if _, err := e.liquidations.Clear(ev.Borrower); err != nil {
			return err
		}
		loan.LiquidationID = nil
		return nil

	case *event.LiquidationExecuted:
		loan, err := e.loans.Active(ev.Borrower)
		if err != nil {
			return err
		}
		e.loans.Accrue(loan, ts)
		tier := loan.Tier
		if err := e.applySeized(ev.Borrower, ev.Seized); err != nil {
			return err
		}
		principal := e.loans.ClearForLiquidation(loan)
		e.pool.RecordLiquidation(tier, principal)
		_, err = e.liquidations.Clear(ev.Borrower)
		return err

	case *event.CreditScoreAssigned:
		return e.scores.Set(ev.User, ev.Score)

	case *event.FundsDeposited:
		if _, err := e.lenders.Deposit(ev.Lender, ev.Amount, ts, e.riskMultiplier()); err != nil {
			return err
		}
		e.pool.RecordLenderDeposit(ev.Amount)
		return nil

	case *event.FundsWithdrawn:
		return e.replayCompletedWithdrawal(ev.Lender, ts)

	case *event.EarlyWithdrawalPenalty:
		return e.replayCompletedWithdrawal(ev.Lender, ts)

	case *event.WithdrawalRequested:
		_, err := e.lenders.RequestWithdrawal(ev.Lender, ev.Amount, ts, e.riskMultiplier())
		return err

	case *event.WithdrawalCancelled:
		return e.lenders.CancelWithdrawal(ev.Lender)

	case *event.InterestClaimed:
		claimed, err := e.lenders.ClaimInterest(ev.Lender, ts, e.riskMultiplier())
		if err != nil {
			return err
		}
		if claimed != ev.Interest {
			return fmt.Errorf("engine: replayed claim %d disagrees with recorded %d", claimed, ev.Interest)
		}
		e.pool.RecordLenderWithdrawal(claimed)
		return nil

	case *event.EmergencyPaused:
		e.paused = true
		return nil

	case *event.EmergencyUnpaused:
		e.paused = false
		return nil

	case *event.TierConfigUpdated:
		if len(ev.Tiers) != state.TierCount {
			return fmt.Errorf("engine: tier update carries %d bands, want %d", len(ev.Tiers), state.TierCount)
		}
		next := state.TierTable{Version: ev.Version}
		for i, band := range ev.Tiers {
			next.Tiers[i] = state.TierConfig{
				MinScore:           band.MinScore,
				MaxScore:           band.MaxScore,
				CollateralRatioBps: band.CollateralRatioBps,
				RateModifierBps:    band.RateModifierBps,
				MaxLoanFractionBps: band.MaxLoanFractionBps,
			}
		}
		return e.tiers.Update(next)

	case *event.RateParamsUpdated:
		return e.rates.Update(state.RateParams{
			BaseRateBps:      ev.BaseRateBps,
			Slope1Bps:        ev.Slope1Bps,
			Slope2Bps:        ev.Slope2Bps,
			KinkBps:          ev.KinkBps,
			ReserveFactorBps: ev.ReserveFactorBps,
			PremiumBps:       ev.PremiumBps,
			VolThresholdBps:  ev.VolThresholdBps,
			MaxStepBps:       ev.MaxStepBps,
		})

	case *event.AssetListed:
		ledger.RegisterAsset(ev.Asset)
		maxAge := time.Duration(ev.MaxAgeSeconds) * time.Second
		e.collateral.SetAsset(state.AssetConfig{
			Symbol: ev.Asset,
			MaxAge: maxAge,
			Stable: ev.Stable,
			Listed: true,
		})
		e.prices.SetFeed(ev.Asset, e.pushFeed, maxAge)
		return nil

	case *event.PriceUpdated:
		return e.pushFeed.Set(ev.Asset, oracle.Reading{
			Value:           ev.Price,
			Decimals:        ev.Decimals,
			UpdatedAt:       ev.UpdatedAt,
			RoundID:         ev.RoundID,
			AnsweredInRound: ev.AnsweredInRound,
		})

	case *event.DailyRateSet:
		return e.lenders.SetDailyFactor(ev.Factor)
	}
	return fmt.Errorf("engine: replay: unhandled event %T", evt)
}

// replayCompletedWithdrawal re-runs the pending request's settlement. The
// lender state evolved identically up to this point, so the payout split
// matches what was recorded.
func (e *Engine) replayCompletedWithdrawal(lender uuid.UUID, ts time.Time) error {
	res, err := e.lenders.CompleteWithdrawal(lender, ts, e.riskMultiplier())
	if err != nil {
		return err
	}
	e.pool.RecordLenderWithdrawal(res.Amount + res.Penalty)
	return nil
}

// applySeized removes recorded seizure slices from the user's positions.
// Seizure is replayed from the slices, never re-priced: the oracle state at
// restart may differ from the state at commit time.
func (e *Engine) applySeized(user uuid.UUID, seized []event.SeizedAsset) error {
	for _, s := range seized {
		if err := e.collateral.Withdraw(user, s.Asset, s.Amount); err != nil {
			return err
		}
	}
	return nil
}
