package engine

import (
	"fmt"

	"github.com/google/uuid"

	"LendLedger/internal/event"
	"LendLedger/internal/ledger"
)

// LenderDeposit adds funds to the shared liquidity pool.
func (e *Engine) LenderDeposit(lender uuid.UUID, amount int64) error {
	const op = "lender_deposit"
	if err := e.enter(op, true); err != nil {
		return err
	}
	defer e.exit()

	now := e.clock()
	if _, err := e.lenders.Deposit(lender, amount, now, e.riskMultiplier()); err != nil {
		e.reject(op, "validation")
		return err
	}
	e.pool.RecordLenderDeposit(amount)

	batch := ledger.NewBatch(e.sequence, now.UnixMicro())
	batch.Transfer(
		ledger.JournalTypeLenderDeposit,
		ledger.NewPoolReserveKey(e.baseAssetID),
		ledger.NewExternalAccountKey(ledger.SubTypeExternalFunding, e.baseAssetID),
		e.baseAssetID, amount,
	)

	return e.commit(op, &event.FundsDeposited{Lender: lender, Amount: amount}, batch, now)
}

// ClaimInterest settles daily compounding (scaled by the risk multiplier)
// and pays the accrued interest out of the pool reserve.
func (e *Engine) ClaimInterest(lender uuid.UUID) (int64, error) {
	const op = "claim_interest"
	if err := e.enter(op, true); err != nil {
		return 0, err
	}
	defer e.exit()

	now := e.clock()
	claimed, err := e.lenders.ClaimInterest(lender, now, e.riskMultiplier())
	if err != nil {
		e.reject(op, "validation")
		return 0, err
	}
	if claimed > e.pool.TotalFunds {
		e.reject(op, "liquidity")
		// settlement already moved the interest to claimable; refuse the
		// payout rather than drive the reserve negative
		return 0, fmt.Errorf("%w: claim %d, liquidity %d", ErrInsufficientLiquidity, claimed, e.pool.TotalFunds)
	}
	e.pool.RecordLenderWithdrawal(claimed)

	batch := ledger.NewBatch(e.sequence, now.UnixMicro())
	batch.Transfer(
		ledger.JournalTypeLenderWithdrawal,
		ledger.NewExternalAccountKey(ledger.SubTypeExternalFunding, e.baseAssetID),
		ledger.NewPoolReserveKey(e.baseAssetID),
		e.baseAssetID, claimed,
	)

	return claimed, e.commit(op, &event.InterestClaimed{Lender: lender, Interest: claimed}, batch, now)
}

// RequestWithdrawal opens a cooldown-gated withdrawal request; a second
// request replaces the first.
func (e *Engine) RequestWithdrawal(lender uuid.UUID, amount int64) error {
	const op = "request_withdrawal"
	if err := e.enter(op, true); err != nil {
		return err
	}
	defer e.exit()

	now := e.clock()
	if _, err := e.lenders.RequestWithdrawal(lender, amount, now, e.riskMultiplier()); err != nil {
		e.reject(op, "validation")
		return err
	}

	return e.commit(op, &event.WithdrawalRequested{Lender: lender, Amount: amount}, nil, now)
}

// CancelWithdrawal drops the pending request.
func (e *Engine) CancelWithdrawal(lender uuid.UUID) error {
	const op = "cancel_withdrawal"
	if err := e.enter(op, true); err != nil {
		return err
	}
	defer e.exit()

	acct := e.lenders.Account(lender)
	var amount int64
	if acct != nil && acct.Pending != nil {
		amount = acct.Pending.Amount
	}
	if err := e.lenders.CancelWithdrawal(lender); err != nil {
		e.reject(op, "validation")
		return err
	}

	return e.commit(op, &event.WithdrawalCancelled{Lender: lender, Amount: amount}, nil, e.clock())
}

// CompleteWithdrawal executes the pending request. Completing before the
// cooldown deadline forfeits the penalty cut to the protocol reserve.
func (e *Engine) CompleteWithdrawal(lender uuid.UUID) (payout int64, err error) {
	const op = "complete_withdrawal"
	if err := e.enter(op, true); err != nil {
		return 0, err
	}
	defer e.exit()

	now := e.clock()
	acct := e.lenders.Account(lender)
	if acct != nil && acct.Pending != nil && acct.Pending.Amount > e.pool.TotalFunds {
		e.reject(op, "liquidity")
		return 0, fmt.Errorf("%w: pending %d, liquidity %d", ErrInsufficientLiquidity, acct.Pending.Amount, e.pool.TotalFunds)
	}

	res, err := e.lenders.CompleteWithdrawal(lender, now, e.riskMultiplier())
	if err != nil {
		e.reject(op, "validation")
		return 0, err
	}
	e.pool.RecordLenderWithdrawal(res.Amount + res.Penalty)

	batch := ledger.NewBatch(e.sequence, now.UnixMicro())
	batch.Transfer(
		ledger.JournalTypeLenderWithdrawal,
		ledger.NewExternalAccountKey(ledger.SubTypeExternalFunding, e.baseAssetID),
		ledger.NewPoolReserveKey(e.baseAssetID),
		e.baseAssetID, res.Amount,
	)
	if res.Penalty > 0 {
		batch.Transfer(
			ledger.JournalTypeWithdrawalPenalty,
			ledger.NewSystemAccountKey(ledger.SubTypeSystemReserve, e.baseAssetID),
			ledger.NewPoolReserveKey(e.baseAssetID),
			e.baseAssetID, res.Penalty,
		)
	}

	var evt event.Event
	if res.Early {
		evt = &event.EarlyWithdrawalPenalty{Lender: lender, Payout: res.Amount, Penalty: res.Penalty}
	} else {
		evt = &event.FundsWithdrawn{Lender: lender, Payout: res.Amount}
	}

	return res.Amount, e.commit(op, evt, batch, now)
}
