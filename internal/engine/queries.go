package engine

import (
	"time"

	"github.com/google/uuid"

	fpmath "LendLedger/internal/math"
	"LendLedger/internal/state"
)

func previewInterest(loan *state.Loan, now time.Time) int64 {
	return fpmath.SimpleInterest(loan.PrincipalOutstanding, loan.RateBps, now.Sub(loan.LastAccrual))
}

// PoolStatus is the public view of the pool and rate state.
type PoolStatus struct {
	TotalFunds           int64 `json:"total_funds"`
	OutstandingPrincipal int64 `json:"outstanding_principal"`
	TotalBorrowedAllTime int64 `json:"total_borrowed_all_time"`
	TotalRepaidAllTime   int64 `json:"total_repaid_all_time"`
	UtilizationBps       int64 `json:"utilization_bps"`
	BorrowRateBps        int64 `json:"borrow_rate_bps"`
	SupplyRateBps        int64 `json:"supply_rate_bps"`
	RiskMultiplier       int64 `json:"risk_multiplier"`
	RepaymentRatioBps    int64 `json:"repayment_ratio_bps"`
	DailyFactor          int64 `json:"daily_factor"`
	Paused               bool  `json:"paused"`
}

// PoolStatus reports pool totals and current model rates.
func (e *Engine) PoolStatus() PoolStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	u := e.utilizationBps()
	sig := e.marketSignal()
	return PoolStatus{
		TotalFunds:           e.pool.TotalFunds,
		OutstandingPrincipal: e.pool.OutstandingPrincipal(),
		TotalBorrowedAllTime: e.pool.TotalBorrowedAllTime,
		TotalRepaidAllTime:   e.pool.TotalRepaidAllTime,
		UtilizationBps:       u,
		BorrowRateBps:        e.rates.BorrowRateBps(u, sig),
		SupplyRateBps:        e.rates.SupplyRateBps(u, sig),
		RiskMultiplier:       e.riskMultiplier(),
		RepaymentRatioBps:    e.pool.RepaymentRatioBps(),
		DailyFactor:          e.lenders.DailyFactor(),
		Paused:               e.paused,
	}
}

// LoanStatus is the public view of one borrower's loan.
type LoanStatus struct {
	Borrower             uuid.UUID  `json:"borrower"`
	Active               bool       `json:"active"`
	Principal            int64      `json:"principal"`
	PrincipalOutstanding int64      `json:"principal_outstanding"`
	InterestAccrued      int64      `json:"interest_accrued"`
	Outstanding          int64      `json:"outstanding"`
	RateBps              int64      `json:"rate_bps"`
	Tier                 int        `json:"tier"`
	OriginatedAt         time.Time  `json:"originated_at,omitempty"`
	InLiquidation        bool       `json:"in_liquidation"`
	LiquidationDeadline  *time.Time `json:"liquidation_deadline,omitempty"`
}

// LoanStatus reports the borrower's loan with interest accrued to now.
// Read-only: the accrual preview does not touch the stored loan.
func (e *Engine) LoanStatus(borrower uuid.UUID) LoanStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	loan := e.loans.Get(borrower)
	if loan == nil || !loan.Active {
		return LoanStatus{Borrower: borrower}
	}

	interest := loan.InterestAccrued
	now := e.clock()
	if now.After(loan.LastAccrual) {
		interest += previewInterest(loan, now)
	}

	status := LoanStatus{
		Borrower:             borrower,
		Active:               true,
		Principal:            loan.Principal,
		PrincipalOutstanding: loan.PrincipalOutstanding,
		InterestAccrued:      interest,
		Outstanding:          loan.PrincipalOutstanding + interest,
		RateBps:              loan.RateBps,
		Tier:                 loan.Tier,
		OriginatedAt:         loan.OriginatedAt,
		InLiquidation:        loan.InLiquidation(),
	}
	if rec := e.liquidations.Get(borrower); rec != nil {
		deadline := rec.Deadline
		status.LiquidationDeadline = &deadline
	}
	return status
}

// CollateralStatus is the valued view of a user's collateral.
type CollateralStatus struct {
	User     uuid.UUID        `json:"user"`
	Value    int64            `json:"value"`
	Holdings map[string]int64 `json:"holdings"`
	Skipped  []string         `json:"skipped,omitempty"`
}

// CollateralStatus values the user's holdings at current prices.
func (e *Engine) CollateralStatus(user uuid.UUID) CollateralStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	value, skipped := e.collateral.TotalValue(user)
	holdings := make(map[string]int64)
	for _, sym := range e.collateral.ListedAssets() {
		if bal := e.collateral.Balance(user, sym); bal > 0 {
			holdings[sym] = bal
		}
	}
	return CollateralStatus{User: user, Value: value, Holdings: holdings, Skipped: skipped}
}

// LenderStatus is the public view of one lender account.
type LenderStatus struct {
	Lender          uuid.UUID  `json:"lender"`
	Balance         int64      `json:"balance"`
	AccruedInterest int64      `json:"accrued_interest"`
	PendingAmount   int64      `json:"pending_amount,omitempty"`
	AvailableAt     *time.Time `json:"available_at,omitempty"`
}

// LenderStatus reports the lender's balance and any pending withdrawal.
// Interest shown is as of the last settlement; claims settle first.
func (e *Engine) LenderStatus(lender uuid.UUID) LenderStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	acct := e.lenders.Account(lender)
	if acct == nil {
		return LenderStatus{Lender: lender}
	}
	status := LenderStatus{
		Lender:          lender,
		Balance:         acct.Balance,
		AccruedInterest: acct.AccruedInterest,
	}
	if acct.Pending != nil {
		status.PendingAmount = acct.Pending.Amount
		at := acct.Pending.AvailableAt
		status.AvailableAt = &at
	}
	return status
}

// TierTable returns the active tier configuration.
func (e *Engine) TierTable() state.TierTable {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tiers.Table()
}

// RateParams returns the active rate model parameters.
func (e *Engine) RateParams() state.RateParams {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rates.Params()
}

// Paused reports the emergency pause state.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// SnapshotView is a point-in-time export of the engine's durable state,
// taken under the engine lock so it is consistent with one sequence number.
type SnapshotView struct {
	Sequence             int64            `json:"sequence"`
	StateHash            []byte           `json:"state_hash"`
	Balances             map[string]int64 `json:"balances"`
	TotalFunds           int64            `json:"total_funds"`
	OutstandingPrincipal int64            `json:"outstanding_principal"`
	TotalBorrowedAllTime int64            `json:"total_borrowed_all_time"`
	TotalRepaidAllTime   int64            `json:"total_repaid_all_time"`
	ActiveLoans          int              `json:"active_loans"`
	OpenLiquidations     int              `json:"open_liquidations"`
	DailyFactor          int64            `json:"daily_factor"`
	Paused               bool             `json:"paused"`
	TakenAt              time.Time        `json:"taken_at"`
}

// SnapshotView exports the current state for periodic snapshotting.
func (e *Engine) SnapshotView() SnapshotView {
	e.mu.Lock()
	defer e.mu.Unlock()

	hash := e.hasher.GetPrevHash()
	return SnapshotView{
		Sequence:             e.sequence,
		StateHash:            hash[:],
		Balances:             e.balances.Snapshot(),
		TotalFunds:           e.pool.TotalFunds,
		OutstandingPrincipal: e.pool.OutstandingPrincipal(),
		TotalBorrowedAllTime: e.pool.TotalBorrowedAllTime,
		TotalRepaidAllTime:   e.pool.TotalRepaidAllTime,
		ActiveLoans:          len(e.loans.ActiveExposures()),
		OpenLiquidations:     e.liquidations.Open(),
		DailyFactor:          e.lenders.DailyFactor(),
		Paused:               e.paused,
		TakenAt:              e.clock(),
	}
}
