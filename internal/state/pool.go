package state

import (
	"fmt"

	fpmath "LendLedger/internal/math"
)

// PoolState tracks the shared liquidity reserve and the audit counters the
// risk multiplier feeds on. TotalBorrowedAllTime and TotalRepaidAllTime are
// monotone counters, distinct from outstanding debt.
type PoolState struct {
	TotalFunds           int64
	TotalBorrowedAllTime int64
	TotalRepaidAllTime   int64
	BorrowedByTier       [TierCount]int64 // outstanding principal per tier
}

func NewPoolState() *PoolState {
	return &PoolState{}
}

// RecordLenderDeposit adds lender funds to the reserve.
func (p *PoolState) RecordLenderDeposit(amount int64) {
	p.TotalFunds += amount
}

// RecordLenderWithdrawal removes funds from the reserve (payout + penalty).
func (p *PoolState) RecordLenderWithdrawal(amount int64) {
	p.TotalFunds -= amount
}

// RecordBorrow moves amount out of the reserve and books it against the tier.
func (p *PoolState) RecordBorrow(tier int, amount int64) {
	p.TotalFunds -= amount
	p.TotalBorrowedAllTime += amount
	p.BorrowedByTier[tier-1] += amount
}

// RecordRepayment returns funds to the reserve. Only the principal portion
// moves the audit counter and the per-tier outstanding book; interest is
// lender earnings on top.
func (p *PoolState) RecordRepayment(tier int, principal, interest int64) {
	p.TotalFunds += principal + interest
	p.TotalRepaidAllTime += principal
	p.BorrowedByTier[tier-1] -= principal
}

// RecordLiquidation clears the borrower's outstanding principal from the tier
// book and counts it as repaid for the risk ratio. The reserve is not
// replenished in base currency; recovery arrives as seized collateral.
func (p *PoolState) RecordLiquidation(tier int, outstandingPrincipal int64) {
	p.TotalRepaidAllTime += outstandingPrincipal
	p.BorrowedByTier[tier-1] -= outstandingPrincipal
}

// OutstandingPrincipal sums the per-tier book.
func (p *PoolState) OutstandingPrincipal() int64 {
	var total int64
	for _, v := range p.BorrowedByTier {
		total += v
	}
	return total
}

// RepaymentRatioBps returns repaid/borrowed in basis points, 10_000 when no
// borrowing has occurred.
func (p *PoolState) RepaymentRatioBps() int64 {
	if p.TotalBorrowedAllTime == 0 {
		return fpmath.BpsScale
	}
	return fpmath.MulDiv(p.TotalRepaidAllTime, fpmath.BpsScale, p.TotalBorrowedAllTime, fpmath.RoundDown)
}

// CheckCounters validates the monotone counters and tier book.
func (p *PoolState) CheckCounters(totalActivePrincipal int64) error {
	if p.TotalFunds < 0 {
		return fmt.Errorf("pool state: totalFunds negative: %d", p.TotalFunds)
	}
	if p.TotalRepaidAllTime > p.TotalBorrowedAllTime {
		return fmt.Errorf("pool state: repaid %d exceeds borrowed %d", p.TotalRepaidAllTime, p.TotalBorrowedAllTime)
	}
	for i, v := range p.BorrowedByTier {
		if v < 0 {
			return fmt.Errorf("pool state: tier %d book negative: %d", i+1, v)
		}
	}
	if got := p.OutstandingPrincipal(); got != totalActivePrincipal {
		return fmt.Errorf("pool state: tier book %d disagrees with active principal %d", got, totalActivePrincipal)
	}
	return nil
}
