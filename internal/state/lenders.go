package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	fpmath "LendLedger/internal/math"
)

var (
	ErrDepositOutOfBounds   = errors.New("lender pool: deposit outside allowed bounds")
	ErrNoLenderAccount      = errors.New("lender pool: no account for lender")
	ErrNoPendingWithdrawal  = errors.New("lender pool: no pending withdrawal")
	ErrInsufficientBalance  = errors.New("lender pool: amount exceeds balance")
	ErrNoAccruedInterest    = errors.New("lender pool: no interest to claim")
	ErrDailyRateOutOfBounds = errors.New("lender pool: daily factor outside allowed bounds")
)

// Daily compounding factor bounds, 1e6 scale. 1_000_000 is a flat rate,
// 1_010_000 caps growth at 1% per day.
const (
	MinDailyFactor int64 = 1_000_000
	MaxDailyFactor int64 = 1_010_000
)

// PendingWithdrawal is a cooldown-gated withdrawal request. Completing it
// before AvailableAt forfeits a penalty cut.
type PendingWithdrawal struct {
	Amount      int64
	RequestedAt time.Time
	AvailableAt time.Time
}

// LenderAccount tracks one lender's principal and unclaimed interest.
type LenderAccount struct {
	Lender          uuid.UUID
	Balance         int64
	AccruedInterest int64
	DepositedAt     time.Time
	LastAccrual     time.Time
	Pending         *PendingWithdrawal
}

// LenderPool manages lender accounts and daily interest compounding. The
// aggregate fund total lives in PoolState; the engine keeps the two in step.
type LenderPool struct {
	minDeposit  int64
	maxDeposit  int64
	cooldown    time.Duration
	penaltyBps  int64
	dailyFactor int64
	accounts    map[uuid.UUID]*LenderAccount
}

func NewLenderPool(minDeposit, maxDeposit int64, cooldown time.Duration, penaltyBps int64) *LenderPool {
	return &LenderPool{
		minDeposit:  minDeposit,
		maxDeposit:  maxDeposit,
		cooldown:    cooldown,
		penaltyBps:  penaltyBps,
		dailyFactor: MinDailyFactor,
		accounts:    make(map[uuid.UUID]*LenderAccount),
	}
}

// Account returns the lender's account, nil when none exists.
func (p *LenderPool) Account(lender uuid.UUID) *LenderAccount {
	return p.accounts[lender]
}

// DailyFactor returns the current compounding factor, 1e6 scale.
func (p *LenderPool) DailyFactor() int64 {
	return p.dailyFactor
}

// SetDailyFactor replaces the base compounding factor.
func (p *LenderPool) SetDailyFactor(factor int64) error {
	if factor < MinDailyFactor || factor > MaxDailyFactor {
		return fmt.Errorf("%w: %d", ErrDailyRateOutOfBounds, factor)
	}
	p.dailyFactor = factor
	return nil
}

// Deposit credits the lender's balance, creating the account on first use.
// Interest is settled at the pre-deposit balance first.
func (p *LenderPool) Deposit(lender uuid.UUID, amount int64, now time.Time, riskMultiplier int64) (*LenderAccount, error) {
	if amount < p.minDeposit || (p.maxDeposit > 0 && amount > p.maxDeposit) {
		return nil, fmt.Errorf("%w: %d", ErrDepositOutOfBounds, amount)
	}
	acct := p.accounts[lender]
	if acct == nil {
		acct = &LenderAccount{
			Lender:      lender,
			DepositedAt: now,
			LastAccrual: now,
		}
		p.accounts[lender] = acct
	} else {
		p.settle(acct, now, riskMultiplier)
	}
	acct.Balance += amount
	return acct, nil
}

// ClaimInterest settles accrual and pays out all unclaimed interest.
func (p *LenderPool) ClaimInterest(lender uuid.UUID, now time.Time, riskMultiplier int64) (int64, error) {
	acct := p.accounts[lender]
	if acct == nil {
		return 0, ErrNoLenderAccount
	}
	p.settle(acct, now, riskMultiplier)
	if acct.AccruedInterest == 0 {
		return 0, ErrNoAccruedInterest
	}
	claimed := acct.AccruedInterest
	acct.AccruedInterest = 0
	return claimed, nil
}

// RequestWithdrawal opens (or replaces) a cooldown-gated withdrawal request.
func (p *LenderPool) RequestWithdrawal(lender uuid.UUID, amount int64, now time.Time, riskMultiplier int64) (*PendingWithdrawal, error) {
	acct := p.accounts[lender]
	if acct == nil {
		return nil, ErrNoLenderAccount
	}
	p.settle(acct, now, riskMultiplier)
	if amount <= 0 || amount > acct.Balance {
		return nil, fmt.Errorf("%w: requested %d, balance %d", ErrInsufficientBalance, amount, acct.Balance)
	}
	acct.Pending = &PendingWithdrawal{
		Amount:      amount,
		RequestedAt: now,
		AvailableAt: now.Add(p.cooldown),
	}
	return acct.Pending, nil
}

// CancelWithdrawal drops the pending request without touching the balance.
func (p *LenderPool) CancelWithdrawal(lender uuid.UUID) error {
	acct := p.accounts[lender]
	if acct == nil {
		return ErrNoLenderAccount
	}
	if acct.Pending == nil {
		return ErrNoPendingWithdrawal
	}
	acct.Pending = nil
	return nil
}

// WithdrawalResult is the settled outcome of one completed withdrawal.
type WithdrawalResult struct {
	Amount  int64 // paid to the lender
	Penalty int64 // cut retained for early completion
	Early   bool
	Closed  bool // account removed after reaching zero
}

// CompleteWithdrawal executes the pending request. Before the cooldown
// deadline the penalty cut is withheld from the payout; afterwards the full
// amount is paid. The account is removed once balance and interest are zero.
func (p *LenderPool) CompleteWithdrawal(lender uuid.UUID, now time.Time, riskMultiplier int64) (WithdrawalResult, error) {
	acct := p.accounts[lender]
	if acct == nil {
		return WithdrawalResult{}, ErrNoLenderAccount
	}
	if acct.Pending == nil {
		return WithdrawalResult{}, ErrNoPendingWithdrawal
	}
	p.settle(acct, now, riskMultiplier)

	req := acct.Pending
	amount := req.Amount
	if amount > acct.Balance {
		// interest settled into AccruedInterest, balance never shrinks
		// between request and completion except through this path
		return WithdrawalResult{}, fmt.Errorf("%w: pending %d, balance %d", ErrInsufficientBalance, amount, acct.Balance)
	}

	res := WithdrawalResult{Amount: amount}
	if now.Before(req.AvailableAt) {
		res.Early = true
		res.Penalty = fpmath.ApplyBps(amount, p.penaltyBps)
		res.Amount = amount - res.Penalty
	}

	acct.Balance -= amount
	acct.Pending = nil
	if acct.Balance == 0 && acct.AccruedInterest == 0 {
		delete(p.accounts, lender)
		res.Closed = true
	}
	return res, nil
}

// TotalBalances sums lender principal, for reconciliation against PoolState.
func (p *LenderPool) TotalBalances() int64 {
	var total int64
	for _, acct := range p.accounts {
		total += acct.Balance
	}
	return total
}

// settle folds whole elapsed days of compounding into AccruedInterest. The
// accrual clock only advances by full days so partial days carry over.
func (p *LenderPool) settle(acct *LenderAccount, now time.Time, riskMultiplier int64) {
	if now.Before(acct.LastAccrual) {
		return
	}
	days := int64(now.Sub(acct.LastAccrual) / (24 * time.Hour))
	if days <= 0 {
		return
	}
	factor := fpmath.ScaleRate(p.dailyFactor, riskMultiplier)
	acct.AccruedInterest += fpmath.CompoundDaily(acct.Balance, factor, days)
	acct.LastAccrual = acct.LastAccrual.Add(time.Duration(days) * 24 * time.Hour)
}
