package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	fpmath "LendLedger/internal/math"
)

var (
	ErrActiveLoanExists = errors.New("loan manager: borrower already has an active loan")
	ErrNoActiveLoan     = errors.New("loan manager: no active loan")
	ErrOverpayment      = errors.New("loan manager: payment exceeds outstanding debt")
)

// Loan is the per-borrower loan record. At most one active loan per borrower.
// Outstanding debt is principal plus lazily accrued simple interest; the
// per-tier pool book tracks principal only.
type Loan struct {
	Borrower             uuid.UUID
	Principal            int64 // originated amount, fixed for the loan's life
	PrincipalOutstanding int64
	InterestAccrued      int64
	RateBps              int64 // borrower rate snapshot at origination
	Tier                 int
	OriginatedAt         time.Time
	LastAccrual          time.Time
	Active               bool
	LiquidationID        *uuid.UUID // set while in the liquidation sub-state
}

// Outstanding is the full debt: principal plus accrued interest.
func (l *Loan) Outstanding() int64 {
	return l.PrincipalOutstanding + l.InterestAccrued
}

// InLiquidation reports the liquidation sub-state.
func (l *Loan) InLiquidation() bool {
	return l.LiquidationID != nil
}

// LoanManager owns the per-borrower loan state machine:
// None -> Active -> {Active, InLiquidation} -> Cleared.
type LoanManager struct {
	loans map[uuid.UUID]*Loan
}

func NewLoanManager() *LoanManager {
	return &LoanManager{
		loans: make(map[uuid.UUID]*Loan),
	}
}

// Get returns the borrower's loan record, nil when none exists.
func (lm *LoanManager) Get(borrower uuid.UUID) *Loan {
	return lm.loans[borrower]
}

// Active returns the borrower's active loan or ErrNoActiveLoan.
func (lm *LoanManager) Active(borrower uuid.UUID) (*Loan, error) {
	loan := lm.loans[borrower]
	if loan == nil || !loan.Active {
		return nil, ErrNoActiveLoan
	}
	return loan, nil
}

// Originate creates a new active loan. Pool capacity, tier-term, and
// collateral guards run in the engine before this is reached.
func (lm *LoanManager) Originate(borrower uuid.UUID, amount int64, tier int, rateBps int64, now time.Time) (*Loan, error) {
	if existing := lm.loans[borrower]; existing != nil && existing.Active {
		return nil, ErrActiveLoanExists
	}
	loan := &Loan{
		Borrower:             borrower,
		Principal:            amount,
		PrincipalOutstanding: amount,
		RateBps:              rateBps,
		Tier:                 tier,
		OriginatedAt:         now,
		LastAccrual:          now,
		Active:               true,
	}
	lm.loans[borrower] = loan
	return loan, nil
}

// Accrue folds simple interest since the last touch into the loan.
func (lm *LoanManager) Accrue(loan *Loan, now time.Time) {
	if !loan.Active || now.Before(loan.LastAccrual) {
		return
	}
	interest := fpmath.SimpleInterest(loan.PrincipalOutstanding, loan.RateBps, now.Sub(loan.LastAccrual))
	loan.InterestAccrued += interest
	loan.LastAccrual = now
}

// Repayment is the breakdown of one applied payment.
type Repayment struct {
	InterestPaid  int64
	PrincipalPaid int64
	Refund        int64 // non-zero only in refund-on-overpay mode
	Cleared       bool
}

// ApplyRepayment reduces the debt by value, interest first. The default
// policy rejects payments above outstanding debt; with refundOverpay the
// excess is returned to the caller instead. Clears the loan when the debt
// reaches zero.
func (lm *LoanManager) ApplyRepayment(loan *Loan, value int64, refundOverpay bool) (Repayment, error) {
	if !loan.Active {
		return Repayment{}, ErrNoActiveLoan
	}

	outstanding := loan.Outstanding()
	if value > outstanding {
		if !refundOverpay {
			return Repayment{}, fmt.Errorf("%w: outstanding %d, got %d", ErrOverpayment, outstanding, value)
		}
	}

	applied := value
	var refund int64
	if applied > outstanding {
		refund = applied - outstanding
		applied = outstanding
	}

	interestPaid := applied
	if interestPaid > loan.InterestAccrued {
		interestPaid = loan.InterestAccrued
	}
	principalPaid := applied - interestPaid

	loan.InterestAccrued -= interestPaid
	loan.PrincipalOutstanding -= principalPaid

	rep := Repayment{
		InterestPaid:  interestPaid,
		PrincipalPaid: principalPaid,
		Refund:        refund,
	}

	if loan.Outstanding() == 0 {
		lm.clear(loan)
		rep.Cleared = true
	}
	return rep, nil
}

// ApplyRecordedRepayment applies a repayment split captured in the event
// log. Replay trusts the recorded amounts instead of recomputing the
// interest-first split.
func (lm *LoanManager) ApplyRecordedRepayment(loan *Loan, interestPaid, principalPaid int64, cleared bool) {
	loan.InterestAccrued -= interestPaid
	loan.PrincipalOutstanding -= principalPaid
	if cleared {
		lm.clear(loan)
	}
}

// ClearForLiquidation zeroes the loan after a completed seizure and returns
// the principal that was outstanding (counted as repaid for the risk ratio).
func (lm *LoanManager) ClearForLiquidation(loan *Loan) int64 {
	principal := loan.PrincipalOutstanding
	lm.clear(loan)
	return principal
}

func (lm *LoanManager) clear(loan *Loan) {
	loan.PrincipalOutstanding = 0
	loan.InterestAccrued = 0
	loan.Active = false
	loan.LiquidationID = nil
}

// ActiveExposures lists open loans for the risk engine.
func (lm *LoanManager) ActiveExposures() []LoanExposure {
	var out []LoanExposure
	for _, loan := range lm.loans {
		if loan.Active {
			out = append(out, LoanExposure{Outstanding: loan.Outstanding(), Tier: loan.Tier})
		}
	}
	return out
}

// TotalActivePrincipal sums outstanding principal across active loans.
func (lm *LoanManager) TotalActivePrincipal() int64 {
	var total int64
	for _, loan := range lm.loans {
		if loan.Active {
			total += loan.PrincipalOutstanding
		}
	}
	return total
}

// CheckActiveLoans verifies every active loan still carries debt.
func (lm *LoanManager) CheckActiveLoans() error {
	for borrower, loan := range lm.loans {
		if loan.Active && loan.Outstanding() <= 0 {
			return fmt.Errorf("loan manager: active loan with zero outstanding for %s", borrower)
		}
	}
	return nil
}
