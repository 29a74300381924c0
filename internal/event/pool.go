package event

import "github.com/google/uuid"

type FundsDeposited struct {
	Lender uuid.UUID `json:"lender"`
	Amount int64     `json:"amount"`
}

func (e *FundsDeposited) EventType() EventType { return EventTypeFundsDeposited }
func (e *FundsDeposited) Actor() uuid.UUID     { return e.Lender }

type FundsWithdrawn struct {
	Lender uuid.UUID `json:"lender"`
	Payout int64     `json:"payout"`
}

func (e *FundsWithdrawn) EventType() EventType { return EventTypeFundsWithdrawn }
func (e *FundsWithdrawn) Actor() uuid.UUID     { return e.Lender }

type WithdrawalRequested struct {
	Lender uuid.UUID `json:"lender"`
	Amount int64     `json:"amount"`
}

func (e *WithdrawalRequested) EventType() EventType { return EventTypeWithdrawalRequested }
func (e *WithdrawalRequested) Actor() uuid.UUID     { return e.Lender }

type WithdrawalCancelled struct {
	Lender uuid.UUID `json:"lender"`
	Amount int64     `json:"amount"`
}

func (e *WithdrawalCancelled) EventType() EventType { return EventTypeWithdrawalCancelled }
func (e *WithdrawalCancelled) Actor() uuid.UUID     { return e.Lender }

type EarlyWithdrawalPenalty struct {
	Lender  uuid.UUID `json:"lender"`
	Payout  int64     `json:"payout"`
	Penalty int64     `json:"penalty"` // forfeited to the protocol reserve
}

func (e *EarlyWithdrawalPenalty) EventType() EventType { return EventTypeEarlyWithdrawalPenalty }
func (e *EarlyWithdrawalPenalty) Actor() uuid.UUID     { return e.Lender }

type InterestClaimed struct {
	Lender   uuid.UUID `json:"lender"`
	Interest int64     `json:"interest"`
}

func (e *InterestClaimed) EventType() EventType { return EventTypeInterestClaimed }
func (e *InterestClaimed) Actor() uuid.UUID     { return e.Lender }
