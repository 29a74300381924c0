package event

import "github.com/google/uuid"

type Borrowed struct {
	Borrower       uuid.UUID `json:"borrower"`
	Amount         int64     `json:"amount"`
	Tier           int       `json:"tier"`
	RateBps        int64     `json:"rate_bps"`
	OriginationFee int64     `json:"origination_fee"`
}

func (e *Borrowed) EventType() EventType { return EventTypeBorrowed }
func (e *Borrowed) Actor() uuid.UUID     { return e.Borrower }

type Repaid struct {
	Borrower      uuid.UUID `json:"borrower"`
	Value         int64     `json:"value"`
	InterestPaid  int64     `json:"interest_paid"`
	PrincipalPaid int64     `json:"principal_paid"`
	Refund        int64     `json:"refund,omitempty"` // only in refund-on-overpay mode
	Cleared       bool      `json:"cleared"`
}

func (e *Repaid) EventType() EventType { return EventTypeRepaid }
func (e *Repaid) Actor() uuid.UUID     { return e.Borrower }
