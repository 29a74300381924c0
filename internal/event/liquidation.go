package event

import (
	"time"

	"github.com/google/uuid"
)

type LiquidationStarted struct {
	RecordID uuid.UUID `json:"record_id"`
	Borrower uuid.UUID `json:"borrower"`
	Deadline time.Time `json:"deadline"`
}

func (e *LiquidationStarted) EventType() EventType { return EventTypeLiquidationStarted }
func (e *LiquidationStarted) Actor() uuid.UUID     { return e.Borrower }

type LiquidationRecovered struct {
	RecordID uuid.UUID `json:"record_id"`
	Borrower uuid.UUID `json:"borrower"`
	Asset    string    `json:"asset"`
	Amount   int64     `json:"amount"`
}

func (e *LiquidationRecovered) EventType() EventType { return EventTypeLiquidationRecovered }
func (e *LiquidationRecovered) Actor() uuid.UUID     { return e.Borrower }

type LiquidationExecuted struct {
	RecordID    uuid.UUID     `json:"record_id"`
	Borrower    uuid.UUID     `json:"borrower"`
	Outstanding int64         `json:"outstanding"` // debt cleared, counted as repaid
	Penalty     int64         `json:"penalty"`
	Seized      []SeizedAsset `json:"seized"`
}

func (e *LiquidationExecuted) EventType() EventType { return EventTypeLiquidationExecuted }
func (e *LiquidationExecuted) Actor() uuid.UUID     { return e.Borrower }
