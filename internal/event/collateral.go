package event

import "github.com/google/uuid"

type CollateralDeposited struct {
	User   uuid.UUID `json:"user"`
	Asset  string    `json:"asset"`
	Amount int64     `json:"amount"` // Fixed-point
}

func (e *CollateralDeposited) EventType() EventType { return EventTypeCollateralDeposited }
func (e *CollateralDeposited) Actor() uuid.UUID     { return e.User }

type CollateralWithdrawn struct {
	User   uuid.UUID `json:"user"`
	Asset  string    `json:"asset"`
	Amount int64     `json:"amount"`
}

func (e *CollateralWithdrawn) EventType() EventType { return EventTypeCollateralWithdrawn }
func (e *CollateralWithdrawn) Actor() uuid.UUID     { return e.User }

// SeizedAsset is one collateral slice taken during liquidation.
type SeizedAsset struct {
	Asset  string `json:"asset"`
	Amount int64  `json:"amount"`
	Value  int64  `json:"value"` // base-currency value at seizure price
}

type CollateralSeized struct {
	User   uuid.UUID     `json:"user"`
	Seized []SeizedAsset `json:"seized"`
}

func (e *CollateralSeized) EventType() EventType { return EventTypeCollateralSeized }
func (e *CollateralSeized) Actor() uuid.UUID     { return e.User }
