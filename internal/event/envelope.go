package event

import (
	"time"

	"github.com/google/uuid"
)

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeCollateralDeposited
	EventTypeCollateralWithdrawn
	EventTypeCollateralSeized
	EventTypeBorrowed
	EventTypeRepaid
	EventTypeLiquidationStarted
	EventTypeLiquidationRecovered
	EventTypeLiquidationExecuted
	EventTypeCreditScoreAssigned
	EventTypeFundsDeposited
	EventTypeFundsWithdrawn
	EventTypeWithdrawalRequested
	EventTypeWithdrawalCancelled
	EventTypeEarlyWithdrawalPenalty
	EventTypeInterestClaimed
	EventTypeEmergencyPaused
	EventTypeEmergencyUnpaused
	EventTypeTierConfigUpdated
	EventTypeRateParamsUpdated
	EventTypeAssetListed
	EventTypePriceUpdated
	EventTypeDailyRateSet
)

// Envelope wraps every event in the log
type Envelope struct {
	// Global monotonic sequence assigned by the engine
	Sequence int64

	// Event type discriminator
	EventType EventType

	// The user the operation acted on (uuid.Nil for global/admin events)
	Actor uuid.UUID

	// Engine clock at dispatch time
	Timestamp time.Time

	// JSON-encoded event-specific data
	Payload []byte

	// SHA-256 of state AFTER applying this event
	StateHash [32]byte

	// Previous event's state hash (chain integrity)
	PrevHash [32]byte
}

// Event is the interface all event payloads must implement
type Event interface {
	// EventType returns the discriminator
	EventType() EventType

	// Actor returns the user context (uuid.Nil for global events)
	Actor() uuid.UUID
}

func (et EventType) String() string {
	switch et {
	case EventTypeCollateralDeposited:
		return "CollateralDeposited"
	case EventTypeCollateralWithdrawn:
		return "CollateralWithdrawn"
	case EventTypeCollateralSeized:
		return "CollateralSeized"
	case EventTypeBorrowed:
		return "Borrowed"
	case EventTypeRepaid:
		return "Repaid"
	case EventTypeLiquidationStarted:
		return "LiquidationStarted"
	case EventTypeLiquidationRecovered:
		return "LiquidationRecovered"
	case EventTypeLiquidationExecuted:
		return "LiquidationExecuted"
	case EventTypeCreditScoreAssigned:
		return "CreditScoreAssigned"
	case EventTypeFundsDeposited:
		return "FundsDeposited"
	case EventTypeFundsWithdrawn:
		return "FundsWithdrawn"
	case EventTypeWithdrawalRequested:
		return "WithdrawalRequested"
	case EventTypeWithdrawalCancelled:
		return "WithdrawalCancelled"
	case EventTypeEarlyWithdrawalPenalty:
		return "EarlyWithdrawalPenalty"
	case EventTypeInterestClaimed:
		return "InterestClaimed"
	case EventTypeEmergencyPaused:
		return "EmergencyPaused"
	case EventTypeEmergencyUnpaused:
		return "EmergencyUnpaused"
	case EventTypeTierConfigUpdated:
		return "TierConfigUpdated"
	case EventTypeRateParamsUpdated:
		return "RateParamsUpdated"
	case EventTypeAssetListed:
		return "AssetListed"
	case EventTypePriceUpdated:
		return "PriceUpdated"
	case EventTypeDailyRateSet:
		return "DailyRateSet"
	default:
		return "Unknown"
	}
}
