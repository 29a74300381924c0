package event

import (
	"encoding/json"
	"fmt"
)

// Decode parses a stored payload back into its typed event. The inverse of
// the engine's marshal at commit time; used when rebuilding state from the
// log on restart.
func Decode(t EventType, payload []byte) (Event, error) {
	var evt Event
	switch t {
	case EventTypeCollateralDeposited:
		evt = &CollateralDeposited{}
	case EventTypeCollateralWithdrawn:
		evt = &CollateralWithdrawn{}
	case EventTypeCollateralSeized:
		evt = &CollateralSeized{}
	case EventTypeBorrowed:
		evt = &Borrowed{}
	case EventTypeRepaid:
		evt = &Repaid{}
	case EventTypeLiquidationStarted:
		evt = &LiquidationStarted{}
	case EventTypeLiquidationRecovered:
		evt = &LiquidationRecovered{}
	case EventTypeLiquidationExecuted:
		evt = &LiquidationExecuted{}
	case EventTypeCreditScoreAssigned:
		evt = &CreditScoreAssigned{}
	case EventTypeFundsDeposited:
		evt = &FundsDeposited{}
	case EventTypeFundsWithdrawn:
		evt = &FundsWithdrawn{}
	case EventTypeWithdrawalRequested:
		evt = &WithdrawalRequested{}
	case EventTypeWithdrawalCancelled:
		evt = &WithdrawalCancelled{}
	case EventTypeEarlyWithdrawalPenalty:
		evt = &EarlyWithdrawalPenalty{}
	case EventTypeInterestClaimed:
		evt = &InterestClaimed{}
	case EventTypeEmergencyPaused:
		evt = &EmergencyPaused{}
	case EventTypeEmergencyUnpaused:
		evt = &EmergencyUnpaused{}
	case EventTypeTierConfigUpdated:
		evt = &TierConfigUpdated{}
	case EventTypeRateParamsUpdated:
		evt = &RateParamsUpdated{}
	case EventTypeAssetListed:
		evt = &AssetListed{}
	case EventTypePriceUpdated:
		evt = &PriceUpdated{}
	case EventTypeDailyRateSet:
		evt = &DailyRateSet{}
	default:
		return nil, fmt.Errorf("event: decode: unknown type %d", t)
	}
	if err := json.Unmarshal(payload, evt); err != nil {
		return nil, fmt.Errorf("event: decode %s: %w", t, err)
	}
	return evt, nil
}

// ParseEventType maps the stored string discriminator back to the type.
func ParseEventType(s string) EventType {
	for t := EventTypeCollateralDeposited; t <= EventTypeDailyRateSet; t++ {
		if t.String() == s {
			return t
		}
	}
	return EventTypeUnknown
}
