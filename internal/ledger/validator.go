package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// InvariantValidator checks ledger invariants after each applied batch
type InvariantValidator struct {
	tracker *BalanceTracker
}

func NewInvariantValidator(tracker *BalanceTracker) *InvariantValidator {
	return &InvariantValidator{
		tracker: tracker,
	}
}

// ValidateBatchBalance verifies batch is balanced
func (v *InvariantValidator) ValidateBatchBalance(batch *Batch) error {
	return batch.Validate()
}

// ValidateGlobalBalance verifies the system is zero-sum per asset
func (v *InvariantValidator) ValidateGlobalBalance() error {
	totals := v.tracker.ComputeGlobalBalance()

	for assetID, total := range totals {
		if total != 0 {
			assetName, _ := GetAssetName(assetID)
			return fmt.Errorf("global balance for %s is non-zero: %d", assetName, total)
		}
	}

	return nil
}

// ValidatePoolReserveNonNegative checks the liquidity reserve never goes
// below zero.
func (v *InvariantValidator) ValidatePoolReserveNonNegative(assetID AssetID) error {
	reserve := v.tracker.GetPoolReserve(assetID)
	if reserve < 0 {
		return fmt.Errorf("pool reserve for asset %d is negative: %d", assetID, reserve)
	}
	return nil
}

// ValidatePoolReserveMatches checks the reserve ledger account agrees with
// the pool state's totalFunds counter.
func (v *InvariantValidator) ValidatePoolReserveMatches(assetID AssetID, totalFunds int64) error {
	reserve := v.tracker.GetPoolReserve(assetID)
	if reserve != totalFunds {
		return fmt.Errorf("pool reserve %d disagrees with pool state totalFunds %d", reserve, totalFunds)
	}
	return nil
}

// ValidateUserCollateralNonNegative checks user collateral >= 0
func (v *InvariantValidator) ValidateUserCollateralNonNegative(userID uuid.UUID, assetID AssetID) error {
	return v.tracker.ValidateCollateralNonNegative(userID, assetID)
}
