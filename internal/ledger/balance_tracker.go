package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// BalanceTracker maintains in-memory account balances
type BalanceTracker struct {
	balances map[AccountKey]int64
}

func NewBalanceTracker() *BalanceTracker {
	return &BalanceTracker{
		balances: make(map[AccountKey]int64),
	}
}

// ApplyJournal applies a single journal entry to balances
func (bt *BalanceTracker) ApplyJournal(j Journal) {
	bt.balances[j.DebitAccount] += j.Amount
	bt.balances[j.CreditAccount] -= j.Amount
}

// ApplyBatch applies all journals in a batch
func (bt *BalanceTracker) ApplyBatch(batch *Batch) error {
	if err := batch.Validate(); err != nil {
		return fmt.Errorf("invalid batch: %w", err)
	}

	for _, j := range batch.Journals {
		bt.ApplyJournal(j)
	}

	return nil
}

// GetBalance returns the current balance for an account
func (bt *BalanceTracker) GetBalance(key AccountKey) int64 {
	return bt.balances[key]
}

// GetUserCollateral returns the user's ledgered collateral for an asset.
func (bt *BalanceTracker) GetUserCollateral(userID uuid.UUID, assetID AssetID) int64 {
	return bt.GetBalance(NewUserAccountKey(userID, SubTypeCollateral, assetID))
}

// GetPoolReserve returns the shared liquidity reserve balance.
func (bt *BalanceTracker) GetPoolReserve(assetID AssetID) int64 {
	return bt.GetBalance(NewPoolReserveKey(assetID))
}

// GetSystemReserve returns the protocol reserve balance for an asset.
func (bt *BalanceTracker) GetSystemReserve(assetID AssetID) int64 {
	return bt.GetBalance(NewSystemAccountKey(SubTypeSystemReserve, assetID))
}

// ValidateCollateralNonNegative checks user collateral >= 0.
func (bt *BalanceTracker) ValidateCollateralNonNegative(userID uuid.UUID, assetID AssetID) error {
	balance := bt.GetUserCollateral(userID, assetID)
	if balance < 0 {
		return fmt.Errorf("user %s has negative collateral for asset %d: %d",
			userID.String(), assetID, balance)
	}
	return nil
}

// ComputeGlobalBalance sums all account balances per asset (should be 0 for
// a zero-sum ledger).
func (bt *BalanceTracker) ComputeGlobalBalance() map[AssetID]int64 {
	totals := make(map[AssetID]int64)
	for key, balance := range bt.balances {
		totals[key.AssetID] += balance
	}
	return totals
}

// Snapshot exports every non-zero balance keyed by account path.
func (bt *BalanceTracker) Snapshot() map[string]int64 {
	out := make(map[string]int64, len(bt.balances))
	for key, balance := range bt.balances {
		if balance != 0 {
			out[key.AccountPath()] = balance
		}
	}
	return out
}
