package state

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"LendLedger/internal/event"
	fpmath "LendLedger/internal/math"
	"LendLedger/internal/oracle"
)

var (
	ErrAssetNotListed         = errors.New("collateral ledger: asset not allow-listed")
	ErrNonPositiveAmount      = errors.New("collateral ledger: amount must be positive")
	ErrInsufficientCollateral = errors.New("collateral ledger: insufficient collateral balance")
)

// AssetConfig is one entry in the allow-list registry.
type AssetConfig struct {
	Symbol string
	MaxAge time.Duration // oracle staleness bound for this asset
	Stable bool          // stablecoin collateral uses the separate liquidation threshold
	Listed bool
}

// CollateralLedger tracks per-user, per-asset collateral positions and
// values them through the oracle adapter. Positions are mutated only by
// deposit/withdraw/seize and never go negative.
type CollateralLedger struct {
	positions map[uuid.UUID]map[string]int64
	registry  map[string]AssetConfig
	oracle    *oracle.Adapter
}

func NewCollateralLedger(adapter *oracle.Adapter) *CollateralLedger {
	return &CollateralLedger{
		positions: make(map[uuid.UUID]map[string]int64),
		registry:  make(map[string]AssetConfig),
		oracle:    adapter,
	}
}

// SetAsset adds or updates an allow-list entry.
func (cl *CollateralLedger) SetAsset(cfg AssetConfig) {
	cl.registry[cfg.Symbol] = cfg
}

// Asset returns the registry entry for a symbol.
func (cl *CollateralLedger) Asset(symbol string) (AssetConfig, bool) {
	cfg, ok := cl.registry[symbol]
	return cfg, ok
}

// ListedAssets returns allow-listed symbols in deterministic order.
func (cl *CollateralLedger) ListedAssets() []string {
	out := make([]string, 0, len(cl.registry))
	for sym, cfg := range cl.registry {
		if cfg.Listed {
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return out
}

// Balance returns the user's position in one asset.
func (cl *CollateralLedger) Balance(user uuid.UUID, asset string) int64 {
	return cl.positions[user][asset]
}

// Deposit increases the user's position. Engine-level guards (liquidation
// record, pause) run before this is called.
func (cl *CollateralLedger) Deposit(user uuid.UUID, asset string, amount int64) error {
	cfg, ok := cl.registry[asset]
	if !ok || !cfg.Listed {
		return fmt.Errorf("%w: %s", ErrAssetNotListed, asset)
	}
	if amount <= 0 {
		return fmt.Errorf("%w: %d", ErrNonPositiveAmount, amount)
	}

	if cl.positions[user] == nil {
		cl.positions[user] = make(map[string]int64)
	}
	cl.positions[user][asset] += amount
	return nil
}

// Withdraw decreases the user's position. Health checks against outstanding
// debt are the engine's responsibility; this enforces balance only.
func (cl *CollateralLedger) Withdraw(user uuid.UUID, asset string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: %d", ErrNonPositiveAmount, amount)
	}
	held := cl.positions[user][asset]
	if held < amount {
		return fmt.Errorf("%w: have %d, want %d", ErrInsufficientCollateral, held, amount)
	}
	cl.positions[user][asset] = held - amount
	if cl.positions[user][asset] == 0 {
		delete(cl.positions[user], asset)
	}
	return nil
}

// TotalValue sums amount x price across the user's allow-listed holdings.
// Assets whose price lookup fails are skipped rather than aborting the
// valuation; the skipped symbols are returned so callers can log the
// leniency explicitly.
func (cl *CollateralLedger) TotalValue(user uuid.UUID) (value int64, skipped []string) {
	held := cl.positions[user]
	if len(held) == 0 {
		return 0, nil
	}

	assets := make([]string, 0, len(held))
	for sym := range held {
		assets = append(assets, sym)
	}
	sort.Strings(assets)

	for _, sym := range assets {
		cfg, ok := cl.registry[sym]
		if !ok || !cfg.Listed {
			continue
		}
		price, err := cl.oracle.Price(sym)
		if err != nil {
			skipped = append(skipped, sym)
			continue
		}
		value += fpmath.ValueAtPrice(held[sym], price)
	}
	return value, skipped
}

// AllStable reports whether every valued holding of the user is a stablecoin.
// Drives the asset-specific liquidation threshold.
func (cl *CollateralLedger) AllStable(user uuid.UUID) bool {
	held := cl.positions[user]
	if len(held) == 0 {
		return false
	}
	for sym, amount := range held {
		if amount == 0 {
			continue
		}
		cfg, ok := cl.registry[sym]
		if !ok || !cfg.Stable {
			return false
		}
	}
	return true
}

// Seize takes collateral from the user up to targetValue in base currency,
// walking assets in deterministic order. Assets with failed price lookups
// are skipped, consistent with valuation leniency. Returns the seized
// slices; total seized value may be below target when holdings run out.
func (cl *CollateralLedger) Seize(user uuid.UUID, targetValue int64) []event.SeizedAsset {
	if targetValue <= 0 {
		return nil
	}
	held := cl.positions[user]
	if len(held) == 0 {
		return nil
	}

	assets := make([]string, 0, len(held))
	for sym := range held {
		assets = append(assets, sym)
	}
	sort.Strings(assets)

	var seized []event.SeizedAsset
	remaining := targetValue

	for _, sym := range assets {
		if remaining <= 0 {
			break
		}
		amount := held[sym]
		if amount <= 0 {
			continue
		}
		price, err := cl.oracle.Price(sym)
		if err != nil {
			continue
		}

		take := fpmath.AmountAtPrice(remaining, price)
		if take > amount {
			take = amount
		}
		value := fpmath.ValueAtPrice(take, price)

		held[sym] -= take
		if held[sym] == 0 {
			delete(held, sym)
		}
		remaining -= value
		seized = append(seized, event.SeizedAsset{Asset: sym, Amount: take, Value: value})
	}

	return seized
}

// CheckNonNegative verifies no position went below zero.
func (cl *CollateralLedger) CheckNonNegative() error {
	for user, held := range cl.positions {
		for sym, amount := range held {
			if amount < 0 {
				return fmt.Errorf("collateral ledger: negative position user=%s asset=%s amount=%d", user, sym, amount)
			}
		}
	}
	return nil
}
