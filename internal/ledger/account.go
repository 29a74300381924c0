package ledger

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// AccountScope represents the top-level account namespace
type AccountScope uint8

const (
	AccountScopeUser AccountScope = iota
	AccountScopePool
	AccountScopeSystem
	AccountScopeExternal
)

// AccountSubType represents the account purpose
type AccountSubType uint8

const (
	// User sub-types
	SubTypeCollateral AccountSubType = iota
	SubTypeWallet // boundary account mirroring the user's off-system wallet; may go negative by accrued interest

	// Pool sub-types
	SubTypePoolReserve

	// System sub-types
	SubTypeSystemReserve // origination fees, liquidation penalties, withdrawal forfeits
	SubTypeSystemSeized  // collateral seized from liquidated borrowers

	// External sub-types
	SubTypeExternalFunding    // lender deposits/withdrawals boundary
	SubTypeExternalCollateral // collateral deposits/withdrawals boundary
)

// AssetID maps asset symbols to numeric IDs for compact account keys
type AssetID uint16

// The registry is written by the engine goroutine on asset listing and read
// by the persistence worker when rendering account paths, so access is
// guarded by assetMu.
var (
	assetMu   sync.RWMutex
	assetToID = map[string]AssetID{
		"USDC": 1,
		"DAI":  2,
		"WETH": 3,
		"WBTC": 4,
	}
	idToAsset = map[AssetID]string{
		1: "USDC",
		2: "DAI",
		3: "WETH",
		4: "WBTC",
	}
	nextAssetID AssetID = 5
)

func GetAssetID(asset string) (AssetID, bool) {
	assetMu.RLock()
	defer assetMu.RUnlock()
	id, ok := assetToID[asset]
	return id, ok
}

func GetAssetName(id AssetID) (string, bool) {
	assetMu.RLock()
	defer assetMu.RUnlock()
	name, ok := idToAsset[id]
	return name, ok
}

// RegisterAsset assigns an ID to a newly allow-listed asset symbol.
// Idempotent for already-known symbols.
func RegisterAsset(asset string) AssetID {
	assetMu.Lock()
	defer assetMu.Unlock()
	if id, ok := assetToID[asset]; ok {
		return id
	}
	id := nextAssetID
	nextAssetID++
	assetToID[asset] = id
	idToAsset[id] = asset
	return id
}

// AccountKey is the in-memory key for balance tracking
type AccountKey struct {
	Scope    AccountScope
	EntityID [16]byte // UUID for users, zero for singleton accounts
	SubType  AccountSubType
	AssetID  AssetID
}

// NewUserAccountKey creates a key for user accounts
func NewUserAccountKey(userID uuid.UUID, subType AccountSubType, assetID AssetID) AccountKey {
	return AccountKey{
		Scope:    AccountScopeUser,
		EntityID: userID,
		SubType:  subType,
		AssetID:  assetID,
	}
}

// NewPoolReserveKey creates the key for the shared liquidity reserve.
func NewPoolReserveKey(assetID AssetID) AccountKey {
	return AccountKey{
		Scope:   AccountScopePool,
		SubType: SubTypePoolReserve,
		AssetID: assetID,
	}
}

// NewSystemAccountKey creates a key for system accounts
func NewSystemAccountKey(subType AccountSubType, assetID AssetID) AccountKey {
	return AccountKey{
		Scope:   AccountScopeSystem,
		SubType: subType,
		AssetID: assetID,
	}
}

// NewExternalAccountKey creates a key for external boundary accounts
func NewExternalAccountKey(subType AccountSubType, assetID AssetID) AccountKey {
	return AccountKey{
		Scope:   AccountScopeExternal,
		SubType: subType,
		AssetID: assetID,
	}
}

// AccountPath returns the string representation for storage/logging
func (k AccountKey) AccountPath() string {
	assetName, _ := GetAssetName(k.AssetID)

	switch k.Scope {
	case AccountScopeUser:
		uid := uuid.UUID(k.EntityID)
		return fmt.Sprintf("user:%s:%s:%s", uid.String(), k.subTypeName(), assetName)
	case AccountScopePool:
		return fmt.Sprintf("pool:%s:%s", k.subTypeName(), assetName)
	case AccountScopeSystem:
		return fmt.Sprintf("system:%s:%s", k.subTypeName(), assetName)
	case AccountScopeExternal:
		return fmt.Sprintf("external:%s:%s", k.subTypeName(), assetName)
	}
	return "unknown"
}

// ParseAccountPath is the inverse of AccountPath, used when folding stored
// journal rows back into balance keys. Unknown asset symbols are registered
// on the fly; numeric IDs are process-local, the path is the durable form.
func ParseAccountPath(path string) (AccountKey, error) {
	parts := strings.Split(path, ":")
	if len(parts) < 3 {
		return AccountKey{}, fmt.Errorf("ledger: malformed account path %q", path)
	}

	switch parts[0] {
	case "user":
		if len(parts) != 4 {
			return AccountKey{}, fmt.Errorf("ledger: malformed user path %q", path)
		}
		uid, err := uuid.Parse(parts[1])
		if err != nil {
			return AccountKey{}, fmt.Errorf("ledger: account path %q: %w", path, err)
		}
		var sub AccountSubType
		switch parts[2] {
		case "collateral":
			sub = SubTypeCollateral
		case "wallet":
			sub = SubTypeWallet
		default:
			return AccountKey{}, fmt.Errorf("ledger: unknown user sub-type in %q", path)
		}
		return NewUserAccountKey(uid, sub, RegisterAsset(parts[3])), nil
	case "pool":
		if parts[1] != "reserve" || len(parts) != 3 {
			return AccountKey{}, fmt.Errorf("ledger: unknown pool path %q", path)
		}
		return NewPoolReserveKey(RegisterAsset(parts[2])), nil
	case "system":
		var sub AccountSubType
		switch parts[1] {
		case "reserve":
			sub = SubTypeSystemReserve
		case "seized":
			sub = SubTypeSystemSeized
		default:
			return AccountKey{}, fmt.Errorf("ledger: unknown system sub-type in %q", path)
		}
		return NewSystemAccountKey(sub, RegisterAsset(parts[2])), nil
	case "external":
		var sub AccountSubType
		switch parts[1] {
		case "funding":
			sub = SubTypeExternalFunding
		case "collateral":
			sub = SubTypeExternalCollateral
		default:
			return AccountKey{}, fmt.Errorf("ledger: unknown external sub-type in %q", path)
		}
		return NewExternalAccountKey(sub, RegisterAsset(parts[2])), nil
	}
	return AccountKey{}, fmt.Errorf("ledger: unknown account scope in %q", path)
}

func (k AccountKey) subTypeName() string {
	switch k.SubType {
	case SubTypeCollateral:
		return "collateral"
	case SubTypeWallet:
		return "wallet"
	case SubTypePoolReserve:
		return "reserve"
	case SubTypeSystemReserve:
		return "reserve"
	case SubTypeSystemSeized:
		return "seized"
	case SubTypeExternalFunding:
		return "funding"
	case SubTypeExternalCollateral:
		return "collateral"
	default:
		return "unknown"
	}
}
