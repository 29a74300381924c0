package engine

import "errors"

// Guard errors. All engine errors are deterministic and recoverable; the only
// panics are ledger invariant violations after a batch is applied.
var (
	ErrReentrantCall = errors.New("engine: reentrant call rejected")
	ErrPaused        = errors.New("engine: paused")
	ErrNotPaused     = errors.New("engine: not paused")

	ErrNonPositiveAmount = errors.New("engine: amount must be positive")
	ErrInLiquidation     = errors.New("engine: borrower is in liquidation")

	ErrExceedsPoolHalf        = errors.New("engine: loan exceeds half of pool liquidity")
	ErrExceedsTierLimit       = errors.New("engine: loan exceeds tier maximum")
	ErrCollateralBelowRatio   = errors.New("engine: collateral value below required ratio")
	ErrWithdrawalBreaksHealth = errors.New("engine: withdrawal would leave loan undercollateralized")
	ErrPositionHealthy        = errors.New("engine: position is healthy")
	ErrInsufficientLiquidity  = errors.New("engine: pool liquidity insufficient for payout")
)
