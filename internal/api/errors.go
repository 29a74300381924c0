package api

import (
	"errors"
	"net/http"

	"LendLedger/internal/engine"
	"LendLedger/internal/oracle"
	"LendLedger/internal/state"
)

// statusFor maps domain sentinels onto HTTP status codes. Bad input is 400,
// missing things are 404, state conflicts are 409, economically impossible
// requests are 422, and the emergency pause surfaces as 503.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrNonPositiveAmount),
		errors.Is(err, state.ErrNonPositiveAmount),
		errors.Is(err, state.ErrOverpayment),
		errors.Is(err, state.ErrScoreOutOfRange),
		errors.Is(err, state.ErrDepositOutOfBounds),
		errors.Is(err, state.ErrDailyRateOutOfBounds),
		errors.Is(err, oracle.ErrBadReading):
		return http.StatusBadRequest

	case errors.Is(err, state.ErrNoActiveLoan),
		errors.Is(err, state.ErrNoLenderAccount),
		errors.Is(err, state.ErrNoPendingWithdrawal),
		errors.Is(err, state.ErrNotInLiquidation),
		errors.Is(err, state.ErrAssetNotListed),
		errors.Is(err, oracle.ErrMissingFeed):
		return http.StatusNotFound

	case errors.Is(err, state.ErrActiveLoanExists),
		errors.Is(err, state.ErrAlreadyInLiquidation),
		errors.Is(err, state.ErrGraceNotElapsed),
		errors.Is(err, engine.ErrInLiquidation),
		errors.Is(err, engine.ErrPositionHealthy),
		errors.Is(err, engine.ErrNotPaused),
		errors.Is(err, engine.ErrReentrantCall):
		return http.StatusConflict

	case errors.Is(err, engine.ErrExceedsPoolHalf),
		errors.Is(err, engine.ErrExceedsTierLimit),
		errors.Is(err, engine.ErrCollateralBelowRatio),
		errors.Is(err, engine.ErrWithdrawalBreaksHealth),
		errors.Is(err, engine.ErrInsufficientLiquidity),
		errors.Is(err, state.ErrInsufficientCollateral),
		errors.Is(err, state.ErrInsufficientBalance),
		errors.Is(err, state.ErrNoAccruedInterest),
		errors.Is(err, state.ErrIneligibleTier),
		errors.Is(err, oracle.ErrStalePrice),
		errors.Is(err, oracle.ErrStaleRound):
		return http.StatusUnprocessableEntity

	case errors.Is(err, engine.ErrPaused):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}
