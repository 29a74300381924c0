package oracle

import (
	"errors"
	"fmt"
	"time"

	fpmath "LendLedger/internal/math"
)

var (
	ErrMissingFeed = errors.New("oracle: no price feed configured for asset")
	ErrStalePrice  = errors.New("oracle: price older than max age")
	ErrStaleRound  = errors.New("oracle: answer carried over from an unsettled round")
	ErrBadReading  = errors.New("oracle: non-positive price reading")
)

// Reading is a single feed observation, Chainlink aggregator shaped.
type Reading struct {
	Value           int64 // raw feed value, scaled by 10^Decimals
	Decimals        uint8
	UpdatedAt       time.Time
	RoundID         uint64
	AnsweredInRound uint64
}

// FeedSource produces the latest reading for an asset.
type FeedSource interface {
	Latest(asset string) (Reading, error)
}

type feedConfig struct {
	source FeedSource
	maxAge time.Duration
}

// Adapter validates feed readings and normalizes them to PriceConfig scale.
// It rejects stale prices outright; rate-model consumers that must always
// produce a value use Signal instead, which reports staleness without failing.
type Adapter struct {
	feeds map[string]feedConfig
	clock func() time.Time
}

func NewAdapter(clock func() time.Time) *Adapter {
	if clock == nil {
		clock = time.Now
	}
	return &Adapter{
		feeds: make(map[string]feedConfig),
		clock: clock,
	}
}

// SetFeed registers or replaces the feed for an asset.
func (a *Adapter) SetFeed(asset string, source FeedSource, maxAge time.Duration) {
	a.feeds[asset] = feedConfig{source: source, maxAge: maxAge}
}

// Price returns the validated price for an asset in PriceConfig scale.
func (a *Adapter) Price(asset string) (int64, error) {
	cfg, ok := a.feeds[asset]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingFeed, asset)
	}

	r, err := cfg.source.Latest(asset)
	if err != nil {
		return 0, fmt.Errorf("feed %s: %w", asset, err)
	}
	if r.Value <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrBadReading, asset)
	}
	if r.AnsweredInRound < r.RoundID {
		return 0, fmt.Errorf("%w: %s round=%d answered=%d", ErrStaleRound, asset, r.RoundID, r.AnsweredInRound)
	}
	if cfg.maxAge > 0 && a.clock().Sub(r.UpdatedAt) > cfg.maxAge {
		return 0, fmt.Errorf("%w: %s updated_at=%s", ErrStalePrice, asset, r.UpdatedAt.Format(time.RFC3339))
	}

	return normalize(r.Value, r.Decimals), nil
}

// MarketSignal summarizes feed health across assets for the rate model:
// the maximum observed volatility (bps move between consecutive readings,
// when the source exposes it) and whether any feed is stale or broken.
func (a *Adapter) MarketSignal(assets []string) (maxVolBps int64, degraded bool) {
	for _, asset := range assets {
		if _, err := a.Price(asset); err != nil {
			degraded = true
			continue
		}
		cfg := a.feeds[asset]
		if vs, ok := cfg.source.(VolatilitySource); ok {
			if v := vs.VolatilityBps(asset); v > maxVolBps {
				maxVolBps = v
			}
		}
	}
	return maxVolBps, degraded
}

// VolatilitySource is implemented by feeds that track reading-to-reading moves.
type VolatilitySource interface {
	VolatilityBps(asset string) int64
}

// normalize rescales a raw feed value to PriceConfig precision.
func normalize(value int64, decimals uint8) int64 {
	target := fpmath.PriceConfig.DecimalPrecision
	d := int(decimals)
	switch {
	case d == target:
		return value
	case d > target:
		div := int64(1)
		for i := 0; i < d-target; i++ {
			div *= 10
		}
		return value / div
	default:
		mul := int64(1)
		for i := 0; i < target-d; i++ {
			mul *= 10
		}
		return value * mul
	}
}
