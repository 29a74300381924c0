package oracle

import (
	"fmt"
	"time"

	fpmath "LendLedger/internal/math"
)

// PushFeed is a feed updated by an authorized publisher (admin API or the
// NATS price subscriber). It keeps the previous reading per asset so the
// adapter can derive a volatility signal.
type PushFeed struct {
	readings map[string]Reading
	previous map[string]Reading
}

func NewPushFeed() *PushFeed {
	return &PushFeed{
		readings: make(map[string]Reading),
		previous: make(map[string]Reading),
	}
}

// Set records a new reading for an asset. Round IDs must not go backwards.
func (f *PushFeed) Set(asset string, r Reading) error {
	if cur, ok := f.readings[asset]; ok {
		if r.RoundID < cur.RoundID {
			return fmt.Errorf("oracle: round id went backwards for %s: %d < %d", asset, r.RoundID, cur.RoundID)
		}
		f.previous[asset] = cur
	}
	f.readings[asset] = r
	return nil
}

func (f *PushFeed) Latest(asset string) (Reading, error) {
	r, ok := f.readings[asset]
	if !ok {
		return Reading{}, fmt.Errorf("%w: %s", ErrMissingFeed, asset)
	}
	return r, nil
}

// VolatilityBps returns the absolute move between the two most recent
// readings, in basis points of the older one. Zero until two readings exist.
func (f *PushFeed) VolatilityBps(asset string) int64 {
	cur, ok := f.readings[asset]
	prev, okPrev := f.previous[asset]
	if !ok || !okPrev || prev.Value <= 0 {
		return 0
	}
	curN := normalize(cur.Value, cur.Decimals)
	prevN := normalize(prev.Value, prev.Decimals)
	diff := curN - prevN
	if diff < 0 {
		diff = -diff
	}
	return fpmath.MulDiv(diff, fpmath.BpsScale, prevN, fpmath.RoundDown)
}

// StaticFeed serves fixed readings, for tests and local development.
type StaticFeed struct {
	Readings map[string]Reading
}

func (f *StaticFeed) Latest(asset string) (Reading, error) {
	r, ok := f.Readings[asset]
	if !ok {
		return Reading{}, fmt.Errorf("%w: %s", ErrMissingFeed, asset)
	}
	return r, nil
}

// FreshReading builds a PriceConfig-scale reading stamped at now, with a
// settled round. Convenience for tests and the admin price push.
func FreshReading(price int64, roundID uint64, now time.Time) Reading {
	return Reading{
		Value:           price,
		Decimals:        uint8(fpmath.PriceConfig.DecimalPrecision),
		UpdatedAt:       now,
		RoundID:         roundID,
		AnsweredInRound: roundID,
	}
}
