package state

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAlreadyInLiquidation = errors.New("liquidation: loan already in liquidation")
	ErrNotInLiquidation     = errors.New("liquidation: loan not in liquidation")
	ErrGraceNotElapsed      = errors.New("liquidation: grace period has not elapsed")
)

// DefaultGracePeriod is how long a borrower has to recover an undercollateralized
// loan before seizure becomes eligible.
const DefaultGracePeriod = 72 * time.Hour

// LiquidationRecord tracks one open liquidation window.
type LiquidationRecord struct {
	RecordID  uuid.UUID
	Borrower  uuid.UUID
	StartedAt time.Time
	Deadline  time.Time
}

// LiquidationManager owns liquidation records, keyed by borrower. At most one
// open record per borrower, mirroring the one-active-loan rule.
type LiquidationManager struct {
	grace   time.Duration
	records map[uuid.UUID]*LiquidationRecord
	newID   func() uuid.UUID
}

func NewLiquidationManager(grace time.Duration) *LiquidationManager {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	return &LiquidationManager{
		grace:   grace,
		records: make(map[uuid.UUID]*LiquidationRecord),
		newID:   uuid.New,
	}
}

// Start opens a liquidation window for the borrower.
func (m *LiquidationManager) Start(borrower uuid.UUID, now time.Time) (*LiquidationRecord, error) {
	if _, open := m.records[borrower]; open {
		return nil, ErrAlreadyInLiquidation
	}
	rec := &LiquidationRecord{
		RecordID:  m.newID(),
		Borrower:  borrower,
		StartedAt: now,
		Deadline:  now.Add(m.grace),
	}
	m.records[borrower] = rec
	return rec, nil
}

// Restore inserts a record with its original ID and deadline, for rebuilding
// state from the event log.
func (m *LiquidationManager) Restore(rec *LiquidationRecord) error {
	if _, open := m.records[rec.Borrower]; open {
		return ErrAlreadyInLiquidation
	}
	m.records[rec.Borrower] = rec
	return nil
}

// Get returns the borrower's open record, nil when none.
func (m *LiquidationManager) Get(borrower uuid.UUID) *LiquidationRecord {
	return m.records[borrower]
}

// Clear closes the borrower's record after recovery or seizure.
func (m *LiquidationManager) Clear(borrower uuid.UUID) (*LiquidationRecord, error) {
	rec, open := m.records[borrower]
	if !open {
		return nil, ErrNotInLiquidation
	}
	delete(m.records, borrower)
	return rec, nil
}

// Expired reports whether the borrower's grace period has elapsed.
func (m *LiquidationManager) Expired(borrower uuid.UUID, now time.Time) (bool, error) {
	rec, open := m.records[borrower]
	if !open {
		return false, ErrNotInLiquidation
	}
	return !now.Before(rec.Deadline), nil
}

// Eligible lists borrowers whose deadline has passed, in deadline order.
func (m *LiquidationManager) Eligible(now time.Time) []*LiquidationRecord {
	var out []*LiquidationRecord
	for _, rec := range m.records {
		if !now.Before(rec.Deadline) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Deadline.Equal(out[j].Deadline) {
			return out[i].Deadline.Before(out[j].Deadline)
		}
		return out[i].Borrower.String() < out[j].Borrower.String()
	})
	return out
}

// Open returns the number of open liquidation windows.
func (m *LiquidationManager) Open() int {
	return len(m.records)
}
