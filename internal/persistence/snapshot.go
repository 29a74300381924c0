package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"LendLedger/internal/engine"
	"LendLedger/internal/observability"
)

// SnapshotManager persists periodic state snapshots for audit and faster
// restart inspection. Recovery itself resumes from the event-log tail; a
// snapshot is a consistency checkpoint, not a replay substitute.
type SnapshotManager struct {
	db      *sql.DB
	log     zerolog.Logger
	metrics *observability.Metrics
}

func NewSnapshotManager(db *sql.DB, metrics *observability.Metrics) *SnapshotManager {
	return &SnapshotManager{
		db:      db,
		log:     observability.NewLogger("snapshot"),
		metrics: metrics,
	}
}

// Save writes one snapshot row. Upserts on sequence so retaking a snapshot
// at the same point is harmless.
func (sm *SnapshotManager) Save(ctx context.Context, view engine.SnapshotView) error {
	start := time.Now()

	data, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = sm.db.ExecContext(ctx, `
		INSERT INTO lend_ledger.snapshots
			(snapshot_id, sequence, state_hash, data, size_bytes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (sequence) DO UPDATE
			SET state_hash = $3, data = $4, size_bytes = $5
	`, uuid.New(), view.Sequence, view.StateHash, data, len(data), view.TakenAt)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	if sm.metrics != nil {
		sm.metrics.SnapshotTaken.Inc()
		sm.metrics.SnapshotDuration.Observe(time.Since(start).Seconds())
		sm.metrics.SnapshotSizeBytes.Set(float64(len(data)))
		sm.metrics.SnapshotLastSeq.Set(float64(view.Sequence))
	}
	sm.log.Info().
		Int64("sequence", view.Sequence).
		Int("size_bytes", len(data)).
		Msg("snapshot saved")
	return nil
}

// LoadLatest returns the most recent snapshot, or nil on an empty table.
func (sm *SnapshotManager) LoadLatest(ctx context.Context) (*engine.SnapshotView, error) {
	row := sm.db.QueryRowContext(ctx, `
		SELECT data FROM lend_ledger.snapshots
		ORDER BY sequence DESC
		LIMIT 1
	`)

	var data []byte
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var view engine.SnapshotView
	if err := json.Unmarshal(data, &view); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &view, nil
}

// Run takes a snapshot every interval until ctx is cancelled.
func (sm *SnapshotManager) Run(ctx context.Context, eng *engine.Engine, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			view := eng.SnapshotView()
			if view.Sequence == 0 {
				continue
			}
			if err := sm.Save(ctx, view); err != nil {
				sm.log.Error().Err(err).Msg("snapshot failed")
			}
		}
	}
}
