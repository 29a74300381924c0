package persistence_test

import (
	"context"
	"testing"
	"time"

	"LendLedger/internal/engine"
	"LendLedger/internal/persistence"
	"LendLedger/internal/testutil"
)

// The tests below need a running Postgres and skip when none is reachable.

func TestMigrateAndWriteRoundTrip(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	m := persistence.NewMigrator(db, "../../migrations")
	if err := m.Up(ctx); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	out := sampleOutput(t)
	ev, journals := persistence.RowsFromOutput(out)

	w := persistence.NewEventLogWriter(db)
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := w.WriteEventBatch(ctx, tx, []persistence.EventRow{ev}); err != nil {
		t.Fatalf("write events: %v", err)
	}
	if err := w.WriteJournalBatch(ctx, tx, journals); err != nil {
		t.Fatalf("write journals: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	seq, hash, ok, err := w.LatestSequence(ctx)
	if err != nil {
		t.Fatalf("latest sequence: %v", err)
	}
	if !ok {
		t.Fatal("log should not be empty")
	}
	if seq != ev.Sequence {
		t.Errorf("latest sequence: got %d, want %d", seq, ev.Sequence)
	}
	if hash[0] != ev.StateHash[0] {
		t.Errorf("latest hash: got %x", hash[:4])
	}

	// re-writing the same rows is a no-op
	tx, err = db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin retry: %v", err)
	}
	if err := w.WriteEventBatch(ctx, tx, []persistence.EventRow{ev}); err != nil {
		t.Fatalf("retry events: %v", err)
	}
	if err := w.WriteJournalBatch(ctx, tx, journals); err != nil {
		t.Fatalf("retry journals: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit retry: %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM lend_ledger.events").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("events after retry: got %d, want 1", count)
	}
}

func TestWorker_FlushesBatches(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := persistence.NewMigrator(db, "../../migrations").Up(ctx); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	input := make(chan engine.Output, 8)
	worker := persistence.NewWorker(db, input, 4, 10*time.Millisecond, nil)

	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	out := sampleOutput(t)
	input <- out
	close(input)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("worker: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not drain")
	}

	seq, _, ok, err := worker.Writer().LatestSequence(ctx)
	if err != nil || !ok {
		t.Fatalf("latest sequence: ok=%v err=%v", ok, err)
	}
	if seq != out.Envelope.Sequence {
		t.Errorf("persisted sequence: got %d", seq)
	}
}

func TestSnapshot_SaveLoad(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	if err := persistence.NewMigrator(db, "../../migrations").Up(ctx); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	sm := persistence.NewSnapshotManager(db, nil)
	view := engine.SnapshotView{
		Sequence:   9,
		StateHash:  []byte{0xAA, 0xBB},
		Balances:   map[string]int64{"pool:reserve:USDC": 1_000_000_000},
		TotalFunds: 1_000_000_000,
		TakenAt:    time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := sm.Save(ctx, view); err != nil {
		t.Fatalf("save: %v", err)
	}
	// same sequence overwrites, not duplicates
	view.TotalFunds = 2_000_000_000
	if err := sm.Save(ctx, view); err != nil {
		t.Fatalf("re-save: %v", err)
	}

	loaded, err := sm.LoadLatest(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded == nil {
		t.Fatal("snapshot should exist")
	}
	if loaded.Sequence != 9 || loaded.TotalFunds != 2_000_000_000 {
		t.Errorf("loaded snapshot: %+v", loaded)
	}
	if loaded.Balances["pool:reserve:USDC"] != 1_000_000_000 {
		t.Errorf("loaded balances: %v", loaded.Balances)
	}
}
