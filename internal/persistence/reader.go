package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"LendLedger/internal/engine"
	"LendLedger/internal/event"
	"LendLedger/internal/ledger"
)

// replayBatchSize bounds how many events one replay query loads.
const replayBatchSize = 1000

// EventLogReader loads persisted events and journals back out of Postgres
// for state reconstruction on restart.
type EventLogReader struct {
	db *sql.DB
}

func NewEventLogReader(db *sql.DB) *EventLogReader {
	return &EventLogReader{db: db}
}

// LoadEvents returns up to limit events starting at fromSeq, in sequence
// order.
func (r *EventLogReader) LoadEvents(ctx context.Context, fromSeq int64, limit int) ([]EventRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT sequence, event_type, actor, payload, state_hash, prev_hash, timestamp
		FROM lend_ledger.events
		WHERE sequence >= $1
		ORDER BY sequence ASC
		LIMIT $2
	`, fromSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	defer rows.Close()

	var out []EventRow
	for rows.Next() {
		var e EventRow
		if err := rows.Scan(&e.Sequence, &e.EventType, &e.Actor, &e.Payload, &e.StateHash, &e.PrevHash, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LoadJournals returns the journal rows for a closed sequence range, grouped
// by sequence.
func (r *EventLogReader) LoadJournals(ctx context.Context, fromSeq, toSeq int64) (map[int64][]JournalRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT journal_id, batch_id, sequence, debit_account, credit_account, asset_id, amount, journal_type, timestamp
		FROM lend_ledger.journal
		WHERE sequence >= $1 AND sequence <= $2
		ORDER BY sequence ASC
	`, fromSeq, toSeq)
	if err != nil {
		return nil, fmt.Errorf("load journals: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]JournalRow)
	for rows.Next() {
		var j JournalRow
		if err := rows.Scan(&j.JournalID, &j.BatchID, &j.Sequence, &j.DebitAccount, &j.CreditAccount, &j.AssetID, &j.Amount, &j.JournalType, &j.Timestamp); err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		out[j.Sequence] = append(out[j.Sequence], j)
	}
	return out, rows.Err()
}

// OutputFromRows rebuilds one committed engine output from its stored rows.
// The inverse of RowsFromOutput; account keys come back through the durable
// path form, so asset IDs are re-derived rather than trusted from the row.
func OutputFromRows(ev EventRow, journals []JournalRow) (engine.Output, error) {
	actor, err := uuid.Parse(ev.Actor)
	if err != nil {
		return engine.Output{}, fmt.Errorf("event %d: actor: %w", ev.Sequence, err)
	}
	eventType := event.ParseEventType(ev.EventType)
	if eventType == event.EventTypeUnknown {
		return engine.Output{}, fmt.Errorf("event %d: unknown type %q", ev.Sequence, ev.EventType)
	}

	env := &event.Envelope{
		Sequence:  ev.Sequence,
		EventType: eventType,
		Actor:     actor,
		Timestamp: ev.Timestamp,
		Payload:   ev.Payload,
	}
	copy(env.StateHash[:], ev.StateHash)
	copy(env.PrevHash[:], ev.PrevHash)

	out := engine.Output{Envelope: env}
	if len(journals) == 0 {
		return out, nil
	}

	batchID, err := uuid.Parse(journals[0].BatchID)
	if err != nil {
		return engine.Output{}, fmt.Errorf("event %d: batch id: %w", ev.Sequence, err)
	}
	batch := &ledger.Batch{
		BatchID:   batchID,
		Sequence:  ev.Sequence,
		Timestamp: journals[0].Timestamp,
	}
	for _, row := range journals {
		journalID, err := uuid.Parse(row.JournalID)
		if err != nil {
			return engine.Output{}, fmt.Errorf("event %d: journal id: %w", ev.Sequence, err)
		}
		debit, err := ledger.ParseAccountPath(row.DebitAccount)
		if err != nil {
			return engine.Output{}, fmt.Errorf("event %d: %w", ev.Sequence, err)
		}
		credit, err := ledger.ParseAccountPath(row.CreditAccount)
		if err != nil {
			return engine.Output{}, fmt.Errorf("event %d: %w", ev.Sequence, err)
		}
		batch.Journals = append(batch.Journals, ledger.Journal{
			JournalID:     journalID,
			BatchID:       batchID,
			Sequence:      row.Sequence,
			DebitAccount:  debit,
			CreditAccount: credit,
			AssetID:       debit.AssetID,
			Amount:        row.Amount,
			JournalType:   ledger.JournalType(row.JournalType),
			Timestamp:     row.Timestamp,
		})
	}
	out.Batch = batch
	return out, nil
}

// Replay streams the whole event log through apply in sequence order,
// batch by batch. Returns the number of events replayed; zero means a cold
// start on an empty log.
func (r *EventLogReader) Replay(ctx context.Context, apply func(engine.Output) error) (int64, error) {
	var replayed int64
	from := int64(0)

	for {
		events, err := r.LoadEvents(ctx, from, replayBatchSize)
		if err != nil {
			return replayed, err
		}
		if len(events) == 0 {
			return replayed, nil
		}

		journals, err := r.LoadJournals(ctx, events[0].Sequence, events[len(events)-1].Sequence)
		if err != nil {
			return replayed, err
		}

		for _, ev := range events {
			out, err := OutputFromRows(ev, journals[ev.Sequence])
			if err != nil {
				return replayed, err
			}
			if err := apply(out); err != nil {
				return replayed, err
			}
			replayed++
		}

		from = events[len(events)-1].Sequence + 1
		if len(events) < replayBatchSize {
			return replayed, nil
		}
	}
}
