package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"LendLedger/internal/engine"
	"LendLedger/internal/observability"
)

// StreamName holds committed events for downstream consumers.
const StreamName = "LEND_LEDGER_EVENTS"

// SubjectPrefix is the root of all outbound event subjects; the full subject
// is lend.ledger.events.{event_type}.
const SubjectPrefix = "lend.ledger.events"

// OutboundEvent is the wire form of one committed operation.
type OutboundEvent struct {
	Sequence  int64           `json:"sequence"`
	EventType string          `json:"event_type"`
	Actor     string          `json:"actor"`
	Payload   json.RawMessage `json:"payload"`
	StateHash []byte          `json:"state_hash"`
	Timestamp time.Time       `json:"timestamp"`
}

// Publisher drains the publish channel and emits committed events to NATS.
// Publishing is best-effort: the event log in Postgres is the source of
// truth, so a failed publish is logged and dropped, never retried against
// engine state.
type Publisher struct {
	js        jetstream.JetStream
	inputChan <-chan engine.Output
	rewards   *RewardNotifier
	log       zerolog.Logger
	metrics   *observability.Metrics
}

func NewPublisher(
	js jetstream.JetStream,
	inputChan <-chan engine.Output,
	rewards *RewardNotifier,
	metrics *observability.Metrics,
) *Publisher {
	return &Publisher{
		js:        js,
		inputChan: inputChan,
		rewards:   rewards,
		log:       observability.NewLogger("publisher"),
		metrics:   metrics,
	}
}

// Run consumes committed outputs until ctx is cancelled or the channel closes.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case output, ok := <-p.inputChan:
			if !ok {
				return nil
			}
			p.handle(ctx, output)
		}
	}
}

func (p *Publisher) handle(ctx context.Context, output engine.Output) {
	env := output.Envelope
	eventType := env.EventType.String()

	evt := OutboundEvent{
		Sequence:  env.Sequence,
		EventType: eventType,
		Actor:     env.Actor.String(),
		Payload:   env.Payload,
		StateHash: env.StateHash[:],
		Timestamp: env.Timestamp,
	}

	data, err := json.Marshal(evt)
	if err != nil {
		p.log.Error().Err(err).Int64("sequence", env.Sequence).Msg("marshal outbound event")
		return
	}

	subject := fmt.Sprintf("%s.%s", SubjectPrefix, eventType)
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		p.log.Warn().
			Err(err).
			Int64("sequence", env.Sequence).
			Str("subject", subject).
			Msg("outbound publish failed")
		if p.metrics != nil {
			p.metrics.PublishErrors.WithLabelValues(subject).Inc()
		}
	} else if p.metrics != nil {
		p.metrics.EventsPublished.WithLabelValues(eventType).Inc()
	}

	if p.rewards != nil {
		p.rewards.Notify(ctx, *env)
	}
}

// EnsureStream creates or updates the outbound event stream.
func EnsureStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{SubjectPrefix + ".>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	return nil
}
