package publish

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"LendLedger/internal/event"
	"LendLedger/internal/observability"
)

// RewardSubject carries grant notifications for the external rewards service.
const RewardSubject = "lend.rewards.grant"

// RewardGrant tells the rewards service to credit a borrower. Kind is
// "origination" for new loans and "clearance" for loans repaid in full.
type RewardGrant struct {
	Borrower  string    `json:"borrower"`
	Kind      string    `json:"kind"`
	Amount    int64     `json:"amount"`
	Sequence  int64     `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
}

// RewardNotifier emits reward grants on loan origination and full repayment.
// Strictly best-effort: a failed grant never affects ledger state, and the
// rewards service can reconcile from the event log.
type RewardNotifier struct {
	js      jetstream.JetStream
	log     zerolog.Logger
	metrics *observability.Metrics
}

func NewRewardNotifier(js jetstream.JetStream, metrics *observability.Metrics) *RewardNotifier {
	return &RewardNotifier{
		js:      js,
		log:     observability.NewLogger("rewards"),
		metrics: metrics,
	}
}

// Notify inspects a committed envelope and publishes a grant when it
// qualifies. Non-qualifying events are ignored.
func (rn *RewardNotifier) Notify(ctx context.Context, env event.Envelope) {
	var grant *RewardGrant

	switch env.EventType {
	case event.EventTypeBorrowed:
		var p event.Borrowed
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			rn.log.Error().Err(err).Int64("sequence", env.Sequence).Msg("decode borrow payload")
			return
		}
		grant = &RewardGrant{
			Borrower:  p.Borrower.String(),
			Kind:      "origination",
			Amount:    p.Amount,
			Sequence:  env.Sequence,
			Timestamp: env.Timestamp,
		}

	case event.EventTypeRepaid:
		var p event.Repaid
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			rn.log.Error().Err(err).Int64("sequence", env.Sequence).Msg("decode repay payload")
			return
		}
		if !p.Cleared {
			return
		}
		grant = &RewardGrant{
			Borrower:  p.Borrower.String(),
			Kind:      "clearance",
			Amount:    p.Value,
			Sequence:  env.Sequence,
			Timestamp: env.Timestamp,
		}

	default:
		return
	}

	data, err := json.Marshal(grant)
	if err != nil {
		rn.log.Error().Err(err).Msg("marshal reward grant")
		return
	}

	if _, err := rn.js.Publish(ctx, RewardSubject, data); err != nil {
		rn.log.Warn().
			Err(err).
			Str("borrower", grant.Borrower).
			Str("kind", grant.Kind).
			Msg("reward grant publish failed")
		rn.countGrant("error")
		return
	}
	rn.countGrant(grant.Kind)
}

func (rn *RewardNotifier) countGrant(outcome string) {
	if rn.metrics != nil {
		rn.metrics.RewardGrants.WithLabelValues(outcome).Inc()
	}
}
