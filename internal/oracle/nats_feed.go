package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// PriceUpdate is the wire format published by external price relayers on
// lend.oracle.prices.{asset}.
type PriceUpdate struct {
	Asset           string    `json:"asset"`
	Value           int64     `json:"value"`
	Decimals        uint8     `json:"decimals"`
	UpdatedAt       time.Time `json:"updated_at"`
	RoundID         uint64    `json:"round_id"`
	AnsweredInRound uint64    `json:"answered_in_round"`
}

// Validate rejects malformed updates before they reach the feed.
func (u *PriceUpdate) Validate() error {
	if u.Asset == "" {
		return fmt.Errorf("price update: missing asset")
	}
	if u.Value <= 0 {
		return fmt.Errorf("price update: non-positive value %d", u.Value)
	}
	if u.UpdatedAt.IsZero() {
		return fmt.Errorf("price update: missing updated_at")
	}
	return nil
}

// Reading converts the update to a feed reading.
func (u *PriceUpdate) Reading() Reading {
	return Reading{
		Value:           u.Value,
		Decimals:        u.Decimals,
		UpdatedAt:       u.UpdatedAt,
		RoundID:         u.RoundID,
		AnsweredInRound: u.AnsweredInRound,
	}
}

// NATSFeedSubscriber consumes price updates from JetStream and hands them to
// a sink (the engine's serialized price entry point). Malformed messages are
// ACKed and dropped; sink failures NAK for redelivery.
type NATSFeedSubscriber struct {
	js       jetstream.JetStream
	sink     func(PriceUpdate) error
	consumer jetstream.ConsumeContext
}

const (
	priceStreamName   = "LEND_ORACLE_PRICES"
	priceSubject      = "lend.oracle.prices.>"
	priceConsumerName = "lend-ledger-prices"
)

func NewNATSFeedSubscriber(js jetstream.JetStream, sink func(PriceUpdate) error) *NATSFeedSubscriber {
	return &NATSFeedSubscriber{js: js, sink: sink}
}

// Subscribe ensures the price stream exists and starts consuming.
func (s *NATSFeedSubscriber) Subscribe(ctx context.Context) error {
	stream, err := s.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      priceStreamName,
		Subjects:  []string{priceSubject},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("ensure price stream: %w", err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:       priceConsumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    5,
		AckWait:       30 * time.Second,
		FilterSubject: priceSubject,
	})
	if err != nil {
		return fmt.Errorf("create price consumer: %w", err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		var update PriceUpdate
		if err := json.Unmarshal(msg.Data(), &update); err != nil {
			msg.Ack() // poison message, drop
			return
		}
		if err := update.Validate(); err != nil {
			msg.Ack()
			return
		}
		if err := s.sink(update); err != nil {
			msg.Nak()
			return
		}
		msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("consume price stream: %w", err)
	}

	s.consumer = cc
	return nil
}

// Stop drains the consumer.
func (s *NATSFeedSubscriber) Stop() {
	if s.consumer != nil {
		s.consumer.Stop()
	}
}
