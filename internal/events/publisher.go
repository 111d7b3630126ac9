package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/v1centp/timetobonk-client/internal/domain"
)

const OutcomeTopic = "checkout-outcomes"

// Outcome describes how one checkout attempt ended.
type Outcome struct {
	AttemptID        string               `json:"attempt_id"`
	SessionID        string               `json:"session_id"`
	State            domain.CheckoutState `json:"state"`
	PaymentSessionID string               `json:"payment_session_id,omitempty"`
	Subtotal         string               `json:"subtotal"`
	Currency         string               `json:"currency"`
	ItemCount        int                  `json:"item_count"`
	PromoCode        string               `json:"promo_code,omitempty"`
	Error            string               `json:"error,omitempty"`
	OccurredAt       time.Time            `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, outcome Outcome) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  OutcomeTopic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, outcome Outcome) error {
	payload, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(outcome.SessionID), // session id for ordering
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("CheckoutOutcome")},
			{Key: "state", Value: []byte(outcome.State)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write outcome: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops outcomes. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Outcome) error { return nil }
