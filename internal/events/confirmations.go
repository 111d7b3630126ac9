package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	ConfirmationTopic = "payment-confirmations"
	confirmationGroup = "storefront-confirmations"

	StatusPaid = "paid"
)

// Confirmation reports a payment settled by the gateway, independently of the shopper
// coming back to the storefront.
type Confirmation struct {
	SessionID        string `json:"session_id"`
	PaymentSessionID string `json:"payment_session_id"`
	Status           string `json:"status"`
}

type ConfirmationHandler func(ctx context.Context, c Confirmation) error

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type ConfirmationConsumer struct {
	reader  messageReader
	handle  ConfirmationHandler
	logger  *zap.Logger
	backoff time.Duration
}

func NewConfirmationConsumer(handle ConfirmationHandler, logger *zap.Logger, brokers ...string) *ConfirmationConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    ConfirmationTopic,
		GroupID:  confirmationGroup,
		MaxBytes: 10e6, // 10MB
	})
	return &ConfirmationConsumer{reader: reader, handle: handle, logger: logger, backoff: time.Second}
}

// Run consumes confirmations until ctx is done.
func (c *ConfirmationConsumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := c.consumeOne(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("failed to consume payment confirmation", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.backoff):
			}
		}
	}
}

func (c *ConfirmationConsumer) consumeOne(ctx context.Context) error {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		return fmt.Errorf("read message: %w", err)
	}

	var conf Confirmation
	if err := json.Unmarshal(m.Value, &conf); err != nil {
		c.logger.Warn("dropping malformed confirmation", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if conf.SessionID == "" {
		c.logger.Warn("dropping confirmation without session", zap.Int64("offset", m.Offset))
		return nil
	}

	if err := c.handle(ctx, conf); err != nil {
		c.logger.Error("failed to apply payment confirmation",
			zap.String("session_id", conf.SessionID),
			zap.String("payment_session_id", conf.PaymentSessionID),
			zap.Error(err))
	}
	return nil
}

func (c *ConfirmationConsumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Warn("error closing confirmation reader", zap.Error(err))
	}
}
