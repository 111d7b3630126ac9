package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/v1centp/timetobonk-client/internal/domain"
	"github.com/v1centp/timetobonk-client/internal/storage"
	"go.uber.org/zap"
)

const attemptKeyPrefix = "ttb:checkout:"

// AttemptKey is the slot key holding one session's latest checkout attempt.
func AttemptKey(sessionID string) string {
	return attemptKeyPrefix + sessionID
}

// SaveAttempt records the latest checkout attempt next to the cart.
func (a *Adapter) SaveAttempt(ctx context.Context, attempt domain.CheckoutAttempt) error {
	data, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("marshal checkout attempt: %w", err)
	}
	if err := a.slot.Write(ctx, a.attemptKey, data); err != nil {
		return fmt.Errorf("write checkout attempt: %w", err)
	}
	return nil
}

// LoadAttempt returns the stored attempt. ok is false when none was stored or it is unreadable.
func (a *Adapter) LoadAttempt(ctx context.Context) (domain.CheckoutAttempt, bool) {
	data, err := a.slot.Read(ctx, a.attemptKey)
	if err != nil {
		if !errors.Is(err, storage.ErrSlotEmpty) {
			a.logger.Warn("checkout attempt read failed", zap.Error(err))
		}
		return domain.CheckoutAttempt{}, false
	}

	var attempt domain.CheckoutAttempt
	if err := json.Unmarshal(data, &attempt); err != nil || attempt.ID == "" {
		a.logger.Warn("checkout attempt unreadable, ignoring", zap.Error(err))
		return domain.CheckoutAttempt{}, false
	}
	return attempt, true
}
