package storage

import (
	"context"
	"errors"
)

// Slot is a durable key-value slot holding one serialized value per key.
type Slot interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

var ErrSlotEmpty = errors.New("slot is empty")
