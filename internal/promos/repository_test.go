package promos

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(":memory:")
	require.NoError(t, err)
	require.NoError(t, repo.RunMigrations())
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRunMigrations_Idempotent(t *testing.T) {
	repo := setupTestDB(t)

	assert.NoError(t, repo.RunMigrations())
}

func TestGetPromo_Seeded(t *testing.T) {
	repo := setupTestDB(t)

	p, err := repo.GetPromo(context.Background(), "BONK10")

	require.NoError(t, err)
	assert.Equal(t, 10, p.DiscountPercent)
	assert.True(t, p.Active)
	assert.Nil(t, p.ExpiresAt)
}

func TestGetPromo_NotFound(t *testing.T) {
	repo := setupTestDB(t)

	p, err := repo.GetPromo(context.Background(), "NOPE")

	assert.Nil(t, p)
	assert.ErrorIs(t, err, ErrPromoNotFound)
}

func TestGetPromo_CancelledContext(t *testing.T) {
	repo := setupTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.GetPromo(ctx, "BONK10")

	assert.ErrorIs(t, err, context.Canceled)
}

func TestLookup(t *testing.T) {
	repo := setupTestDB(t)
	repo.now = func() time.Time { return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC) }

	tests := []struct {
		name  string
		code  string
		value int
		valid bool
	}{
		{"percentage", "BONK10", 10, true},
		{"normalized input", "  clubride25 ", 25, true},
		{"free order", "TTBCREW", 100, true},
		{"inactive", "WINTER15", 0, false},
		{"expired", "SPRING2024", 0, false},
		{"unknown", "NOPE", 0, false},
		{"blank", "   ", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := repo.Lookup(context.Background(), tt.code)
			require.NoError(t, err)
			if !tt.valid {
				assert.Nil(t, d)
				return
			}
			require.NotNil(t, d)
			assert.Equal(t, tt.value, d.Value)
		})
	}
}

func TestSavePromo_UpsertsAndExpires(t *testing.T) {
	repo := setupTestDB(t)
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	expires := now.Add(time.Hour)
	require.NoError(t, repo.SavePromo(ctx, PromoCode{Code: "gravel30", DiscountPercent: 30, Active: true, ExpiresAt: &expires}))

	d, err := repo.Lookup(ctx, "GRAVEL30")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, 30, d.Value)
	assert.Equal(t, "GRAVEL30", d.Code)

	now = now.Add(2 * time.Hour)
	d, err = repo.Lookup(ctx, "GRAVEL30")
	require.NoError(t, err)
	assert.Nil(t, d, "expired code grants nothing")

	require.NoError(t, repo.SavePromo(ctx, PromoCode{Code: "GRAVEL30", DiscountPercent: 35, Active: true}))
	p, err := repo.GetPromo(ctx, "GRAVEL30")
	require.NoError(t, err)
	assert.Equal(t, 35, p.DiscountPercent)
	assert.Nil(t, p.ExpiresAt)
}

func TestSavePromo_RejectsOutOfRange(t *testing.T) {
	repo := setupTestDB(t)

	err := repo.SavePromo(context.Background(), PromoCode{Code: "BROKEN", DiscountPercent: 150, Active: true})

	assert.Error(t, err)
}
