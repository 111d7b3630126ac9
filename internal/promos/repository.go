package promos

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/v1centp/timetobonk-client/internal/domain"
	"github.com/v1centp/timetobonk-client/internal/promo"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

var ErrPromoNotFound = errors.New("promo code not found")

type PromoCode struct {
	Code            string
	DiscountPercent int
	Active          bool
	ExpiresAt       *time.Time
}

// Usable reports whether the code grants its discount at now.
func (p PromoCode) Usable(now time.Time) bool {
	if !p.Active {
		return false
	}
	if p.ExpiresAt != nil && !now.Before(*p.ExpiresAt) {
		return false
	}
	return p.DiscountPercent >= 0 && p.DiscountPercent <= domain.FreeOrderDiscount
}

type Repository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// every connection to ":memory:" would get its own database
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{db: db, now: time.Now}, nil
}

// RunMigrations applies the embedded schema migrations.
func (r *Repository) RunMigrations() error {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("could not open migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (r *Repository) GetPromo(ctx context.Context, code string) (*PromoCode, error) {
	query := `
		SELECT code, discount_percent, active, expires_at
		FROM promo_codes
		WHERE code = ?
	`

	var (
		p         PromoCode
		active    int
		expiresAt sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, code).Scan(&p.Code, &p.DiscountPercent, &active, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPromoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query promo code: %w", err)
	}

	p.Active = active != 0
	if expiresAt.Valid && expiresAt.String != "" {
		t, err := time.Parse(time.RFC3339, expiresAt.String)
		if err != nil {
			return nil, fmt.Errorf("invalid expiry for promo code %s: %w", p.Code, err)
		}
		p.ExpiresAt = &t
	}
	return &p, nil
}

// SavePromo inserts or replaces a promo code.
func (r *Repository) SavePromo(ctx context.Context, p PromoCode) error {
	query := `
		INSERT INTO promo_codes (code, discount_percent, active, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			discount_percent = excluded.discount_percent,
			active = excluded.active,
			expires_at = excluded.expires_at
	`

	var expiresAt sql.NullString
	if p.ExpiresAt != nil {
		expiresAt = sql.NullString{String: p.ExpiresAt.UTC().Format(time.RFC3339), Valid: true}
	}
	active := 0
	if p.Active {
		active = 1
	}

	if _, err := r.db.ExecContext(ctx, query, promo.Normalize(p.Code), p.DiscountPercent, active, expiresAt); err != nil {
		return fmt.Errorf("failed to save promo code: %w", err)
	}
	return nil
}

// Lookup returns the discount granted by code, or nil when the code is unknown, inactive or expired.
func (r *Repository) Lookup(ctx context.Context, code string) (*domain.PromoDiscount, error) {
	code = promo.Normalize(code)
	if code == "" {
		return nil, nil
	}

	p, err := r.GetPromo(ctx, code)
	if errors.Is(err, ErrPromoNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !p.Usable(r.now()) {
		return nil, nil
	}
	return &domain.PromoDiscount{Value: p.DiscountPercent, Code: p.Code}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}
