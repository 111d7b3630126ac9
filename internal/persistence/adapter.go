package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/v1centp/timetobonk-client/internal/domain"
	"github.com/v1centp/timetobonk-client/internal/pricing"
	"github.com/v1centp/timetobonk-client/internal/storage"
	"go.uber.org/zap"
)

const keyPrefix = "ttb:cart:"

// Key is the slot key holding one session's cart.
func Key(sessionID string) string {
	return keyPrefix + sessionID
}

// Adapter is the only reader and writer of a session's cart slot.
type Adapter struct {
	slot            storage.Slot
	key             string
	attemptKey      string
	defaultCurrency string
	logger          *zap.Logger
}

func NewAdapter(slot storage.Slot, sessionID, defaultCurrency string, logger *zap.Logger) *Adapter {
	return &Adapter{
		slot:            slot,
		key:             Key(sessionID),
		attemptKey:      AttemptKey(sessionID),
		defaultCurrency: strings.ToLower(defaultCurrency),
		logger:          logger.With(zap.String("slot_key", Key(sessionID))),
	}
}

type storedCart struct {
	Items []storedItem `json:"items"`
}

type storedItem struct {
	ID            string      `json:"id"`
	ProductID     string      `json:"productId"`
	VariantID     string      `json:"variantId"`
	Title         string      `json:"title"`
	ProductTitle  string      `json:"productTitle,omitempty"`
	VariantTitle  string      `json:"variantTitle,omitempty"`
	VariantSKU    string      `json:"variantSku,omitempty"`
	ProductUID    string      `json:"productUid,omitempty"`
	Image         string      `json:"image,omitempty"`
	ImageOriginal *string     `json:"imageOriginal"`
	Price         json.Number `json:"price"`
	Currency      string      `json:"currency"`
	Quantity      int         `json:"quantity"`
}

// Save writes the full cart as {"items":[...]}.
func (a *Adapter) Save(ctx context.Context, items []domain.CartItem) error {
	payload := storedCart{Items: make([]storedItem, 0, len(items))}
	for _, item := range items {
		payload.Items = append(payload.Items, storedItem{
			ID:            item.ID,
			ProductID:     item.ProductID,
			VariantID:     item.VariantID,
			Title:         item.Title,
			ProductTitle:  item.ProductTitle,
			VariantTitle:  item.VariantTitle,
			VariantSKU:    item.VariantSKU,
			ProductUID:    item.ProductUID,
			Image:         item.Image,
			ImageOriginal: item.ImageOriginal,
			Price:         json.Number(item.Price.String()),
			Currency:      item.Currency,
			Quantity:      item.Quantity,
		})
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}
	if err := a.slot.Write(ctx, a.key, data); err != nil {
		return fmt.Errorf("write cart slot: %w", err)
	}
	return nil
}

// Load rehydrates the cart. It never fails: an absent, empty or unreadable slot yields an
// empty cart, and each stored record is repaired or dropped.
func (a *Adapter) Load(ctx context.Context) []domain.CartItem {
	data, err := a.slot.Read(ctx, a.key)
	if err != nil {
		if !errors.Is(err, storage.ErrSlotEmpty) {
			a.logger.Warn("cart slot read failed, starting empty", zap.Error(err))
		}
		return []domain.CartItem{}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []domain.CartItem{}
	}

	var raw struct {
		Items []any `json:"items"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		a.logger.Warn("cart slot unreadable, starting empty", zap.Error(err))
		return []domain.CartItem{}
	}

	items := make([]domain.CartItem, 0, len(raw.Items))
	seen := make(map[string]int, len(raw.Items))
	for _, entry := range raw.Items {
		rec, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		item, ok := a.repair(rec)
		if !ok {
			a.logger.Debug("dropping stored cart record without id")
			continue
		}
		if idx, dup := seen[item.ID]; dup {
			items[idx].Quantity = min(domain.MaxQuantity, items[idx].Quantity+item.Quantity)
			continue
		}
		seen[item.ID] = len(items)
		items = append(items, item)
	}
	return items
}

func (a *Adapter) repair(rec pricing.Record) (domain.CartItem, bool) {
	id := pricing.String(rec, "id")
	if id == "" {
		return domain.CartItem{}, false
	}

	item := domain.CartItem{
		ID:           id,
		ProductID:    pricing.String(rec, "productId"),
		VariantID:    pricing.String(rec, "variantId"),
		Title:        pricing.String(rec, "title"),
		ProductTitle: pricing.String(rec, "productTitle"),
		VariantTitle: pricing.String(rec, "variantTitle"),
		VariantSKU:   pricing.String(rec, "variantSku"),
		ProductUID:   pricing.String(rec, "productUid"),
		Image:        pricing.String(rec, "image"),
		Price:        repairPrice(rec["price"]),
		Currency:     strings.ToLower(pricing.String(rec, "currency")),
		Quantity:     repairQuantity(rec["quantity"]),
	}

	// Records written before composite keys only carry the product id.
	if item.ProductID == "" {
		productID, variantID, found := strings.Cut(id, ":")
		item.ProductID = productID
		if found && item.VariantID == "" {
			item.VariantID = variantID
		}
	}
	if item.VariantID == "" {
		item.VariantID = item.ProductID
	}
	if item.Currency == "" {
		item.Currency = a.defaultCurrency
	}

	// A stored null means the line never had an original; only records predating the field
	// get one derived.
	switch original := rec["imageOriginal"].(type) {
	case string:
		if original != "" {
			item.ImageOriginal = &original
		}
	case nil:
		if _, present := rec["imageOriginal"]; !present {
			item.ImageOriginal = originalImage(item.Image)
		}
	}
	return item, true
}

// repairQuantity mirrors integer parsing of the stored value: leading integer part, else 1.
func repairQuantity(v any) int {
	var q float64
	switch val := v.(type) {
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return domain.MinQuantity
		}
		q = f
	case string:
		digits := leadingInt(strings.TrimSpace(val))
		n, err := strconv.Atoi(digits)
		if err != nil {
			return domain.MinQuantity
		}
		q = float64(n)
	default:
		return domain.MinQuantity
	}
	return domain.ClampQuantity(math.Trunc(q))
}

func leadingInt(s string) string {
	end := 0
	for i, r := range s {
		if (r == '-' || r == '+') && i == 0 {
			end = i + 1
			continue
		}
		if r < '0' || r > '9' {
			break
		}
		end = i + 1
	}
	return s[:end]
}

// repairPrice accepts only stored numbers. Anything else, and negatives, become zero.
func repairPrice(v any) decimal.Decimal {
	n, ok := v.(json.Number)
	if !ok {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// originalImage recovers the source URL of a proxied image, or the image itself when it is absolute.
func originalImage(image string) *string {
	if image == "" {
		return nil
	}
	u, err := url.Parse(image)
	if err != nil {
		return nil
	}
	if strings.HasSuffix(u.Path, "/proxy/image") {
		if src := u.Query().Get("url"); src != "" {
			return &src
		}
		return nil
	}
	if u.Scheme == "http" || u.Scheme == "https" {
		return &image
	}
	return nil
}
