package promos

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/v1centp/timetobonk-client/internal/domain"
	"github.com/v1centp/timetobonk-client/internal/gateway"
	"go.uber.org/zap"
)

type failingLookup struct{}

func (failingLookup) Lookup(context.Context, string) (*domain.PromoDiscount, error) {
	return nil, errors.New("database is locked")
}

func postValidate(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/promo/validate", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.Validate(rec, req)
	return rec
}

func TestValidate_KnownCode(t *testing.T) {
	h := NewHandler(setupTestDB(t), time.Second, zap.NewNop())

	rec := postValidate(t, h, `{"code":"bonk10"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp gateway.PromoResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Valid)
	require.NotNil(t, resp.Discount)
	assert.Equal(t, domain.PromoDiscount{Value: 10, Code: "BONK10"}, *resp.Discount)
}

func TestValidate_UnknownCode(t *testing.T) {
	h := NewHandler(setupTestDB(t), time.Second, zap.NewNop())

	rec := postValidate(t, h, `{"code":"FREEBIKE"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"valid":false}`, rec.Body.String())
}

func TestValidate_InvalidBody(t *testing.T) {
	h := NewHandler(setupTestDB(t), time.Second, zap.NewNop())

	rec := postValidate(t, h, `{`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidate_LookupError(t *testing.T) {
	h := NewHandler(failingLookup{}, time.Second, zap.NewNop())

	rec := postValidate(t, h, `{"code":"BONK10"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Unable to validate the promo code."}`, rec.Body.String())
}
