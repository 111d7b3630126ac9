package promo

import (
	"context"
	"strings"
	"sync"

	"github.com/v1centp/timetobonk-client/internal/domain"
	"github.com/v1centp/timetobonk-client/internal/gateway"
	"go.uber.org/zap"
)

// Verdict is the outcome of validating one code. Discount is set only when Valid.
type Verdict struct {
	Valid    bool                  `json:"valid"`
	Discount *domain.PromoDiscount `json:"discount,omitempty"`
}

type Validator interface {
	Validate(ctx context.Context, code string) Verdict
}

// Transport performs the validation request.
type Transport interface {
	ValidatePromo(ctx context.Context, code string) (*gateway.PromoResponse, error)
}

// Service validates codes. Any transport failure or malformed answer is an invalid verdict.
type Service struct {
	transport Transport
	logger    *zap.Logger
}

func NewService(transport Transport, logger *zap.Logger) *Service {
	return &Service{transport: transport, logger: logger}
}

// Normalize trims and upper-cases a code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *Service) Validate(ctx context.Context, code string) Verdict {
	code = Normalize(code)
	if code == "" {
		return Verdict{}
	}

	resp, err := s.transport.ValidatePromo(ctx, code)
	if err != nil {
		s.logger.Warn("promo validation failed", zap.String("code", code), zap.Error(err))
		return Verdict{}
	}
	if resp == nil || !resp.Valid || resp.Discount == nil {
		return Verdict{}
	}

	discount := *resp.Discount
	if discount.Value < 0 || discount.Value > 100 {
		s.logger.Warn("promo discount out of range", zap.String("code", code), zap.Int("value", discount.Value))
		return Verdict{}
	}
	if discount.Code == "" {
		discount.Code = code
	}
	return Verdict{Valid: true, Discount: &discount}
}

// Field is the promo input of one session. A verdict only counts for the code it was obtained for.
type Field struct {
	validator Validator

	mu         sync.Mutex
	code       string
	verdict    *Verdict
	verdictFor string
}

func NewField(validator Validator) *Field {
	return &Field{validator: validator}
}

// SetCode replaces the entered code and discards any previous verdict.
func (f *Field) SetCode(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.code = Normalize(code)
	f.verdict = nil
	f.verdictFor = ""
}

func (f *Field) Code() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.code
}

// Apply validates the current code. If the code changed while the request was in flight
// the verdict is returned but not stored.
func (f *Field) Apply(ctx context.Context) Verdict {
	code := f.Code()
	if code == "" {
		return Verdict{}
	}

	verdict := f.validator.Validate(ctx, code)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.code == code {
		f.verdict = &verdict
		f.verdictFor = code
	}
	return verdict
}

// Active returns the discount granted to the current code, if any.
func (f *Field) Active() *domain.PromoDiscount {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.verdict == nil || !f.verdict.Valid || f.verdictFor != f.code {
		return nil
	}
	d := *f.verdict.Discount
	return &d
}
