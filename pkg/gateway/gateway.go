package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/meridianpay/meridian-backend/pkg/config"
	"github.com/meridianpay/meridian-backend/pkg/enums"
	"github.com/meridianpay/meridian-backend/pkg/logger"
)

const (
	kindSandbox = "sandbox"
	kindHTTP    = "http"
)

var errInvalidGatewayKind = fmt.Errorf("gateway kind must be %q or %q", kindSandbox, kindHTTP)

// SubmitRequest carries everything the rail needs to move money out.
type SubmitRequest struct {
	DisbursementID uuid.UUID
	IdempotencyKey string
	AmountMinor    int64
	Currency       enums.Currency
	Beneficiary    json.RawMessage
}

// SubmitResult reports the gateway-side handle for an accepted transfer.
type SubmitResult struct {
	Reference string
	Accepted  bool
}

// StatusResult reports the gateway-side terminal state of a transfer.
type StatusResult struct {
	Reference string
	Settled   bool
	Failed    bool
	Detail    string
}

// Adapter abstracts the payout rail. Submit must be idempotent on
// IdempotencyKey: resubmitting the same key returns the original reference
// without moving money twice.
type Adapter interface {
	Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error)
	Status(ctx context.Context, reference string) (*StatusResult, error)
}

// New builds the adapter selected by configuration.
func New(ctx context.Context, cfg config.GatewayConfig, logg *logger.Logger) (Adapter, error) {
	kind := strings.TrimSpace(strings.ToLower(cfg.Kind))
	if kind == "" {
		kind = kindSandbox
	}
	switch kind {
	case kindSandbox:
		if logg != nil {
			logg.Info(ctx, "sandbox gateway adapter initialized")
		}
		return NewSandboxAdapter(cfg), nil
	case kindHTTP:
		adapter, err := NewHTTPAdapter(cfg)
		if err != nil {
			return nil, err
		}
		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("http gateway adapter initialized (%s)", cfg.BaseURL))
		}
		return adapter, nil
	default:
		return nil, errInvalidGatewayKind
	}
}

func validateSubmit(req SubmitRequest) error {
	if req.DisbursementID == uuid.Nil {
		return errors.New("disbursement id is required")
	}
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		return errors.New("idempotency key is required")
	}
	if req.AmountMinor <= 0 {
		return errors.New("amount must be positive")
	}
	if !req.Currency.IsValid() {
		return fmt.Errorf("unsupported currency %q", req.Currency)
	}
	return nil
}
