package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/meridianpay/meridian-backend/pkg/config"
	apperrors "github.com/meridianpay/meridian-backend/pkg/errors"
)

// SandboxAdapter settles transfers in memory. Used in development and tests.
// Submissions are keyed by idempotency key so retries return the original
// reference.
type SandboxAdapter struct {
	mtx         sync.Mutex
	byKey       map[string]string
	byReference map[string]*StatusResult
	failureMode string
}

// NewSandboxAdapter builds an in-memory adapter honoring the configured
// failure mode ("transient", "permanent", or empty for always-settle).
func NewSandboxAdapter(cfg config.GatewayConfig) *SandboxAdapter {
	return &SandboxAdapter{
		byKey:       make(map[string]string),
		byReference: make(map[string]*StatusResult),
		failureMode: strings.TrimSpace(strings.ToLower(cfg.SandboxFailure)),
	}
}

// Submit accepts the transfer unless a failure mode is configured.
func (a *SandboxAdapter) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeGatewayTransient, err, "submit aborted")
	}
	if err := validateSubmit(req); err != nil {
		return nil, apperrors.New(apperrors.CodeValidation, err.Error())
	}

	switch a.failureMode {
	case "transient":
		return nil, apperrors.New(apperrors.CodeGatewayTransient, "sandbox transient failure")
	case "permanent":
		return nil, apperrors.New(apperrors.CodeGatewayPermanent, "sandbox permanent failure")
	}

	a.mtx.Lock()
	defer a.mtx.Unlock()

	if ref, ok := a.byKey[req.IdempotencyKey]; ok {
		return &SubmitResult{Reference: ref, Accepted: true}, nil
	}

	ref := fmt.Sprintf("sbx_%s", uuid.NewString())
	a.byKey[req.IdempotencyKey] = ref
	a.byReference[ref] = &StatusResult{Reference: ref, Settled: true}
	return &SubmitResult{Reference: ref, Accepted: true}, nil
}

// Status reports the recorded state for a sandbox reference.
func (a *SandboxAdapter) Status(ctx context.Context, reference string) (*StatusResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeGatewayTransient, err, "status aborted")
	}
	a.mtx.Lock()
	defer a.mtx.Unlock()

	result, ok := a.byReference[reference]
	if !ok {
		return nil, apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("unknown transfer %q", reference))
	}
	copied := *result
	return &copied, nil
}
