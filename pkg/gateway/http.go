package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/meridianpay/meridian-backend/pkg/config"
	apperrors "github.com/meridianpay/meridian-backend/pkg/errors"
)

const maxGatewayBodyLen = 4096

// HTTPAdapter talks to an external payout rail over its REST API.
type HTTPAdapter struct {
	baseURL       string
	apiKey        string
	httpClient    *http.Client
	submitTimeout time.Duration
	statusTimeout time.Duration
}

// NewHTTPAdapter validates the configuration and builds the adapter.
func NewHTTPAdapter(cfg config.GatewayConfig) (*HTTPAdapter, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("gateway base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid gateway base url: %w", err)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gateway api key is required")
	}
	submitTimeout := cfg.SubmitTimeout
	if submitTimeout <= 0 {
		submitTimeout = 30 * time.Second
	}
	statusTimeout := cfg.StatusTimeout
	if statusTimeout <= 0 {
		statusTimeout = 10 * time.Second
	}
	return &HTTPAdapter{
		baseURL:       base,
		apiKey:        strings.TrimSpace(cfg.APIKey),
		httpClient:    &http.Client{},
		submitTimeout: submitTimeout,
		statusTimeout: statusTimeout,
	}, nil
}

type submitBody struct {
	DisbursementID string          `json:"disbursement_id"`
	AmountMinor    int64           `json:"amount_minor"`
	Currency       string          `json:"currency"`
	Beneficiary    json.RawMessage `json:"beneficiary"`
}

type submitResponse struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Detail    string `json:"detail"`
}

// Submit posts a transfer. The idempotency key travels in a header so the
// rail can dedupe retried submissions.
func (a *HTTPAdapter) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if err := validateSubmit(req); err != nil {
		return nil, apperrors.New(apperrors.CodeValidation, err.Error())
	}

	body, err := json.Marshal(submitBody{
		DisbursementID: req.DisbursementID.String(),
		AmountMinor:    req.AmountMinor,
		Currency:       string(req.Currency),
		Beneficiary:    req.Beneficiary,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "encode transfer request")
	}

	ctx, cancel := context.WithTimeout(ctx, a.submitTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/transfers", bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "build transfer request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeGatewayTransient, err, "gateway unreachable")
	}
	defer resp.Body.Close()

	payload, err := readBody(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeGatewayTransient, err, "read gateway response")
	}

	if err := classifyStatus(resp.StatusCode, payload); err != nil {
		return nil, err
	}

	var decoded submitResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeGatewayTransient, err, "decode gateway response")
	}
	if decoded.Reference == "" {
		return nil, apperrors.New(apperrors.CodeGatewayTransient, "gateway response missing reference")
	}
	return &SubmitResult{Reference: decoded.Reference, Accepted: true}, nil
}

// Status fetches the current state of a previously submitted transfer.
func (a *HTTPAdapter) Status(ctx context.Context, reference string) (*StatusResult, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "gateway reference is required")
	}

	ctx, cancel := context.WithTimeout(ctx, a.statusTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/v1/transfers/"+url.PathEscape(reference), nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "build status request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeGatewayTransient, err, "gateway unreachable")
	}
	defer resp.Body.Close()

	payload, err := readBody(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeGatewayTransient, err, "read gateway response")
	}

	if err := classifyStatus(resp.StatusCode, payload); err != nil {
		return nil, err
	}

	var decoded submitResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeGatewayTransient, err, "decode gateway response")
	}
	return &StatusResult{
		Reference: decoded.Reference,
		Settled:   decoded.Status == "settled",
		Failed:    decoded.Status == "failed",
		Detail:    decoded.Detail,
	}, nil
}

func classifyStatus(statusCode int, payload []byte) error {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return nil
	case statusCode == http.StatusTooManyRequests || statusCode >= 500:
		return apperrors.New(apperrors.CodeGatewayTransient, fmt.Sprintf("gateway returned %d: %s", statusCode, truncateBody(payload)))
	default:
		return apperrors.New(apperrors.CodeGatewayPermanent, fmt.Sprintf("gateway rejected request (%d): %s", statusCode, truncateBody(payload)))
	}
}

func readBody(r io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, maxGatewayBodyLen+1))
}

func truncateBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxGatewayBodyLen {
		return s[:maxGatewayBodyLen]
	}
	return s
}
