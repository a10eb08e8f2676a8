package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/meridianpay/meridian-backend/pkg/config"
	"github.com/meridianpay/meridian-backend/pkg/db/models"
	"github.com/meridianpay/meridian-backend/pkg/enums"
	apperrors "github.com/meridianpay/meridian-backend/pkg/errors"
	"github.com/meridianpay/meridian-backend/pkg/logger"
)

// Clock lets tests pin time; production uses the real clock.
type Clock func() time.Time

// ServiceParams groups dependencies for the webhook service.
type ServiceParams struct {
	Repo   Repository
	Config config.WebhookConfig
	Logger *logger.Logger
	Clock  Clock
}

// Service manages endpoint registration and delivery scheduling. Enqueuing is
// isolated from the business flow that produced the event: a delivery that
// cannot be created is logged, never propagated.
type Service struct {
	repo  Repository
	cfg   config.WebhookConfig
	logg  *logger.Logger
	clock Clock
}

// NewService builds a webhook service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	cfg := params.Config
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BackoffBaseMins <= 0 {
		cfg.BackoffBaseMins = 5
	}
	if cfg.BackoffCapMins <= 0 {
		cfg.BackoffCapMins = 60
	}
	return &Service{
		repo:  params.Repo,
		cfg:   cfg,
		logg:  params.Logger,
		clock: clock,
	}, nil
}

// RegisterEndpointInput describes a merchant webhook destination.
type RegisterEndpointInput struct {
	MerchantID uuid.UUID
	URL        string
	Secret     string
	EventTypes []enums.WebhookEventType
}

// RegisterEndpoint validates and stores a webhook destination.
func (s *Service) RegisterEndpoint(ctx context.Context, input RegisterEndpointInput) (*models.WebhookEndpoint, error) {
	if input.MerchantID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "merchant id is required")
	}
	parsed, err := url.Parse(input.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("invalid endpoint url %q", input.URL))
	}
	if input.Secret == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "secret is required")
	}
	for _, eventType := range input.EventTypes {
		if !eventType.IsValid() {
			return nil, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("unknown event type %q", eventType))
		}
	}

	eventTypes, err := json.Marshal(input.EventTypes)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "marshal event types")
	}
	endpoint := &models.WebhookEndpoint{
		ID:         uuid.New(),
		MerchantID: input.MerchantID,
		URL:        input.URL,
		Secret:     input.Secret,
		EventTypes: eventTypes,
		Active:     true,
	}
	if err := s.repo.CreateEndpoint(ctx, endpoint); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "persist endpoint")
	}
	return endpoint, nil
}

// Enqueue creates a pending delivery for an endpoint. The correlation id
// links the delivery back to the internal event that produced it.
func (s *Service) Enqueue(ctx context.Context, endpointID uuid.UUID, eventType enums.WebhookEventType, payload json.RawMessage, correlationID uuid.UUID) (*models.WebhookDelivery, error) {
	endpoint, err := s.repo.FindEndpoint(ctx, endpointID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "load endpoint")
	}
	if endpoint == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("endpoint %s not found", endpointID))
	}
	if !endpoint.Active {
		return nil, apperrors.New(apperrors.CodeStateConflict, fmt.Sprintf("endpoint %s is inactive", endpointID))
	}
	if !subscribed(endpoint, eventType) {
		return nil, apperrors.New(apperrors.CodeStateConflict, fmt.Sprintf("endpoint %s is not subscribed to %s", endpointID, eventType))
	}
	if correlationID == uuid.Nil {
		correlationID = uuid.New()
	}

	delivery := &models.WebhookDelivery{
		ID:            uuid.New(),
		EndpointID:    endpointID,
		EventType:     eventType,
		Status:        enums.WebhookDeliveryStatusPending,
		Payload:       payload,
		CorrelationID: correlationID,
	}
	if err := s.repo.CreateDelivery(ctx, delivery); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "persist delivery")
	}
	return delivery, nil
}

// Fanout enqueues the event for every subscribed active endpoint of the
// merchant. Failures are logged and swallowed: delivery is fire-and-forget
// relative to the state change that emitted the event.
func (s *Service) Fanout(ctx context.Context, merchantID uuid.UUID, eventType enums.WebhookEventType, payload json.RawMessage, correlationID uuid.UUID) {
	endpoints, err := s.repo.ListEndpointsByMerchant(ctx, merchantID)
	if err != nil {
		if s.logg != nil {
			s.logg.Error(ctx, "failed to list webhook endpoints", err)
		}
		return
	}
	for i := range endpoints {
		endpoint := &endpoints[i]
		if !endpoint.Active || !subscribed(endpoint, eventType) {
			continue
		}
		if _, err := s.Enqueue(ctx, endpoint.ID, eventType, payload, correlationID); err != nil && s.logg != nil {
			s.logg.Error(ctx, fmt.Sprintf("failed to enqueue webhook for endpoint %s", endpoint.ID), err)
		}
	}
}

// Retry re-dispatches a delivery as a fresh one linked via replay_of_webhook_id.
func (s *Service) Retry(ctx context.Context, deliveryID uuid.UUID) (*models.WebhookDelivery, error) {
	original, err := s.repo.FindDelivery(ctx, deliveryID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "load delivery")
	}
	if original == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("delivery %s not found", deliveryID))
	}

	replay := &models.WebhookDelivery{
		ID:                uuid.New(),
		EndpointID:        original.EndpointID,
		EventType:         original.EventType,
		Status:            enums.WebhookDeliveryStatusPending,
		Payload:           original.Payload,
		CorrelationID:     original.CorrelationID,
		ReplayOfWebhookID: &original.ID,
	}
	if err := s.repo.CreateDelivery(ctx, replay); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "persist replay delivery")
	}
	return replay, nil
}

// RetryDelay returns the wait before the next attempt after `attempts`
// consecutive failures: min(2^(attempts-1) x base, cap) minutes.
func (s *Service) RetryDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	mins := s.cfg.BackoffBaseMins
	for i := 1; i < attempts; i++ {
		mins *= 2
		if mins >= s.cfg.BackoffCapMins {
			mins = s.cfg.BackoffCapMins
			break
		}
	}
	if mins > s.cfg.BackoffCapMins {
		mins = s.cfg.BackoffCapMins
	}
	return time.Duration(mins) * time.Minute
}

// MaxAttempts is the delivery attempt cap.
func (s *Service) MaxAttempts() int {
	return s.cfg.MaxAttempts
}

func subscribed(endpoint *models.WebhookEndpoint, eventType enums.WebhookEventType) bool {
	// An endpoint with no explicit list receives everything.
	if len(endpoint.EventTypes) == 0 {
		return true
	}
	var eventTypes []enums.WebhookEventType
	if err := json.Unmarshal(endpoint.EventTypes, &eventTypes); err != nil {
		return false
	}
	if len(eventTypes) == 0 {
		return true
	}
	for _, candidate := range eventTypes {
		if candidate == eventType {
			return true
		}
	}
	return false
}
