package earnings

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/meridianpay/meridian-backend/internal/pricing"
	"github.com/meridianpay/meridian-backend/pkg/db/models"
	"github.com/meridianpay/meridian-backend/pkg/enums"
	apperrors "github.com/meridianpay/meridian-backend/pkg/errors"
	"github.com/meridianpay/meridian-backend/pkg/outbox"
	"github.com/meridianpay/meridian-backend/pkg/outbox/payloads"
)

// RecordInput carries the fee breakdown to persist for one settled transaction.
type RecordInput struct {
	MerchantID  uuid.UUID
	RelatedType enums.RelatedEntityType
	RelatedID   uuid.UUID
	Currency    enums.Currency
	Breakdown   pricing.Breakdown
}

// ServiceParams groups dependencies for the earnings service.
type ServiceParams struct {
	Repo   Repository
	Outbox *outbox.Service
}

// Service records immutable platform earnings at settlement time.
type Service struct {
	repo   Repository
	outbox *outbox.Service
}

// NewService builds an earnings service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	return &Service{repo: params.Repo, outbox: params.Outbox}, nil
}

// RecordTx writes the earning inside a caller-owned transaction. A second call
// for the same related entity is a no-op, so settlement retries stay safe.
func (s *Service) RecordTx(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.PlatformEarning, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if err := validateRecordInput(input); err != nil {
		return nil, err
	}

	repo := s.repo.WithTx(tx)
	existing, err := repo.FindByRelated(ctx, input.RelatedType, input.RelatedID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "look up platform earning")
	}
	if existing != nil {
		return existing, nil
	}

	earning := &models.PlatformEarning{
		ID:                   uuid.New(),
		MerchantID:           input.MerchantID,
		RelatedType:          input.RelatedType,
		RelatedID:            input.RelatedID,
		Currency:             input.Currency,
		GrossAmount:          input.Breakdown.ApplicationFee,
		GatewayCost:          input.Breakdown.GatewayCost,
		NetAmount:            input.Breakdown.TotalPlatformRevenue,
		ProcessingFeeCharged: input.Breakdown.ProcessingFee,
		ProcessingMargin:     input.Breakdown.ProcessingMargin,
		TotalPlatformRevenue: input.Breakdown.TotalPlatformRevenue,
		Status:               enums.EarningStatusPending,
	}
	if err := repo.Create(ctx, earning); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "persist platform earning")
	}

	if s.outbox != nil {
		event := outbox.DomainEvent{
			EventType:     enums.EventEarningRecorded,
			AggregateType: enums.AggregatePlatformEarning,
			AggregateID:   earning.ID,
			Version:       1,
			Data: payloads.EarningRecordedEvent{
				EarningID:            earning.ID,
				MerchantID:           earning.MerchantID,
				RelatedType:          earning.RelatedType,
				RelatedID:            earning.RelatedID,
				TotalPlatformRevenue: earning.TotalPlatformRevenue,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return nil, err
		}
	}

	return earning, nil
}

// Settle moves a pending earning to settled.
func (s *Service) Settle(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "earning id is required")
	}
	return s.repo.UpdateStatus(ctx, id, enums.EarningStatusSettled)
}

// MarkRefunded flags an earning as fully or partially refunded.
func (s *Service) MarkRefunded(ctx context.Context, id uuid.UUID, partial bool) error {
	if id == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "earning id is required")
	}
	status := enums.EarningStatusRefunded
	if partial {
		status = enums.EarningStatusPartiallyRefunded
	}
	return s.repo.UpdateStatus(ctx, id, status)
}

// ListByMerchant returns recent earnings for a merchant.
func (s *Service) ListByMerchant(ctx context.Context, merchantID uuid.UUID, limit int) ([]models.PlatformEarning, error) {
	if merchantID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "merchant id is required")
	}
	return s.repo.ListByMerchant(ctx, merchantID, limit)
}

func validateRecordInput(input RecordInput) error {
	if input.MerchantID == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "merchant id is required")
	}
	if !input.RelatedType.IsValid() {
		return apperrors.New(apperrors.CodeValidation, fmt.Sprintf("invalid related entity type %q", input.RelatedType))
	}
	if input.RelatedID == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "related entity id is required")
	}
	if !input.Currency.IsValid() {
		return apperrors.New(apperrors.CodeValidation, fmt.Sprintf("invalid currency %q", input.Currency))
	}
	if input.Breakdown.ProcessingFee < 0 || input.Breakdown.ApplicationFee < 0 {
		return apperrors.New(apperrors.CodeValidation, "fee breakdown amounts must be non-negative")
	}
	return nil
}
