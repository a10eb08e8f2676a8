package disbursement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/meridianpay/meridian-backend/internal/earnings"
	"github.com/meridianpay/meridian-backend/internal/ledger"
	"github.com/meridianpay/meridian-backend/internal/pricing"
	"github.com/meridianpay/meridian-backend/internal/wallet"
	dbpkg "github.com/meridianpay/meridian-backend/pkg/db"
	"github.com/meridianpay/meridian-backend/pkg/db/models"
	"github.com/meridianpay/meridian-backend/pkg/enums"
	apperrors "github.com/meridianpay/meridian-backend/pkg/errors"
	"github.com/meridianpay/meridian-backend/pkg/logger"
	"github.com/meridianpay/meridian-backend/pkg/outbox"
	"github.com/meridianpay/meridian-backend/pkg/outbox/payloads"
)

var validate = validator.New()

// Clock lets tests pin time; production uses the real clock.
type Clock func() time.Time

// WalletOps is the slice of the wallet service the settlement flow drives.
type WalletOps interface {
	Hold(ctx context.Context, input wallet.MovementInput) (*models.MerchantWallet, error)
	Release(ctx context.Context, input wallet.MovementInput) (*models.MerchantWallet, error)
	CompleteHold(ctx context.Context, input wallet.MovementInput) (*models.MerchantWallet, error)
}

// EarningsRecorder records the platform earning at settlement time.
type EarningsRecorder interface {
	RecordTx(ctx context.Context, tx *gorm.DB, input earnings.RecordInput) (*models.PlatformEarning, error)
}

// WebhookNotifier fans a merchant-facing event out to every subscribed
// endpoint. Delivery itself is owned by the webhook dispatcher; enqueueing
// never fails the state change that produced the event.
type WebhookNotifier interface {
	Fanout(ctx context.Context, merchantID uuid.UUID, eventType enums.WebhookEventType, payload json.RawMessage, correlationID uuid.UUID)
}

// ServiceParams groups dependencies for the disbursement service.
type ServiceParams struct {
	DB       *dbpkg.Client
	Repo     Repository
	Wallet   WalletOps
	Ledger   ledger.Service
	Earnings EarningsRecorder
	Pricing  pricing.Config
	Outbox   *outbox.Service
	Webhooks WebhookNotifier
	Logger   *logger.Logger
	Clock    Clock
}

// Service owns the settlement state machine. Funds are held at request time
// and every terminal edge either consumes or releases the hold exactly once.
type Service struct {
	db       *dbpkg.Client
	repo     Repository
	wallet   WalletOps
	ledger   ledger.Service
	earnings EarningsRecorder
	pricing  pricing.Config
	outbox   *outbox.Service
	webhooks WebhookNotifier
	logg     *logger.Logger
	clock    Clock
}

// NewService builds a disbursement service.
func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, errors.New("db client is required")
	}
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Wallet == nil {
		return nil, errors.New("wallet service is required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		db:       params.DB,
		repo:     params.Repo,
		wallet:   params.Wallet,
		ledger:   params.Ledger,
		earnings: params.Earnings,
		pricing:  params.Pricing,
		outbox:   params.Outbox,
		webhooks: params.Webhooks,
		logg:     params.Logger,
		clock:    clock,
	}, nil
}

// fanoutWebhook encodes the event and hands it to the webhook subsystem.
// Errors are logged and swallowed: merchant notification never rolls back
// the transition that produced it.
func (s *Service) fanoutWebhook(ctx context.Context, merchantID uuid.UUID, eventType enums.WebhookEventType, event any, correlationID uuid.UUID) {
	if s.webhooks == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		if s.logg != nil {
			s.logg.Error(ctx, "failed to encode webhook payload", err)
		}
		return
	}
	s.webhooks.Fanout(ctx, merchantID, eventType, payload, correlationID)
}

// RequestInput describes a payout to create. IdempotencyKey is optional; when
// empty a key derived from the new disbursement id is used.
type RequestInput struct {
	MerchantID     uuid.UUID       `validate:"required"`
	WalletID       uuid.UUID       `validate:"required"`
	AmountMinor    int64           `validate:"required,gt=0"`
	Currency       enums.Currency  `validate:"required"`
	Beneficiary    json.RawMessage `validate:"required"`
	BatchID        *uuid.UUID
	IdempotencyKey string
}

// Request validates the payout, holds gross plus fee on the wallet, and
// creates the pending disbursement. The hold and the row are linked: if the
// row cannot be written the hold is released before returning.
func (s *Service) Request(ctx context.Context, input RequestInput) (*models.Disbursement, error) {
	if err := validate.Struct(input); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeValidation, err, "invalid disbursement request")
	}
	if !input.Currency.IsValid() {
		return nil, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("unsupported currency %q", input.Currency))
	}
	if !json.Valid(input.Beneficiary) {
		return nil, apperrors.New(apperrors.CodeValidation, "beneficiary must be valid json")
	}

	if input.IdempotencyKey != "" {
		existing, err := s.repo.FindByIdempotencyKey(ctx, input.IdempotencyKey)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeDependency, err, "idempotency lookup")
		}
		if existing != nil {
			return existing, nil
		}
	}

	breakdown, err := pricing.Calculate(input.AmountMinor, s.pricing)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	idempotencyKey := input.IdempotencyKey
	if idempotencyKey == "" {
		idempotencyKey = GatewayIdempotencyKey(id)
	}
	held := input.AmountMinor + breakdown.ProcessingFee

	d := &models.Disbursement{
		ID:             id,
		MerchantID:     input.MerchantID,
		WalletID:       input.WalletID,
		BatchID:        input.BatchID,
		Status:         enums.DisbursementStatusPending,
		Currency:       input.Currency,
		GrossAmount:    input.AmountMinor,
		FeeAmount:      breakdown.ProcessingFee,
		NetAmount:      input.AmountMinor,
		HeldAmount:     held,
		Beneficiary:    input.Beneficiary,
		IdempotencyKey: idempotencyKey,
	}

	if _, err := s.wallet.Hold(ctx, wallet.MovementInput{
		WalletID:    input.WalletID,
		AmountMinor: held,
		Description: fmt.Sprintf("hold for disbursement %s", id),
	}); err != nil {
		return nil, err
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, d); err != nil {
			return apperrors.Wrap(apperrors.CodeDependency, err, "persist disbursement")
		}
		if input.BatchID != nil {
			if err := repo.AttachToBatch(ctx, *input.BatchID, held); err != nil {
				return apperrors.Wrap(apperrors.CodeDependency, err, "attach to batch")
			}
		}
		if s.outbox == nil {
			return nil
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDisbursementRequested,
			AggregateType: enums.AggregateDisbursement,
			AggregateID:   id,
			Version:       1,
			Data: payloads.DisbursementRequestedEvent{
				DisbursementID: id,
				MerchantID:     input.MerchantID,
				BatchID:        input.BatchID,
				Currency:       input.Currency,
				GrossAmount:    d.GrossAmount,
				FeeAmount:      d.FeeAmount,
				NetAmount:      d.NetAmount,
				IdempotencyKey: idempotencyKey,
			},
		})
	})
	if err != nil {
		if _, releaseErr := s.wallet.Release(ctx, wallet.MovementInput{
			WalletID:    input.WalletID,
			AmountMinor: held,
		}); releaseErr != nil && s.logg != nil {
			s.logg.Error(ctx, "failed to release hold after create failure", releaseErr)
		}
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithDisbursementID(ctx, id.String()), "disbursement requested")
	}
	return d, nil
}

// Find returns a disbursement.
func (s *Service) Find(ctx context.Context, id uuid.UUID) (*models.Disbursement, error) {
	d, err := s.repo.Find(ctx, id)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "load disbursement")
	}
	if d == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("disbursement %s not found", id))
	}
	return d, nil
}

// Cancel aborts a disbursement that has not started processing. The hold is
// released through the same exactly-once gate the failure path uses.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*models.Disbursement, error) {
	d, err := s.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	won, err := s.repo.Transition(ctx, id,
		[]enums.DisbursementStatus{enums.DisbursementStatusPending},
		enums.DisbursementStatusCancelled, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "cancel disbursement")
	}
	if !won {
		return nil, apperrors.New(
			apperrors.CodeStateConflict,
			fmt.Sprintf("disbursement %s is %s, only pending disbursements can be cancelled", id, d.Status),
		)
	}

	if err := s.releaseHold(ctx, d); err != nil {
		return nil, err
	}

	now := s.clock()
	if s.outbox != nil {
		emitErr := s.db.WithTx(ctx, func(tx *gorm.DB) error {
			return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventDisbursementCancelled,
				AggregateType: enums.AggregateDisbursement,
				AggregateID:   id,
				Version:       1,
				Data: payloads.DisbursementCancelledEvent{
					DisbursementID: id,
					MerchantID:     d.MerchantID,
					HeldAmount:     d.HeldAmount,
					CancelledAt:    now,
					Reason:         reason,
				},
			})
		})
		if emitErr != nil && s.logg != nil {
			s.logg.Error(ctx, "failed to emit cancellation event", emitErr)
		}
	}

	s.fanoutWebhook(ctx, d.MerchantID, enums.WebhookEventDisbursementCancelled, payloads.DisbursementCancelledEvent{
		DisbursementID: id,
		MerchantID:     d.MerchantID,
		HeldAmount:     d.HeldAmount,
		CancelledAt:    now,
		Reason:         reason,
	}, id)

	if d.BatchID != nil {
		s.recomputeBatch(ctx, *d.BatchID)
	}
	return s.Find(ctx, id)
}

// BeginSending marks the row in flight and posts the settlement ledger
// transaction once. Failure after this point reverses the posting.
func (s *Service) BeginSending(ctx context.Context, d *models.Disbursement) error {
	won, err := s.repo.Transition(ctx, d.ID,
		[]enums.DisbursementStatus{enums.DisbursementStatusProcessing},
		enums.DisbursementStatusSending, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDependency, err, "mark sending")
	}
	if won {
		d.Status = enums.DisbursementStatusSending
	}

	if d.LedgerTxID != nil || s.ledger == nil {
		return nil
	}
	entries, err := s.ledger.PostTransaction(ctx, settlementPosting(d))
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		txID := entries[0].TransactionID
		if err := s.repo.SetLedgerTx(ctx, d.ID, txID); err != nil {
			return apperrors.Wrap(apperrors.CodeDependency, err, "record ledger tx")
		}
		d.LedgerTxID = &txID
	}
	return nil
}

// Complete drives the final sending -> completed edge. The status update is
// the exactly-once gate: only the winner consumes the hold and records the
// platform earning.
func (s *Service) Complete(ctx context.Context, d *models.Disbursement, gatewayReference string) error {
	now := s.clock()
	won, err := s.repo.Transition(ctx, d.ID,
		[]enums.DisbursementStatus{enums.DisbursementStatusSending},
		enums.DisbursementStatusCompleted, map[string]any{
			"gateway_reference": gatewayReference,
			"completed_at":      now,
		})
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDependency, err, "complete disbursement")
	}
	if !won {
		return nil
	}

	if _, err := s.wallet.CompleteHold(ctx, wallet.MovementInput{
		WalletID:    d.WalletID,
		AmountMinor: d.HeldAmount,
		Description: fmt.Sprintf("disbursement %s settled", d.ID),
	}); err != nil {
		// Status already flipped; the funds stay locked for manual review
		// rather than risking a double consumption.
		if s.logg != nil {
			s.logg.Error(ctx, "failed to consume hold for completed disbursement", err)
		}
		return err
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if s.earnings != nil {
			if _, err := s.earnings.RecordTx(ctx, tx, earnings.RecordInput{
				MerchantID:  d.MerchantID,
				RelatedType: enums.RelatedEntityTypeDisbursement,
				RelatedID:   d.ID,
				Currency:    d.Currency,
				Breakdown:   s.feeBreakdown(d),
			}); err != nil {
				return err
			}
		}
		if s.outbox == nil {
			return nil
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDisbursementCompleted,
			AggregateType: enums.AggregateDisbursement,
			AggregateID:   d.ID,
			Version:       1,
			Data: payloads.DisbursementStatusEvent{
				DisbursementID:   d.ID,
				MerchantID:       d.MerchantID,
				BatchID:          d.BatchID,
				Status:           enums.DisbursementStatusCompleted,
				GatewayReference: &gatewayReference,
				AttemptCount:     d.AttemptCount,
			},
		})
	})
	if err != nil {
		return err
	}

	s.fanoutWebhook(ctx, d.MerchantID, enums.WebhookEventDisbursementCompleted, payloads.DisbursementStatusEvent{
		DisbursementID:   d.ID,
		MerchantID:       d.MerchantID,
		BatchID:          d.BatchID,
		Status:           enums.DisbursementStatusCompleted,
		GatewayReference: &gatewayReference,
		AttemptCount:     d.AttemptCount,
	}, d.ID)

	if s.logg != nil {
		s.logg.Info(s.logg.WithDisbursementID(ctx, d.ID.String()), "disbursement completed")
	}
	if d.BatchID != nil {
		s.recomputeBatch(ctx, *d.BatchID)
	}
	return nil
}

// Fail is the single failure handler. Repeated invocations are no-ops past
// the status edge, and the hold release flag guarantees the funds come back
// exactly once.
func (s *Service) Fail(ctx context.Context, d *models.Disbursement, reason string) error {
	won, err := s.repo.Transition(ctx, d.ID,
		[]enums.DisbursementStatus{
			enums.DisbursementStatusPending,
			enums.DisbursementStatusProcessing,
			enums.DisbursementStatusSending,
		},
		enums.DisbursementStatusFailed, map[string]any{
			"failure_reason":  reason,
			"next_attempt_at": nil,
		})
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDependency, err, "fail disbursement")
	}

	if won && d.LedgerTxID != nil && s.ledger != nil {
		if _, err := s.ledger.ReverseTransaction(ctx, *d.LedgerTxID, "disbursement failed"); err != nil {
			return err
		}
	}

	if err := s.releaseHold(ctx, d); err != nil {
		return err
	}

	if won && s.outbox != nil {
		failureReason := reason
		emitErr := s.db.WithTx(ctx, func(tx *gorm.DB) error {
			return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventDisbursementFailed,
				AggregateType: enums.AggregateDisbursement,
				AggregateID:   d.ID,
				Version:       1,
				Data: payloads.DisbursementStatusEvent{
					DisbursementID: d.ID,
					MerchantID:     d.MerchantID,
					BatchID:        d.BatchID,
					Status:         enums.DisbursementStatusFailed,
					FailureReason:  &failureReason,
					AttemptCount:   d.AttemptCount,
				},
			})
		})
		if emitErr != nil && s.logg != nil {
			s.logg.Error(ctx, "failed to emit failure event", emitErr)
		}
	}

	if won {
		failureReason := reason
		s.fanoutWebhook(ctx, d.MerchantID, enums.WebhookEventDisbursementFailed, payloads.DisbursementStatusEvent{
			DisbursementID: d.ID,
			MerchantID:     d.MerchantID,
			BatchID:        d.BatchID,
			Status:         enums.DisbursementStatusFailed,
			FailureReason:  &failureReason,
			AttemptCount:   d.AttemptCount,
		}, d.ID)
	}

	if s.logg != nil {
		s.logg.Warn(s.logg.WithDisbursementID(ctx, d.ID.String()), fmt.Sprintf("disbursement failed: %s", reason))
	}
	if d.BatchID != nil {
		s.recomputeBatch(ctx, *d.BatchID)
	}
	return nil
}

// releaseHold returns the held funds to the wallet at most once per
// disbursement, guarded by the hold_released flag.
func (s *Service) releaseHold(ctx context.Context, d *models.Disbursement) error {
	won, err := s.repo.MarkHoldReleased(ctx, d.ID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDependency, err, "mark hold released")
	}
	if !won {
		return nil
	}
	if _, err := s.wallet.Release(ctx, wallet.MovementInput{
		WalletID:    d.WalletID,
		AmountMinor: d.HeldAmount,
		Description: fmt.Sprintf("release hold for disbursement %s", d.ID),
	}); err != nil {
		return err
	}
	d.HoldReleased = true
	return nil
}

// ReleaseStrandedHolds sweeps failed and cancelled disbursements whose hold
// was never returned to the wallet, which happens when the process dies
// between the terminal transition and the release. Returns the number of
// holds released.
func (s *Service) ReleaseStrandedHolds(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.repo.ListTerminalUnreleased(ctx, limit)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeDependency, err, "list stranded holds")
	}
	released := 0
	var errs error
	for i := range rows {
		d := rows[i]
		if err := s.releaseHold(ctx, &d); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("release hold for disbursement %s: %w", d.ID, err))
			continue
		}
		released++
	}
	return released, errs
}

// CreateBatch provisions an empty batch to attach disbursements to.
func (s *Service) CreateBatch(ctx context.Context, merchantID uuid.UUID) (*models.DisbursementBatch, error) {
	if merchantID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "merchant id is required")
	}
	batch := &models.DisbursementBatch{
		ID:         uuid.New(),
		MerchantID: merchantID,
		Status:     enums.BatchStatusProcessing,
	}
	if err := s.repo.CreateBatch(ctx, batch); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "create batch")
	}
	return batch, nil
}

// RecomputeBatch re-derives the batch status from its members and persists it.
// Returns the derived status.
func (s *Service) RecomputeBatch(ctx context.Context, batchID uuid.UUID) (enums.BatchStatus, error) {
	batch, err := s.repo.FindBatch(ctx, batchID)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeDependency, err, "load batch")
	}
	if batch == nil {
		return "", apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("batch %s not found", batchID))
	}

	counts, err := s.repo.BatchStatusCounts(ctx, batchID)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeDependency, err, "count batch members")
	}

	status, terminal := DeriveBatchStatus(counts)
	updates := map[string]any{"status": status}
	now := s.clock()
	firstSettle := terminal && batch.SettledAt == nil
	if firstSettle {
		updates["settled_at"] = now
	}
	if err := s.repo.UpdateBatch(ctx, batchID, updates); err != nil {
		return "", apperrors.Wrap(apperrors.CodeDependency, err, "update batch")
	}

	if terminal && s.outbox != nil {
		total := 0
		for _, n := range counts {
			total += n
		}
		emitErr := s.db.WithTx(ctx, func(tx *gorm.DB) error {
			return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventBatchSettled,
				AggregateType: enums.AggregateDisbursementBatch,
				AggregateID:   batchID,
				Version:       1,
				Data: payloads.BatchSettledEvent{
					BatchID:        batchID,
					MerchantID:     batch.MerchantID,
					Status:         status,
					TotalCount:     total,
					CompletedCount: counts[enums.DisbursementStatusCompleted],
					FailedCount:    counts[enums.DisbursementStatusFailed],
					SettledAt:      now,
				},
			})
		})
		if emitErr != nil && s.logg != nil {
			s.logg.Error(ctx, "failed to emit batch settled event", emitErr)
		}
	}

	if firstSettle {
		total := 0
		for _, n := range counts {
			total += n
		}
		s.fanoutWebhook(ctx, batch.MerchantID, enums.WebhookEventBatchSettled, payloads.BatchSettledEvent{
			BatchID:        batchID,
			MerchantID:     batch.MerchantID,
			Status:         status,
			TotalCount:     total,
			CompletedCount: counts[enums.DisbursementStatusCompleted],
			FailedCount:    counts[enums.DisbursementStatusFailed],
			SettledAt:      now,
		}, batchID)
	}
	return status, nil
}

func (s *Service) recomputeBatch(ctx context.Context, batchID uuid.UUID) {
	if _, err := s.RecomputeBatch(ctx, batchID); err != nil && s.logg != nil {
		s.logg.Error(ctx, "failed to recompute batch status", err)
	}
}

// DeriveBatchStatus folds member statuses into the batch status. The second
// return reports whether every member reached a terminal state.
func DeriveBatchStatus(counts map[enums.DisbursementStatus]int) (enums.BatchStatus, bool) {
	total := 0
	terminal := 0
	for status, n := range counts {
		total += n
		if status.IsTerminal() {
			terminal += n
		}
	}
	if total == 0 || terminal < total {
		return enums.BatchStatusProcessing, false
	}
	completed := counts[enums.DisbursementStatusCompleted]
	failed := counts[enums.DisbursementStatusFailed]
	switch {
	case completed == total:
		return enums.BatchStatusCompleted, true
	case failed == total:
		return enums.BatchStatusFailed, true
	default:
		return enums.BatchStatusPartiallyCompleted, true
	}
}

// GatewayIdempotencyKey derives the submission key from the disbursement id.
// The key is attempt-independent so a timed-out submit can be retried without
// duplicating the payout.
func GatewayIdempotencyKey(id uuid.UUID) string {
	return fmt.Sprintf("disb_%s", id)
}

func (s *Service) feeBreakdown(d *models.Disbursement) pricing.Breakdown {
	breakdown, err := pricing.Calculate(d.GrossAmount, s.pricing)
	if err != nil || breakdown.ProcessingFee != d.FeeAmount {
		// The schedule may have changed since the request; trust the amounts
		// frozen on the row.
		return pricing.Breakdown{
			ProcessingFee:        d.FeeAmount,
			TotalPlatformRevenue: d.FeeAmount,
		}
	}
	return breakdown
}

// settlementPosting extinguishes the merchant's claim for the full held
// amount: the net leaves the settlement cash pool and the fee lands in
// platform revenue. Reversing the transaction on failure restores all three.
func settlementPosting(d *models.Disbursement) ledger.PostTransactionInput {
	description := fmt.Sprintf("settlement of disbursement %s", d.ID)
	entries := []ledger.EntryInput{
		{
			AccountType: enums.AccountTypeLiability,
			AccountName: "merchant_funds_payable",
			EntryType:   enums.EntryTypeDebit,
			AmountMinor: d.HeldAmount,
			Currency:    d.Currency,
			Description: &description,
		},
		{
			AccountType: enums.AccountTypeAsset,
			AccountName: "settlement_in_flight",
			EntryType:   enums.EntryTypeCredit,
			AmountMinor: d.NetAmount,
			Currency:    d.Currency,
			Description: &description,
		},
	}
	if d.FeeAmount > 0 {
		entries = append(entries, ledger.EntryInput{
			AccountType: enums.AccountTypeRevenue,
			AccountName: "platform_fees",
			EntryType:   enums.EntryTypeCredit,
			AmountMinor: d.FeeAmount,
			Currency:    d.Currency,
			Description: &description,
		})
	}
	return ledger.PostTransactionInput{
		MerchantID: d.MerchantID,
		Related:    ledger.RelatedRef{Type: enums.RelatedEntityTypeDisbursement, ID: d.ID},
		Entries:    entries,
	}
}
