package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/meridianpay/meridian-backend/internal/ledger"
	dbpkg "github.com/meridianpay/meridian-backend/pkg/db"
	"github.com/meridianpay/meridian-backend/pkg/db/models"
	"github.com/meridianpay/meridian-backend/pkg/enums"
	apperrors "github.com/meridianpay/meridian-backend/pkg/errors"
	"github.com/meridianpay/meridian-backend/pkg/logger"
	"github.com/meridianpay/meridian-backend/pkg/outbox"
	"github.com/meridianpay/meridian-backend/pkg/outbox/payloads"
)

const defaultMutationRetries = 3

// Clock lets tests pin time; production uses the real clock.
type Clock func() time.Time

// WebhookNotifier fans a merchant-facing event out to subscribed endpoints.
// Enqueueing never fails the balance movement that produced the event.
type WebhookNotifier interface {
	Fanout(ctx context.Context, merchantID uuid.UUID, eventType enums.WebhookEventType, payload json.RawMessage, correlationID uuid.UUID)
}

// ServiceParams groups dependencies for the wallet service.
type ServiceParams struct {
	DB       *dbpkg.Client
	Repo     Repository
	Ledger   ledger.Service
	Outbox   *outbox.Service
	Webhooks WebhookNotifier
	Logger   *logger.Logger
	Clock    Clock
	Retries  int
}

// Service executes wallet primitives as atomic, serialized units per wallet:
// a row lock for the duration of the mutation plus a version-guarded write.
type Service struct {
	db       *dbpkg.Client
	repo     Repository
	ledger   ledger.Service
	outbox   *outbox.Service
	webhooks WebhookNotifier
	logg     *logger.Logger
	clock    Clock
	retries  int
}

// NewService builds a wallet service.
func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, errors.New("db client is required")
	}
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	retries := params.Retries
	if retries <= 0 {
		retries = defaultMutationRetries
	}
	return &Service{
		db:       params.DB,
		repo:     params.Repo,
		ledger:   params.Ledger,
		outbox:   params.Outbox,
		webhooks: params.Webhooks,
		logg:     params.Logger,
		clock:    clock,
		retries:  retries,
	}, nil
}

// MovementInput identifies the wallet and the business entity driving a
// balance movement.
type MovementInput struct {
	WalletID    uuid.UUID
	AmountMinor int64
	Related     *ledger.RelatedRef
	Description string
}

// CreateWallet provisions a wallet for a merchant, currency, and purpose.
func (s *Service) CreateWallet(ctx context.Context, wallet *models.MerchantWallet) error {
	if wallet == nil {
		return apperrors.New(apperrors.CodeValidation, "wallet is required")
	}
	if wallet.MerchantID == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "merchant id is required")
	}
	if !wallet.Currency.IsValid() {
		return apperrors.New(apperrors.CodeValidation, fmt.Sprintf("invalid currency %q", wallet.Currency))
	}
	if !wallet.Type.IsValid() {
		return apperrors.New(apperrors.CodeValidation, fmt.Sprintf("invalid wallet type %q", wallet.Type))
	}
	if wallet.ID == uuid.Nil {
		wallet.ID = uuid.New()
	}
	if wallet.Status == "" {
		wallet.Status = enums.WalletStatusActive
	}
	now := s.clock()
	wallet.UsageDayStart = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	wallet.UsageMonthStart = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return s.repo.CreateWallet(ctx, wallet)
}

// Find returns a wallet snapshot.
func (s *Service) Find(ctx context.Context, id uuid.UUID) (*models.MerchantWallet, error) {
	wallet, err := s.repo.FindWallet(ctx, id)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "load wallet")
	}
	if wallet == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("wallet %s not found", id))
	}
	return wallet, nil
}

// Credit adds funds and posts the audit trail.
func (s *Service) Credit(ctx context.Context, input MovementInput) (*models.MerchantWallet, error) {
	return s.mutate(ctx, input.WalletID, func(tx *gorm.DB, w *models.MerchantWallet) error {
		if err := Credit(w, input.AmountMinor, s.clock()); err != nil {
			return err
		}
		if err := s.postMovement(ctx, tx, w, input, enums.EntryTypeCredit); err != nil {
			return err
		}
		return s.emitMovement(ctx, tx, w, input, enums.EventWalletCredited)
	})
}

// Debit removes funds after checking withdrawal limits, then records usage.
func (s *Service) Debit(ctx context.Context, input MovementInput) (*models.MerchantWallet, error) {
	return s.mutate(ctx, input.WalletID, func(tx *gorm.DB, w *models.MerchantWallet) error {
		now := s.clock()
		if err := CheckWithdrawalLimit(w, input.AmountMinor, now); err != nil {
			return err
		}
		if err := Debit(w, input.AmountMinor, now); err != nil {
			return err
		}
		if err := ApplyWithdrawalUsage(w, input.AmountMinor, now); err != nil {
			return err
		}
		if err := s.postMovement(ctx, tx, w, input, enums.EntryTypeDebit); err != nil {
			return err
		}
		return s.emitMovement(ctx, tx, w, input, enums.EventWalletDebited)
	})
}

// Hold reserves funds for a pending disbursement. Limits are checked here
// because the hold is the moment funds leave the spendable pool.
func (s *Service) Hold(ctx context.Context, input MovementInput) (*models.MerchantWallet, error) {
	return s.mutate(ctx, input.WalletID, func(tx *gorm.DB, w *models.MerchantWallet) error {
		now := s.clock()
		if err := CheckWithdrawalLimit(w, input.AmountMinor, now); err != nil {
			return err
		}
		if err := Hold(w, input.AmountMinor, now); err != nil {
			return err
		}
		return ApplyWithdrawalUsage(w, input.AmountMinor, now)
	})
}

// Release returns held funds to the available pool.
func (s *Service) Release(ctx context.Context, input MovementInput) (*models.MerchantWallet, error) {
	return s.mutate(ctx, input.WalletID, func(tx *gorm.DB, w *models.MerchantWallet) error {
		return Release(w, input.AmountMinor, s.clock())
	})
}

// CompleteHold consumes held funds and posts the audit trail.
func (s *Service) CompleteHold(ctx context.Context, input MovementInput) (*models.MerchantWallet, error) {
	return s.mutate(ctx, input.WalletID, func(tx *gorm.DB, w *models.MerchantWallet) error {
		if err := CompleteHold(w, input.AmountMinor, s.clock()); err != nil {
			return err
		}
		return s.postMovement(ctx, tx, w, input, enums.EntryTypeDebit)
	})
}

// TopUpInput records externally arriving funds.
type TopUpInput struct {
	WalletID    uuid.UUID
	AmountMinor int64
	Reference   string
}

// RecordTopUp credits the wallet, stores the top-up row, and emits an event.
// Subscribed endpoints are notified once the movement has committed.
func (s *Service) RecordTopUp(ctx context.Context, input TopUpInput) (*models.MerchantWallet, error) {
	var recorded *models.TopUp
	updated, err := s.mutate(ctx, input.WalletID, func(tx *gorm.DB, w *models.MerchantWallet) error {
		if err := RecordTopUp(w, input.AmountMinor, s.clock()); err != nil {
			return err
		}
		topUp := &models.TopUp{
			ID:          uuid.New(),
			MerchantID:  w.MerchantID,
			WalletID:    w.ID,
			Currency:    w.Currency,
			AmountMinor: input.AmountMinor,
		}
		if input.Reference != "" {
			topUp.Reference = &input.Reference
		}
		if err := s.repo.WithTx(tx).CreateTopUp(ctx, topUp); err != nil {
			return apperrors.Wrap(apperrors.CodeDependency, err, "persist top-up")
		}
		recorded = topUp
		movement := MovementInput{
			WalletID:    w.ID,
			AmountMinor: input.AmountMinor,
			Related:     &ledger.RelatedRef{Type: enums.RelatedEntityTypeTopUp, ID: topUp.ID},
			Description: "wallet top-up",
		}
		if err := s.postMovement(ctx, tx, w, movement, enums.EntryTypeCredit); err != nil {
			return err
		}
		if s.outbox == nil {
			return nil
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventWalletTopUpRecorded,
			AggregateType: enums.AggregateWallet,
			AggregateID:   w.ID,
			Version:       1,
			Data: payloads.WalletTopUpRecordedEvent{
				TopUpID:    topUp.ID,
				WalletID:   w.ID,
				MerchantID: w.MerchantID,
				Currency:   w.Currency,
				Amount:     input.AmountMinor,
				Reference:  input.Reference,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if s.webhooks != nil && recorded != nil {
		payload, mErr := json.Marshal(payloads.WalletTopUpRecordedEvent{
			TopUpID:    recorded.ID,
			WalletID:   updated.ID,
			MerchantID: updated.MerchantID,
			Currency:   updated.Currency,
			Amount:     input.AmountMinor,
			Reference:  input.Reference,
		})
		if mErr != nil {
			if s.logg != nil {
				s.logg.Error(ctx, "failed to encode top-up webhook payload", mErr)
			}
		} else {
			s.webhooks.Fanout(ctx, updated.MerchantID, enums.WebhookEventTopUpRecorded, payload, recorded.ID)
		}
	}
	return updated, nil
}

// Freeze blocks spending on the wallet and emits an event.
func (s *Service) Freeze(ctx context.Context, walletID uuid.UUID, reason string) (*models.MerchantWallet, error) {
	return s.mutate(ctx, walletID, func(tx *gorm.DB, w *models.MerchantWallet) error {
		now := s.clock()
		if err := Freeze(w, now); err != nil {
			return err
		}
		if s.outbox == nil {
			return nil
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventWalletFrozen,
			AggregateType: enums.AggregateWallet,
			AggregateID:   w.ID,
			Version:       1,
			Data: payloads.WalletFrozenEvent{
				WalletID:   w.ID,
				MerchantID: w.MerchantID,
				FrozenAt:   now,
				Reason:     reason,
			},
		})
	})
}

// Activate returns a wallet to active status.
func (s *Service) Activate(ctx context.Context, walletID uuid.UUID) (*models.MerchantWallet, error) {
	return s.mutate(ctx, walletID, func(tx *gorm.DB, w *models.MerchantWallet) error {
		return Activate(w, s.clock())
	})
}

// CheckWithdrawalLimit evaluates the remaining allowance without mutating.
func (s *Service) CheckWithdrawalLimit(ctx context.Context, walletID uuid.UUID, amount int64) error {
	wallet, err := s.Find(ctx, walletID)
	if err != nil {
		return err
	}
	return CheckWithdrawalLimit(wallet, amount, s.clock())
}

// mutate loads the wallet under a row lock, applies fn, and writes the
// snapshot back guarded by the version it was read at. Version conflicts are
// retried with a fresh read.
func (s *Service) mutate(ctx context.Context, walletID uuid.UUID, fn func(tx *gorm.DB, w *models.MerchantWallet) error) (*models.MerchantWallet, error) {
	if walletID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "wallet id is required")
	}

	var lastErr error
	for attempt := 0; attempt < s.retries; attempt++ {
		var mutated *models.MerchantWallet
		err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			wallet, err := repo.FindWalletForUpdate(ctx, walletID)
			if err != nil {
				return apperrors.Wrap(apperrors.CodeDependency, err, "lock wallet")
			}
			if wallet == nil {
				return apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("wallet %s not found", walletID))
			}
			previousVersion := wallet.Version
			if err := fn(tx, wallet); err != nil {
				return err
			}
			if wallet.Version == previousVersion {
				// Nothing changed; skip the write.
				mutated = wallet
				return nil
			}
			if err := repo.UpdateWalletGuarded(ctx, wallet, previousVersion); err != nil {
				return err
			}
			mutated = wallet
			return nil
		})
		if err == nil {
			return mutated, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, apperrors.Wrap(apperrors.CodeConflict, lastErr, "wallet mutation kept losing the version race")
}

func (s *Service) postMovement(ctx context.Context, tx *gorm.DB, w *models.MerchantWallet, input MovementInput, side enums.EntryType) error {
	if s.ledger == nil || input.Related == nil {
		return nil
	}
	var description *string
	if input.Description != "" {
		description = &input.Description
	}
	walletAccount := fmt.Sprintf("wallet:%s", w.Type)
	// side names the direction of the merchant's claim: crediting the wallet
	// grows merchant_funds_payable, so the liability takes side and the asset
	// takes the mirror entry. Money in is an asset debit, money out a credit.
	_, err := s.ledger.PostTransactionTx(ctx, tx, ledger.PostTransactionInput{
		MerchantID: w.MerchantID,
		Related:    *input.Related,
		Entries: []ledger.EntryInput{
			{
				AccountType: enums.AccountTypeAsset,
				AccountName: walletAccount,
				EntryType:   oppositeSide(side),
				AmountMinor: input.AmountMinor,
				Currency:    w.Currency,
				Description: description,
			},
			{
				AccountType: enums.AccountTypeLiability,
				AccountName: "merchant_funds_payable",
				EntryType:   side,
				AmountMinor: input.AmountMinor,
				Currency:    w.Currency,
				Description: description,
			},
		},
	})
	return err
}

func (s *Service) emitMovement(ctx context.Context, tx *gorm.DB, w *models.MerchantWallet, input MovementInput, eventType enums.OutboxEventType) error {
	if s.outbox == nil {
		return nil
	}
	payload := payloads.WalletMovementEvent{
		WalletID:   w.ID,
		MerchantID: w.MerchantID,
		Currency:   w.Currency,
		Amount:     input.AmountMinor,
		Balance:    w.AvailableBalance,
	}
	if input.Related != nil {
		relatedType := input.Related.Type
		relatedID := input.Related.ID
		payload.RelatedType = &relatedType
		payload.RelatedID = &relatedID
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateWallet,
		AggregateID:   w.ID,
		Version:       1,
		Data:          payload,
	})
}

func oppositeSide(side enums.EntryType) enums.EntryType {
	if side == enums.EntryTypeDebit {
		return enums.EntryTypeCredit
	}
	return enums.EntryTypeDebit
}
