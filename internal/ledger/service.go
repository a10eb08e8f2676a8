package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/meridianpay/meridian-backend/pkg/db"
	"github.com/meridianpay/meridian-backend/pkg/db/models"
	"github.com/meridianpay/meridian-backend/pkg/enums"
	apperrors "github.com/meridianpay/meridian-backend/pkg/errors"
	"github.com/meridianpay/meridian-backend/pkg/logger"
	"github.com/meridianpay/meridian-backend/pkg/outbox"
	"github.com/meridianpay/meridian-backend/pkg/outbox/payloads"
)

// RelatedRef ties a posting to the business entity that caused it.
type RelatedRef struct {
	Type enums.RelatedEntityType
	ID   uuid.UUID
}

// EntryInput is one side of a posting before it is persisted.
type EntryInput struct {
	AccountType enums.AccountType
	AccountName string
	EntryType   enums.EntryType
	AmountMinor int64
	Currency    enums.Currency
	Description *string
}

// PostTransactionInput captures a full balanced posting request.
type PostTransactionInput struct {
	MerchantID uuid.UUID
	Related    RelatedRef
	Entries    []EntryInput
}

// Service posts and reads balanced double-entry records.
type Service interface {
	PostTransaction(ctx context.Context, input PostTransactionInput) ([]models.LedgerEntry, error)
	PostTransactionTx(ctx context.Context, tx *gorm.DB, input PostTransactionInput) ([]models.LedgerEntry, error)
	AccountBalance(ctx context.Context, merchantID uuid.UUID, accountType enums.AccountType, accountName string, currency enums.Currency) (int64, error)
	ReverseTransaction(ctx context.Context, transactionID uuid.UUID, reason string) ([]models.LedgerEntry, error)
}

// ServiceParams groups dependencies for the ledger service.
type ServiceParams struct {
	DB     *dbpkg.Client
	Repo   Repository
	Outbox *outbox.Service
	Logger *logger.Logger
}

type service struct {
	db     *dbpkg.Client
	repo   Repository
	outbox *outbox.Service
	logg   *logger.Logger
}

// NewService wires a ledger service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, errors.New("db client is required")
	}
	if params.Repo == nil {
		return nil, errors.New("ledger repository is required")
	}
	return &service{
		db:     params.DB,
		repo:   params.Repo,
		outbox: params.Outbox,
		logg:   params.Logger,
	}, nil
}

func (s *service) PostTransaction(ctx context.Context, input PostTransactionInput) ([]models.LedgerEntry, error) {
	var persisted []models.LedgerEntry
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		entries, err := s.PostTransactionTx(ctx, tx, input)
		if err != nil {
			return err
		}
		persisted = entries
		return nil
	})
	if err != nil {
		return nil, err
	}
	return persisted, nil
}

// PostTransactionTx posts inside a caller-owned transaction so wallet mutations
// and their audit trail commit atomically.
func (s *service) PostTransactionTx(ctx context.Context, tx *gorm.DB, input PostTransactionInput) ([]models.LedgerEntry, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if err := checkBalanced(input.Entries); err != nil {
		return nil, err
	}

	transactionID := uuid.New()
	entries := make([]models.LedgerEntry, 0, len(input.Entries))
	var totalDebits, totalCredits int64
	for _, in := range input.Entries {
		entries = append(entries, models.LedgerEntry{
			TransactionID: transactionID,
			MerchantID:    input.MerchantID,
			AccountType:   in.AccountType,
			AccountName:   in.AccountName,
			EntryType:     in.EntryType,
			AmountMinor:   in.AmountMinor,
			Currency:      in.Currency,
			RelatedType:   input.Related.Type,
			RelatedID:     input.Related.ID,
			Description:   in.Description,
		})
		switch in.EntryType {
		case enums.EntryTypeDebit:
			totalDebits += in.AmountMinor
		case enums.EntryTypeCredit:
			totalCredits += in.AmountMinor
		}
	}

	if err := s.repo.WithTx(tx).CreateAll(ctx, entries); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "persist ledger entries")
	}

	if s.outbox != nil {
		event := outbox.DomainEvent{
			EventType:     enums.EventLedgerPosted,
			AggregateType: enums.AggregateLedgerTransaction,
			AggregateID:   transactionID,
			Version:       1,
			Data: payloads.LedgerPostedEvent{
				TransactionID: transactionID,
				MerchantID:    input.MerchantID,
				Currency:      entries[0].Currency,
				EntryCount:    len(entries),
				TotalDebits:   totalDebits,
				TotalCredits:  totalCredits,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return nil, err
		}
	}

	return entries, nil
}

func (s *service) AccountBalance(ctx context.Context, merchantID uuid.UUID, accountType enums.AccountType, accountName string, currency enums.Currency) (int64, error) {
	if merchantID == uuid.Nil {
		return 0, apperrors.New(apperrors.CodeValidation, "merchant id is required")
	}
	if !accountType.IsValid() {
		return 0, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("invalid account type %q", accountType))
	}
	if !currency.IsValid() {
		return 0, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("invalid currency %q", currency))
	}

	sums, err := s.repo.SumByAccount(ctx, merchantID, accountType, accountName, currency)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeDependency, err, "sum ledger account")
	}
	if accountType.NormalSide() == enums.EntryTypeDebit {
		return sums.Debits - sums.Credits, nil
	}
	return sums.Credits - sums.Debits, nil
}

// ReverseTransaction posts the mirror image of an existing transaction under a
// new transaction id. The original entries stay untouched.
func (s *service) ReverseTransaction(ctx context.Context, transactionID uuid.UUID, reason string) ([]models.LedgerEntry, error) {
	if transactionID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "transaction id is required")
	}

	originals, err := s.repo.ListByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "load ledger transaction")
	}
	if len(originals) == 0 {
		return nil, apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("ledger transaction %s not found", transactionID))
	}

	description := fmt.Sprintf("reversal of %s", transactionID)
	if reason != "" {
		description = fmt.Sprintf("%s: %s", description, reason)
	}

	input := PostTransactionInput{
		MerchantID: originals[0].MerchantID,
		Related: RelatedRef{
			Type: originals[0].RelatedType,
			ID:   originals[0].RelatedID,
		},
	}
	for _, original := range originals {
		desc := description
		input.Entries = append(input.Entries, EntryInput{
			AccountType: original.AccountType,
			AccountName: original.AccountName,
			EntryType:   opposite(original.EntryType),
			AmountMinor: original.AmountMinor,
			Currency:    original.Currency,
			Description: &desc,
		})
	}

	return s.PostTransaction(ctx, input)
}

func validateInput(input PostTransactionInput) error {
	if input.MerchantID == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "merchant id is required")
	}
	if !input.Related.Type.IsValid() {
		return apperrors.New(apperrors.CodeValidation, fmt.Sprintf("invalid related entity type %q", input.Related.Type))
	}
	if input.Related.ID == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "related entity id is required")
	}
	if len(input.Entries) < 2 {
		return apperrors.New(apperrors.CodeValidation, "a posting needs at least two entries")
	}
	for i, entry := range input.Entries {
		if !entry.AccountType.IsValid() {
			return apperrors.New(apperrors.CodeValidation, fmt.Sprintf("entry %d: invalid account type %q", i, entry.AccountType))
		}
		if entry.AccountName == "" {
			return apperrors.New(apperrors.CodeValidation, fmt.Sprintf("entry %d: account name is required", i))
		}
		if !entry.EntryType.IsValid() {
			return apperrors.New(apperrors.CodeValidation, fmt.Sprintf("entry %d: invalid entry type %q", i, entry.EntryType))
		}
		if entry.AmountMinor <= 0 {
			return apperrors.New(apperrors.CodeValidation, fmt.Sprintf("entry %d: amount must be positive", i))
		}
		if !entry.Currency.IsValid() {
			return apperrors.New(apperrors.CodeValidation, fmt.Sprintf("entry %d: invalid currency %q", i, entry.Currency))
		}
	}
	return nil
}

// checkBalanced enforces sum(debits) == sum(credits) per currency.
func checkBalanced(entries []EntryInput) error {
	type sums struct {
		debits  int64
		credits int64
	}
	byCurrency := make(map[enums.Currency]*sums)
	for _, entry := range entries {
		s, ok := byCurrency[entry.Currency]
		if !ok {
			s = &sums{}
			byCurrency[entry.Currency] = s
		}
		switch entry.EntryType {
		case enums.EntryTypeDebit:
			s.debits += entry.AmountMinor
		case enums.EntryTypeCredit:
			s.credits += entry.AmountMinor
		}
	}
	for currency, s := range byCurrency {
		if s.debits != s.credits {
			return apperrors.New(
				apperrors.CodeImbalanced,
				fmt.Sprintf("%s debits %d do not equal credits %d", currency, s.debits, s.credits),
			)
		}
	}
	return nil
}

func opposite(entryType enums.EntryType) enums.EntryType {
	if entryType == enums.EntryTypeDebit {
		return enums.EntryTypeCredit
	}
	return enums.EntryTypeDebit
}
