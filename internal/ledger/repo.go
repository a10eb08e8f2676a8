package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/meridianpay/meridian-backend/pkg/db/models"
	"github.com/meridianpay/meridian-backend/pkg/enums"
)

// Repository manages persistence for ledger entries. Entries are append-only;
// there are no update or delete paths.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateAll(ctx context.Context, entries []models.LedgerEntry) error
	ListByTransactionID(ctx context.Context, transactionID uuid.UUID) ([]models.LedgerEntry, error)
	SumByAccount(ctx context.Context, merchantID uuid.UUID, accountType enums.AccountType, accountName string, currency enums.Currency) (AccountSums, error)
}

// AccountSums carries the raw debit/credit totals for one account.
type AccountSums struct {
	Debits  int64
	Credits int64
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateAll(ctx context.Context, entries []models.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&entries).Error
}

func (r *repository) ListByTransactionID(ctx context.Context, transactionID uuid.UUID) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) SumByAccount(ctx context.Context, merchantID uuid.UUID, accountType enums.AccountType, accountName string, currency enums.Currency) (AccountSums, error) {
	var sums AccountSums
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Select(
			"COALESCE(SUM(CASE WHEN entry_type = ? THEN amount_minor ELSE 0 END), 0) AS debits, "+
				"COALESCE(SUM(CASE WHEN entry_type = ? THEN amount_minor ELSE 0 END), 0) AS credits",
			enums.EntryTypeDebit, enums.EntryTypeCredit,
		).
		Where("merchant_id = ? AND account_type = ? AND account_name = ? AND currency = ?",
			merchantID, accountType, accountName, currency).
		Scan(&sums).Error
	return sums, err
}
