package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/meridianpay/meridian-backend/pkg/db/models"
	"github.com/meridianpay/meridian-backend/pkg/enums"
)

// ErrVersionConflict reports that a guarded update lost the race; the caller
// reloads the row and retries.
var ErrVersionConflict = errors.New("wallet version conflict")

// Repository manages persistence for wallets, balances, and top-ups.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateWallet(ctx context.Context, wallet *models.MerchantWallet) error
	FindWallet(ctx context.Context, id uuid.UUID) (*models.MerchantWallet, error)
	FindWalletForUpdate(ctx context.Context, id uuid.UUID) (*models.MerchantWallet, error)
	FindWalletByOwner(ctx context.Context, merchantID uuid.UUID, currency enums.Currency, walletType enums.WalletType) (*models.MerchantWallet, error)
	UpdateWalletGuarded(ctx context.Context, wallet *models.MerchantWallet, previousVersion int64) error
	ResetUsageWindows(ctx context.Context, dayStart, monthStart time.Time) (int64, error)

	FindOrCreateBalance(ctx context.Context, merchantID uuid.UUID, currency enums.Currency) (*models.MerchantBalance, error)
	FindBalanceForUpdate(ctx context.Context, merchantID uuid.UUID, currency enums.Currency) (*models.MerchantBalance, error)
	UpdateBalanceGuarded(ctx context.Context, balance *models.MerchantBalance, previousVersion int64) error

	CreateTopUp(ctx context.Context, topUp *models.TopUp) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a wallet repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateWallet(ctx context.Context, wallet *models.MerchantWallet) error {
	return r.db.WithContext(ctx).Create(wallet).Error
}

func (r *repository) FindWallet(ctx context.Context, id uuid.UUID) (*models.MerchantWallet, error) {
	var wallet models.MerchantWallet
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wallet, nil
}

// FindWalletForUpdate takes a row lock; call inside a transaction.
func (r *repository) FindWalletForUpdate(ctx context.Context, id uuid.UUID) (*models.MerchantWallet, error) {
	var wallet models.MerchantWallet
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) FindWalletByOwner(ctx context.Context, merchantID uuid.UUID, currency enums.Currency, walletType enums.WalletType) (*models.MerchantWallet, error) {
	var wallet models.MerchantWallet
	err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND currency = ? AND type = ?", merchantID, currency, walletType).
		First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wallet, nil
}

// UpdateWalletGuarded writes the full mutated snapshot with a version guard.
func (r *repository) UpdateWalletGuarded(ctx context.Context, wallet *models.MerchantWallet, previousVersion int64) error {
	result := r.db.WithContext(ctx).
		Model(&models.MerchantWallet{}).
		Where("id = ? AND version = ?", wallet.ID, previousVersion).
		Updates(map[string]any{
			"status":                  wallet.Status,
			"available_balance":       wallet.AvailableBalance,
			"locked_balance":          wallet.LockedBalance,
			"total_spent":             wallet.TotalSpent,
			"daily_withdrawal_used":   wallet.DailyWithdrawalUsed,
			"monthly_withdrawal_used": wallet.MonthlyWithdrawalUsed,
			"usage_day_start":         wallet.UsageDayStart,
			"usage_month_start":       wallet.UsageMonthStart,
			"version":                 wallet.Version,
			"last_activity_at":        wallet.LastActivityAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

// ResetUsageWindows bulk-resets counters whose window has rolled over.
func (r *repository) ResetUsageWindows(ctx context.Context, dayStart, monthStart time.Time) (int64, error) {
	daily := r.db.WithContext(ctx).
		Model(&models.MerchantWallet{}).
		Where("usage_day_start < ?", dayStart).
		Updates(map[string]any{
			"daily_withdrawal_used": 0,
			"usage_day_start":       dayStart,
			"version":               gorm.Expr("version + 1"),
		})
	if daily.Error != nil {
		return 0, daily.Error
	}
	monthly := r.db.WithContext(ctx).
		Model(&models.MerchantWallet{}).
		Where("usage_month_start < ?", monthStart).
		Updates(map[string]any{
			"monthly_withdrawal_used": 0,
			"usage_month_start":       monthStart,
			"version":                 gorm.Expr("version + 1"),
		})
	if monthly.Error != nil {
		return 0, monthly.Error
	}
	return daily.RowsAffected + monthly.RowsAffected, nil
}

func (r *repository) FindOrCreateBalance(ctx context.Context, merchantID uuid.UUID, currency enums.Currency) (*models.MerchantBalance, error) {
	var balance models.MerchantBalance
	err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND currency = ?", merchantID, currency).
		First(&balance).Error
	if err == nil {
		return &balance, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	balance = models.MerchantBalance{
		ID:         uuid.New(),
		MerchantID: merchantID,
		Currency:   currency,
	}
	if err := r.db.WithContext(ctx).Create(&balance).Error; err != nil {
		return nil, err
	}
	return &balance, nil
}

func (r *repository) FindBalanceForUpdate(ctx context.Context, merchantID uuid.UUID, currency enums.Currency) (*models.MerchantBalance, error) {
	var balance models.MerchantBalance
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("merchant_id = ? AND currency = ?", merchantID, currency).
		First(&balance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &balance, nil
}

func (r *repository) UpdateBalanceGuarded(ctx context.Context, balance *models.MerchantBalance, previousVersion int64) error {
	result := r.db.WithContext(ctx).
		Model(&models.MerchantBalance{}).
		Where("id = ? AND version = ?", balance.ID, previousVersion).
		Updates(map[string]any{
			"available_amount": balance.AvailableAmount,
			"pending_amount":   balance.PendingAmount,
			"reserved_amount":  balance.ReservedAmount,
			"total_volume":     balance.TotalVolume,
			"version":          balance.Version,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (r *repository) CreateTopUp(ctx context.Context, topUp *models.TopUp) error {
	return r.db.WithContext(ctx).Create(topUp).Error
}
