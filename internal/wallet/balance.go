package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/meridianpay/meridian-backend/pkg/db/models"
	"github.com/meridianpay/meridian-backend/pkg/enums"
	apperrors "github.com/meridianpay/meridian-backend/pkg/errors"
)

// Balance returns the merchant's aggregate position for a currency, creating
// the zero row on first touch.
func (s *Service) Balance(ctx context.Context, merchantID uuid.UUID, currency enums.Currency) (*models.MerchantBalance, error) {
	if merchantID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "merchant id is required")
	}
	if !currency.IsValid() {
		return nil, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("invalid currency %q", currency))
	}
	balance, err := s.repo.FindOrCreateBalance(ctx, merchantID, currency)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "load merchant balance")
	}
	return balance, nil
}

// ApplyCharge records incoming charge volume: funds land as pending and the
// lifetime volume counter grows.
func (s *Service) ApplyCharge(ctx context.Context, merchantID uuid.UUID, currency enums.Currency, amount int64) (*models.MerchantBalance, error) {
	return s.mutateBalance(ctx, merchantID, currency, func(b *models.MerchantBalance) error {
		b.PendingAmount += amount
		b.TotalVolume += amount
		return nil
	}, amount)
}

// SettlePending moves cleared funds from pending to available.
func (s *Service) SettlePending(ctx context.Context, merchantID uuid.UUID, currency enums.Currency, amount int64) (*models.MerchantBalance, error) {
	return s.mutateBalance(ctx, merchantID, currency, func(b *models.MerchantBalance) error {
		if b.PendingAmount < amount {
			return apperrors.New(apperrors.CodeStateConflict,
				fmt.Sprintf("cannot settle %d, only %d pending", amount, b.PendingAmount))
		}
		b.PendingAmount -= amount
		b.AvailableAmount += amount
		return nil
	}, amount)
}

// Reserve parks available funds for risk or compliance review.
func (s *Service) Reserve(ctx context.Context, merchantID uuid.UUID, currency enums.Currency, amount int64) (*models.MerchantBalance, error) {
	return s.mutateBalance(ctx, merchantID, currency, func(b *models.MerchantBalance) error {
		if b.AvailableAmount < amount {
			return apperrors.New(apperrors.CodeInsufficientFunds,
				fmt.Sprintf("cannot reserve %d, only %d available", amount, b.AvailableAmount))
		}
		b.AvailableAmount -= amount
		b.ReservedAmount += amount
		return nil
	}, amount)
}

// ReleaseReserve returns reserved funds to the available pool.
func (s *Service) ReleaseReserve(ctx context.Context, merchantID uuid.UUID, currency enums.Currency, amount int64) (*models.MerchantBalance, error) {
	return s.mutateBalance(ctx, merchantID, currency, func(b *models.MerchantBalance) error {
		if b.ReservedAmount < amount {
			return apperrors.New(apperrors.CodeStateConflict,
				fmt.Sprintf("cannot release %d, only %d reserved", amount, b.ReservedAmount))
		}
		b.ReservedAmount -= amount
		b.AvailableAmount += amount
		return nil
	}, amount)
}

func (s *Service) mutateBalance(ctx context.Context, merchantID uuid.UUID, currency enums.Currency, fn func(*models.MerchantBalance) error, amount int64) (*models.MerchantBalance, error) {
	if merchantID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "merchant id is required")
	}
	if !currency.IsValid() {
		return nil, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("invalid currency %q", currency))
	}
	if amount <= 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "amount must be positive")
	}

	var lastErr error
	for attempt := 0; attempt < s.retries; attempt++ {
		var mutated *models.MerchantBalance
		err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			balance, err := repo.FindBalanceForUpdate(ctx, merchantID, currency)
			if err != nil {
				return apperrors.Wrap(apperrors.CodeDependency, err, "lock merchant balance")
			}
			if balance == nil {
				balance, err = repo.FindOrCreateBalance(ctx, merchantID, currency)
				if err != nil {
					return apperrors.Wrap(apperrors.CodeDependency, err, "create merchant balance")
				}
			}
			previousVersion := balance.Version
			if err := fn(balance); err != nil {
				return err
			}
			balance.Version++
			if err := repo.UpdateBalanceGuarded(ctx, balance, previousVersion); err != nil {
				return err
			}
			mutated = balance
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
	return nil, apperrors.Wrap(apperrors.CodeConflict, lastErr, "balance mutation kept losing the version race")
}
