package wallet

import (
	"fmt"
	"time"

	"github.com/meridianpay/meridian-backend/pkg/db/models"
	"github.com/meridianpay/meridian-backend/pkg/enums"
	apperrors "github.com/meridianpay/meridian-backend/pkg/errors"
)

// The functions in this file are pure state transitions on a wallet snapshot.
// They never touch persistence; the service layer is responsible for loading
// the row under a lock and writing the mutated snapshot back with a version
// guard.

// Credit adds funds to the available balance. Allowed on frozen wallets;
// freezing blocks spending, not receiving.
func Credit(w *models.MerchantWallet, amount int64, now time.Time) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	if !w.Status.CanCredit() {
		return walletInactive(w)
	}
	w.AvailableBalance += amount
	touch(w, now)
	return nil
}

// Debit removes funds from the available balance, respecting the minimum
// balance floor.
func Debit(w *models.MerchantWallet, amount int64, now time.Time) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	if !w.Status.CanDebit() {
		return walletInactive(w)
	}
	if err := requireSpendable(w, amount); err != nil {
		return err
	}
	w.AvailableBalance -= amount
	w.TotalSpent += amount
	touch(w, now)
	return nil
}

// Hold moves funds from available to locked pending a definite outcome.
func Hold(w *models.MerchantWallet, amount int64, now time.Time) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	if !w.Status.CanDebit() {
		return walletInactive(w)
	}
	if err := requireSpendable(w, amount); err != nil {
		return err
	}
	w.AvailableBalance -= amount
	w.LockedBalance += amount
	touch(w, now)
	return nil
}

// Release moves held funds back to available. It is a compensation step, so it
// works regardless of wallet status as long as the hold exists.
func Release(w *models.MerchantWallet, amount int64, now time.Time) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	if w.LockedBalance < amount {
		return apperrors.New(
			apperrors.CodeStateConflict,
			fmt.Sprintf("cannot release %d, only %d locked", amount, w.LockedBalance),
		)
	}
	w.LockedBalance -= amount
	w.AvailableBalance += amount
	touch(w, now)
	return nil
}

// CompleteHold consumes held funds permanently.
func CompleteHold(w *models.MerchantWallet, amount int64, now time.Time) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	if w.LockedBalance < amount {
		return apperrors.New(
			apperrors.CodeStateConflict,
			fmt.Sprintf("cannot complete hold of %d, only %d locked", amount, w.LockedBalance),
		)
	}
	w.LockedBalance -= amount
	w.TotalSpent += amount
	touch(w, now)
	return nil
}

// RecordTopUp credits externally arriving funds.
func RecordTopUp(w *models.MerchantWallet, amount int64, now time.Time) error {
	return Credit(w, amount, now)
}

// CheckWithdrawalLimit verifies the amount fits in the remaining daily and
// monthly allowance. A zero limit means unlimited. Usage windows are rolled
// forward first so stale counters never block a withdrawal.
func CheckWithdrawalLimit(w *models.MerchantWallet, amount int64, now time.Time) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	rollUsageWindows(w, now)
	if w.DailyWithdrawalLimit > 0 && w.DailyWithdrawalUsed+amount > w.DailyWithdrawalLimit {
		return apperrors.New(
			apperrors.CodeLimitExceeded,
			fmt.Sprintf("daily withdrawal limit exceeded: used %d of %d, requested %d",
				w.DailyWithdrawalUsed, w.DailyWithdrawalLimit, amount),
		)
	}
	if w.MonthlyWithdrawalLimit > 0 && w.MonthlyWithdrawalUsed+amount > w.MonthlyWithdrawalLimit {
		return apperrors.New(
			apperrors.CodeLimitExceeded,
			fmt.Sprintf("monthly withdrawal limit exceeded: used %d of %d, requested %d",
				w.MonthlyWithdrawalUsed, w.MonthlyWithdrawalLimit, amount),
		)
	}
	return nil
}

// ApplyWithdrawalUsage records consumed allowance. Called only after the
// debit or hold actually succeeded.
func ApplyWithdrawalUsage(w *models.MerchantWallet, amount int64, now time.Time) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	rollUsageWindows(w, now)
	w.DailyWithdrawalUsed += amount
	w.MonthlyWithdrawalUsed += amount
	touch(w, now)
	return nil
}

// Freeze blocks debits and holds while still accepting credits.
func Freeze(w *models.MerchantWallet, now time.Time) error {
	return setStatus(w, enums.WalletStatusFrozen, now)
}

// Suspend blocks all movement.
func Suspend(w *models.MerchantWallet, now time.Time) error {
	return setStatus(w, enums.WalletStatusSuspended, now)
}

// Close permanently retires the wallet. Requires zero balances.
func Close(w *models.MerchantWallet, now time.Time) error {
	if w.AvailableBalance != 0 || w.LockedBalance != 0 {
		return apperrors.New(apperrors.CodeStateConflict, "wallet must be empty before closing")
	}
	return setStatus(w, enums.WalletStatusClosed, now)
}

// Activate returns a frozen or suspended wallet to service.
func Activate(w *models.MerchantWallet, now time.Time) error {
	return setStatus(w, enums.WalletStatusActive, now)
}

func setStatus(w *models.MerchantWallet, status enums.WalletStatus, now time.Time) error {
	if w.Status == enums.WalletStatusClosed {
		return apperrors.New(apperrors.CodeStateConflict, "closed wallets cannot change status")
	}
	if w.Status == status {
		return nil
	}
	w.Status = status
	touch(w, now)
	return nil
}

// rollUsageWindows zeroes counters whose window has passed.
func rollUsageWindows(w *models.MerchantWallet, now time.Time) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if w.UsageDayStart.Before(dayStart) {
		w.DailyWithdrawalUsed = 0
		w.UsageDayStart = dayStart
	}
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	if w.UsageMonthStart.Before(monthStart) {
		w.MonthlyWithdrawalUsed = 0
		w.UsageMonthStart = monthStart
	}
}

func requirePositive(amount int64) error {
	if amount <= 0 {
		return apperrors.New(apperrors.CodeValidation, "amount must be positive")
	}
	return nil
}

func requireSpendable(w *models.MerchantWallet, amount int64) error {
	if w.AvailableBalance-w.MinimumBalance < amount {
		return apperrors.New(
			apperrors.CodeInsufficientFunds,
			fmt.Sprintf("available %d minus minimum %d cannot cover %d",
				w.AvailableBalance, w.MinimumBalance, amount),
		)
	}
	return nil
}

func walletInactive(w *models.MerchantWallet) error {
	return apperrors.New(
		apperrors.CodeWalletInactive,
		fmt.Sprintf("wallet %s is %s", w.ID, w.Status),
	)
}

func touch(w *models.MerchantWallet, now time.Time) {
	t := now
	w.LastActivityAt = &t
	w.Version++
}
