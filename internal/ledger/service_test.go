package ledger

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	dbpkg "github.com/meridianpay/meridian-backend/pkg/db"
	"github.com/meridianpay/meridian-backend/pkg/enums"
	apperrors "github.com/meridianpay/meridian-backend/pkg/errors"
)

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	ledgerEntries := `
CREATE TABLE IF NOT EXISTS ledger_entries (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
  transaction_id TEXT NOT NULL,
  merchant_id TEXT NOT NULL,
  account_type TEXT NOT NULL,
  account_name TEXT NOT NULL,
  entry_type TEXT NOT NULL,
  amount_minor INTEGER NOT NULL,
  currency TEXT NOT NULL,
  related_type TEXT NOT NULL,
  related_id TEXT NOT NULL,
  description TEXT,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(ledgerEntries).Error)
	return db
}

func newLedgerService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		DB:   dbpkg.NewWithConn(db),
		Repo: NewRepository(db),
	})
	require.NoError(t, err)
	return svc
}

func balancedInput(merchantID uuid.UUID) PostTransactionInput {
	return PostTransactionInput{
		MerchantID: merchantID,
		Related: RelatedRef{
			Type: enums.RelatedEntityTypeDisbursement,
			ID:   uuid.New(),
		},
		Entries: []EntryInput{
			{
				AccountType: enums.AccountTypeAsset,
				AccountName: "merchant_payout_wallet",
				EntryType:   enums.EntryTypeCredit,
				AmountMinor: 50_500,
				Currency:    enums.CurrencyUSD,
			},
			{
				AccountType: enums.AccountTypeLiability,
				AccountName: "gateway_payable",
				EntryType:   enums.EntryTypeDebit,
				AmountMinor: 50_000,
				Currency:    enums.CurrencyUSD,
			},
			{
				AccountType: enums.AccountTypeRevenue,
				AccountName: "disbursement_fees",
				EntryType:   enums.EntryTypeDebit,
				AmountMinor: 500,
				Currency:    enums.CurrencyUSD,
			},
		},
	}
}

func TestPostTransactionPersistsBalancedEntries(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc := newLedgerService(t, db)
	merchantID := uuid.New()

	entries, err := svc.PostTransaction(context.Background(), balancedInput(merchantID))
	require.NoError(t, err)
	require.Len(t, entries, 3)

	txID := entries[0].TransactionID
	require.NotEqual(t, uuid.Nil, txID)
	var debits, credits int64
	for _, entry := range entries {
		assert.Equal(t, txID, entry.TransactionID)
		assert.Equal(t, merchantID, entry.MerchantID)
		switch entry.EntryType {
		case enums.EntryTypeDebit:
			debits += entry.AmountMinor
		case enums.EntryTypeCredit:
			credits += entry.AmountMinor
		}
	}
	assert.Equal(t, debits, credits)

	var count int64
	require.NoError(t, db.Table("ledger_entries").Count(&count).Error)
	assert.EqualValues(t, 3, count)
}

func TestPostTransactionRejectsImbalance(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc := newLedgerService(t, db)

	input := balancedInput(uuid.New())
	input.Entries[0].AmountMinor = 50_501

	_, err := svc.PostTransaction(context.Background(), input)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeImbalanced))

	var count int64
	require.NoError(t, db.Table("ledger_entries").Count(&count).Error)
	assert.EqualValues(t, 0, count, "nothing may persist on imbalance")
}

func TestPostTransactionBalancesPerCurrency(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc := newLedgerService(t, db)

	input := balancedInput(uuid.New())
	// Balanced in total but imbalanced per currency.
	input.Entries[1].Currency = enums.CurrencyEUR

	_, err := svc.PostTransaction(context.Background(), input)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeImbalanced))
}

func TestPostTransactionValidation(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc := newLedgerService(t, db)

	tests := []struct {
		name   string
		mutate func(*PostTransactionInput)
	}{
		{name: "missing merchant", mutate: func(in *PostTransactionInput) { in.MerchantID = uuid.Nil }},
		{name: "bad related type", mutate: func(in *PostTransactionInput) { in.Related.Type = "invoice" }},
		{name: "single entry", mutate: func(in *PostTransactionInput) { in.Entries = in.Entries[:1] }},
		{name: "zero amount", mutate: func(in *PostTransactionInput) { in.Entries[0].AmountMinor = 0 }},
		{name: "negative amount", mutate: func(in *PostTransactionInput) { in.Entries[0].AmountMinor = -5 }},
		{name: "bad currency", mutate: func(in *PostTransactionInput) { in.Entries[0].Currency = "XXX" }},
		{name: "empty account name", mutate: func(in *PostTransactionInput) { in.Entries[0].AccountName = "" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			input := balancedInput(uuid.New())
			tc.mutate(&input)
			_, err := svc.PostTransaction(context.Background(), input)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
		})
	}
}

func TestAccountBalanceSignConvention(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc := newLedgerService(t, db)
	merchantID := uuid.New()

	_, err := svc.PostTransaction(context.Background(), balancedInput(merchantID))
	require.NoError(t, err)

	// Asset account is debit-normal: credits push it negative.
	assetBalance, err := svc.AccountBalance(context.Background(), merchantID, enums.AccountTypeAsset, "merchant_payout_wallet", enums.CurrencyUSD)
	require.NoError(t, err)
	assert.EqualValues(t, -50_500, assetBalance)

	// Revenue is credit-normal: debits push it negative.
	revenueBalance, err := svc.AccountBalance(context.Background(), merchantID, enums.AccountTypeRevenue, "disbursement_fees", enums.CurrencyUSD)
	require.NoError(t, err)
	assert.EqualValues(t, -500, revenueBalance)
}

func TestReverseTransactionMirrorsEntries(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc := newLedgerService(t, db)
	merchantID := uuid.New()

	originals, err := svc.PostTransaction(context.Background(), balancedInput(merchantID))
	require.NoError(t, err)
	txID := originals[0].TransactionID

	reversed, err := svc.ReverseTransaction(context.Background(), txID, "gateway failure")
	require.NoError(t, err)
	require.Len(t, reversed, len(originals))
	require.NotEqual(t, txID, reversed[0].TransactionID)

	for i, entry := range reversed {
		assert.Equal(t, originals[i].AccountType, entry.AccountType)
		assert.Equal(t, originals[i].AccountName, entry.AccountName)
		assert.Equal(t, originals[i].AmountMinor, entry.AmountMinor)
		assert.NotEqual(t, originals[i].EntryType, entry.EntryType)
		require.NotNil(t, entry.Description)
		assert.Contains(t, *entry.Description, "gateway failure")
	}

	// Reversal nets every account back to zero.
	balance, err := svc.AccountBalance(context.Background(), merchantID, enums.AccountTypeAsset, "merchant_payout_wallet", enums.CurrencyUSD)
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestReverseTransactionUnknownID(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc := newLedgerService(t, db)

	_, err := svc.ReverseTransaction(context.Background(), uuid.New(), "")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}
