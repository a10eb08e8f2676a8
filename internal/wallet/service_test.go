package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/meridianpay/meridian-backend/internal/ledger"
	dbpkg "github.com/meridianpay/meridian-backend/pkg/db"
	"github.com/meridianpay/meridian-backend/pkg/db/models"
	"github.com/meridianpay/meridian-backend/pkg/enums"
	apperrors "github.com/meridianpay/meridian-backend/pkg/errors"
	"github.com/meridianpay/meridian-backend/pkg/outbox/payloads"
)

// fakeRepo keeps wallets in memory and enforces the same version guard the
// real repository does. Row locking cannot run on sqlite, so service tests
// exercise the mutation loop against this fake instead.
type fakeRepo struct {
	mu      sync.Mutex
	wallets map[uuid.UUID]*models.MerchantWallet
	topUps  []*models.TopUp

	// conflictReads injects a competing writer: after each locked read the
	// stored version is bumped so the guarded update loses the race.
	conflictReads int
}

func newFakeRepo(wallets ...*models.MerchantWallet) *fakeRepo {
	r := &fakeRepo{wallets: make(map[uuid.UUID]*models.MerchantWallet)}
	for _, w := range wallets {
		r.wallets[w.ID] = w
	}
	return r
}

func (r *fakeRepo) WithTx(tx *gorm.DB) Repository { return r }

func (r *fakeRepo) CreateWallet(ctx context.Context, wallet *models.MerchantWallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *wallet
	r.wallets[wallet.ID] = &copied
	return nil
}

func (r *fakeRepo) FindWallet(ctx context.Context, id uuid.UUID) (*models.MerchantWallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[id]
	if !ok {
		return nil, nil
	}
	copied := *w
	return &copied, nil
}

func (r *fakeRepo) FindWalletForUpdate(ctx context.Context, id uuid.UUID) (*models.MerchantWallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[id]
	if !ok {
		return nil, nil
	}
	copied := *w
	if r.conflictReads > 0 {
		r.conflictReads--
		w.Version++
	}
	return &copied, nil
}

func (r *fakeRepo) FindWalletByOwner(ctx context.Context, merchantID uuid.UUID, currency enums.Currency, walletType enums.WalletType) (*models.MerchantWallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.wallets {
		if w.MerchantID == merchantID && w.Currency == currency && w.Type == walletType {
			copied := *w
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) UpdateWalletGuarded(ctx context.Context, wallet *models.MerchantWallet, previousVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.wallets[wallet.ID]
	if !ok || stored.Version != previousVersion {
		return ErrVersionConflict
	}
	copied := *wallet
	r.wallets[wallet.ID] = &copied
	return nil
}

func (r *fakeRepo) ResetUsageWindows(ctx context.Context, dayStart, monthStart time.Time) (int64, error) {
	return 0, nil
}

func (r *fakeRepo) FindOrCreateBalance(ctx context.Context, merchantID uuid.UUID, currency enums.Currency) (*models.MerchantBalance, error) {
	return nil, nil
}

func (r *fakeRepo) FindBalanceForUpdate(ctx context.Context, merchantID uuid.UUID, currency enums.Currency) (*models.MerchantBalance, error) {
	return nil, nil
}

func (r *fakeRepo) UpdateBalanceGuarded(ctx context.Context, balance *models.MerchantBalance, previousVersion int64) error {
	return nil
}

func (r *fakeRepo) CreateTopUp(ctx context.Context, topUp *models.TopUp) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topUps = append(r.topUps, topUp)
	return nil
}

func (r *fakeRepo) stored(id uuid.UUID) *models.MerchantWallet {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *r.wallets[id]
	return &copied
}

// fakeLedger records postings without a database.
type fakeLedger struct {
	mu       sync.Mutex
	postings []ledger.PostTransactionInput
}

func (l *fakeLedger) PostTransaction(ctx context.Context, input ledger.PostTransactionInput) ([]models.LedgerEntry, error) {
	return l.PostTransactionTx(ctx, nil, input)
}

func (l *fakeLedger) PostTransactionTx(ctx context.Context, tx *gorm.DB, input ledger.PostTransactionInput) ([]models.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.postings = append(l.postings, input)
	return nil, nil
}

func (l *fakeLedger) AccountBalance(ctx context.Context, merchantID uuid.UUID, accountType enums.AccountType, accountName string, currency enums.Currency) (int64, error) {
	return 0, nil
}

func (l *fakeLedger) ReverseTransaction(ctx context.Context, transactionID uuid.UUID, reason string) ([]models.LedgerEntry, error) {
	return nil, nil
}

func setupWalletService(t *testing.T, repo Repository, led ledger.Service) *Service {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		DB:     dbpkg.NewWithConn(conn),
		Repo:   repo,
		Ledger: led,
		Clock:  func() time.Time { return testNow },
	})
	require.NoError(t, err)
	return svc
}

func TestServiceHoldAndCompleteHold(t *testing.T) {
	ctx := context.Background()
	w := testWallet()
	repo := newFakeRepo(w)
	led := &fakeLedger{}
	svc := setupWalletService(t, repo, led)

	held, err := svc.Hold(ctx, MovementInput{WalletID: w.ID, AmountMinor: 3000})
	require.NoError(t, err)
	assert.EqualValues(t, 7000, held.AvailableBalance)
	assert.EqualValues(t, 3000, held.LockedBalance)

	disbursementID := uuid.New()
	done, err := svc.CompleteHold(ctx, MovementInput{
		WalletID:    w.ID,
		AmountMinor: 3000,
		Related:     &ledger.RelatedRef{Type: enums.RelatedEntityTypeDisbursement, ID: disbursementID},
		Description: "disbursement settled",
	})
	require.NoError(t, err)
	assert.EqualValues(t, 7000, done.AvailableBalance)
	assert.EqualValues(t, 0, done.LockedBalance)
	assert.EqualValues(t, 3000, done.TotalSpent)

	stored := repo.stored(w.ID)
	assert.Equal(t, done.Version, stored.Version)

	require.Len(t, led.postings, 1)
	posting := led.postings[0]
	assert.Equal(t, enums.RelatedEntityTypeDisbursement, posting.Related.Type)
	assert.Equal(t, disbursementID, posting.Related.ID)
	require.Len(t, posting.Entries, 2)
	assert.Equal(t, enums.EntryTypeCredit, posting.Entries[0].EntryType, "consuming the hold drains the wallet asset")
	assert.Equal(t, "wallet:payout", posting.Entries[0].AccountName)
	assert.Equal(t, enums.EntryTypeDebit, posting.Entries[1].EntryType)
	assert.Equal(t, "merchant_funds_payable", posting.Entries[1].AccountName)
}

func TestServiceCreditAuditTrailMatchesSignConvention(t *testing.T) {
	ctx := context.Background()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, conn.Exec(`CREATE TABLE ledger_entries (
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
	)`).Error)

	led, err := ledger.NewService(ledger.ServiceParams{
		DB:   dbpkg.NewWithConn(conn),
		Repo: ledger.NewRepository(conn),
	})
	require.NoError(t, err)

	w := testWallet()
	repo := newFakeRepo(w)
	svc, err := NewService(ServiceParams{
		DB:     dbpkg.NewWithConn(conn),
		Repo:   repo,
		Ledger: led,
		Clock:  func() time.Time { return testNow },
	})
	require.NoError(t, err)

	_, err = svc.Credit(ctx, MovementInput{
		WalletID:    w.ID,
		AmountMinor: 10_000,
		Related:     &ledger.RelatedRef{Type: enums.RelatedEntityTypeTopUp, ID: uuid.New()},
	})
	require.NoError(t, err)

	// Money arriving grows both the wallet asset and the merchant's claim.
	asset, err := led.AccountBalance(ctx, w.MerchantID, enums.AccountTypeAsset, "wallet:payout", w.Currency)
	require.NoError(t, err)
	assert.EqualValues(t, 10_000, asset)

	payable, err := led.AccountBalance(ctx, w.MerchantID, enums.AccountTypeLiability, "merchant_funds_payable", w.Currency)
	require.NoError(t, err)
	assert.EqualValues(t, 10_000, payable)
}

func TestServiceRetriesVersionConflict(t *testing.T) {
	ctx := context.Background()
	w := testWallet()
	repo := newFakeRepo(w)
	repo.conflictReads = 2
	svc := setupWalletService(t, repo, nil)

	updated, err := svc.Credit(ctx, MovementInput{WalletID: w.ID, AmountMinor: 500})
	require.NoError(t, err)
	assert.EqualValues(t, 10_500, updated.AvailableBalance)
}

func TestServiceGivesUpAfterRetriesExhausted(t *testing.T) {
	ctx := context.Background()
	w := testWallet()
	repo := newFakeRepo(w)
	repo.conflictReads = 10
	svc := setupWalletService(t, repo, nil)

	_, err := svc.Credit(ctx, MovementInput{WalletID: w.ID, AmountMinor: 500})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
	assert.EqualValues(t, 10_000, repo.stored(w.ID).AvailableBalance)
}

func TestServiceConcurrentHoldReleaseConservesFunds(t *testing.T) {
	ctx := context.Background()
	w := testWallet()
	repo := newFakeRepo(w)

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	// Enough retries that version conflicts between the workers can never
	// exhaust an operation: each conflict means another worker committed.
	svc, err := NewService(ServiceParams{
		DB:      dbpkg.NewWithConn(conn),
		Repo:    repo,
		Clock:   func() time.Time { return testNow },
		Retries: 500,
	})
	require.NoError(t, err)

	const workers = 8
	const pairs = 25

	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < pairs; j++ {
				if _, err := svc.Hold(ctx, MovementInput{WalletID: w.ID, AmountMinor: 100}); err != nil {
					errCh <- err
					return
				}
				if _, err := svc.Release(ctx, MovementInput{WalletID: w.ID, AmountMinor: 100}); err != nil {
					errCh <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	stored := repo.stored(w.ID)
	assert.EqualValues(t, 10_000, stored.AvailableBalance+stored.LockedBalance,
		"hold and release pairs must conserve available plus locked")
	assert.EqualValues(t, 0, stored.LockedBalance)
	assert.EqualValues(t, int64(workers*pairs*100), stored.DailyWithdrawalUsed,
		"every hold records its allowance exactly once")
}

func TestServiceWalletNotFound(t *testing.T) {
	ctx := context.Background()
	svc := setupWalletService(t, newFakeRepo(), nil)

	_, err := svc.Debit(ctx, MovementInput{WalletID: uuid.New(), AmountMinor: 100})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestServiceNoWriteWhenNothingChanged(t *testing.T) {
	ctx := context.Background()
	w := testWallet()
	require.NoError(t, Freeze(w, testNow))
	repo := newFakeRepo(w)
	svc := setupWalletService(t, repo, nil)

	before := repo.stored(w.ID).Version
	frozen, err := svc.Freeze(ctx, w.ID, "compliance review")
	require.NoError(t, err)
	assert.Equal(t, before, frozen.Version, "freezing an already frozen wallet is a no-op")
}

func TestServiceRecordTopUp(t *testing.T) {
	ctx := context.Background()
	w := testWallet()
	repo := newFakeRepo(w)
	led := &fakeLedger{}
	svc := setupWalletService(t, repo, led)

	updated, err := svc.RecordTopUp(ctx, TopUpInput{WalletID: w.ID, AmountMinor: 25_000, Reference: "wire-20260310-001"})
	require.NoError(t, err)
	assert.EqualValues(t, 35_000, updated.AvailableBalance)

	require.Len(t, repo.topUps, 1)
	topUp := repo.topUps[0]
	assert.Equal(t, w.MerchantID, topUp.MerchantID)
	assert.EqualValues(t, 25_000, topUp.AmountMinor)
	require.NotNil(t, topUp.Reference)
	assert.Equal(t, "wire-20260310-001", *topUp.Reference)

	require.Len(t, led.postings, 1)
	assert.Equal(t, enums.RelatedEntityTypeTopUp, led.postings[0].Related.Type)
	assert.Equal(t, topUp.ID, led.postings[0].Related.ID)
}

func TestServiceDebitAppliesUsage(t *testing.T) {
	ctx := context.Background()
	w := testWallet()
	w.DailyWithdrawalLimit = 5000
	repo := newFakeRepo(w)
	svc := setupWalletService(t, repo, nil)

	_, err := svc.Debit(ctx, MovementInput{WalletID: w.ID, AmountMinor: 4000})
	require.NoError(t, err)
	assert.EqualValues(t, 4000, repo.stored(w.ID).DailyWithdrawalUsed)

	_, err = svc.Debit(ctx, MovementInput{WalletID: w.ID, AmountMinor: 2000})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeLimitExceeded))
	assert.EqualValues(t, 6000, repo.stored(w.ID).AvailableBalance)
}

func TestServiceCreateWalletDefaults(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := setupWalletService(t, repo, nil)

	wallet := &models.MerchantWallet{
		MerchantID: uuid.New(),
		Currency:   enums.CurrencyUSD,
		Type:       enums.WalletTypePayout,
	}
	require.NoError(t, svc.CreateWallet(ctx, wallet))
	require.NotEqual(t, uuid.Nil, wallet.ID)

	stored := repo.stored(wallet.ID)
	assert.Equal(t, enums.WalletStatusActive, stored.Status)
	assert.Equal(t, time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC), stored.UsageDayStart)
	assert.Equal(t, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), stored.UsageMonthStart)

	err := svc.CreateWallet(ctx, &models.MerchantWallet{MerchantID: uuid.New(), Currency: "XXX", Type: enums.WalletTypePayout})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

type fanoutCall struct {
	merchantID    uuid.UUID
	eventType     enums.WebhookEventType
	payload       json.RawMessage
	correlationID uuid.UUID
}

type fakeNotifier struct {
	calls []fanoutCall
}

func (n *fakeNotifier) Fanout(ctx context.Context, merchantID uuid.UUID, eventType enums.WebhookEventType, payload json.RawMessage, correlationID uuid.UUID) {
	n.calls = append(n.calls, fanoutCall{
		merchantID:    merchantID,
		eventType:     eventType,
		payload:       payload,
		correlationID: correlationID,
	})
}

func TestServiceRecordTopUpNotifiesEndpoints(t *testing.T) {
	ctx := context.Background()
	w := testWallet()
	repo := newFakeRepo(w)
	svc := setupWalletService(t, repo, nil)
	notifier := &fakeNotifier{}
	svc.webhooks = notifier

	_, err := svc.RecordTopUp(ctx, TopUpInput{WalletID: w.ID, AmountMinor: 25_000, Reference: "wire-20260310-002"})
	require.NoError(t, err)

	require.Len(t, notifier.calls, 1)
	call := notifier.calls[0]
	assert.Equal(t, w.MerchantID, call.merchantID)
	assert.Equal(t, enums.WebhookEventTopUpRecorded, call.eventType)

	var event payloads.WalletTopUpRecordedEvent
	require.NoError(t, json.Unmarshal(call.payload, &event))
	assert.Equal(t, w.ID, event.WalletID)
	assert.EqualValues(t, 25_000, event.Amount)
	assert.Equal(t, event.TopUpID, call.correlationID)

	// A rejected top-up must not notify anyone.
	_, err = svc.RecordTopUp(ctx, TopUpInput{WalletID: w.ID, AmountMinor: -1})
	require.Error(t, err)
	assert.Len(t, notifier.calls, 1)
}
