package disbursement

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/meridianpay/meridian-backend/pkg/db/models"
	"github.com/meridianpay/meridian-backend/pkg/enums"
)

// Repository persists disbursements and their batches. Status moves only
// through guarded updates so two workers can never drive the same row through
// a terminal edge twice.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, d *models.Disbursement) error
	Find(ctx context.Context, id uuid.UUID) (*models.Disbursement, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*models.Disbursement, error)
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]models.Disbursement, error)
	Transition(ctx context.Context, id uuid.UUID, from []enums.DisbursementStatus, to enums.DisbursementStatus, updates map[string]any) (bool, error)
	Requeue(ctx context.Context, id uuid.UUID, nextAttemptAt time.Time) (bool, error)
	RequeueStale(ctx context.Context, cutoff time.Time) (int64, error)
	ListTerminalUnreleased(ctx context.Context, limit int) ([]models.Disbursement, error)
	MarkHoldReleased(ctx context.Context, id uuid.UUID) (bool, error)
	SetGatewayReference(ctx context.Context, id uuid.UUID, reference string) error
	SetLedgerTx(ctx context.Context, id uuid.UUID, ledgerTxID uuid.UUID) error

	CreateBatch(ctx context.Context, batch *models.DisbursementBatch) error
	FindBatch(ctx context.Context, id uuid.UUID) (*models.DisbursementBatch, error)
	AttachToBatch(ctx context.Context, batchID uuid.UUID, heldAmount int64) error
	BatchStatusCounts(ctx context.Context, batchID uuid.UUID) (map[enums.DisbursementStatus]int, error)
	ListOpenBatchIDs(ctx context.Context, limit int) ([]uuid.UUID, error)
	UpdateBatch(ctx context.Context, batchID uuid.UUID, updates map[string]any) error
	ListByBatch(ctx context.Context, batchID uuid.UUID) ([]models.Disbursement, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a disbursement repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, d *models.Disbursement) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *repository) Find(ctx context.Context, id uuid.UUID) (*models.Disbursement, error) {
	var d models.Disbursement
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&d).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

func (r *repository) FindByIdempotencyKey(ctx context.Context, key string) (*models.Disbursement, error) {
	var d models.Disbursement
	err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&d).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

// ClaimDue returns pending rows whose retry delay has elapsed, oldest first.
// Callers must still win the pending -> processing transition before working a
// row; two pollers may see the same candidate.
func (r *repository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]models.Disbursement, error) {
	var rows []models.Disbursement
	err := r.db.WithContext(ctx).
		Where("status = ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)", enums.DisbursementStatusPending, now).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Transition moves the row to the target status only if it is currently in one
// of the allowed source statuses. The boolean reports whether this caller won
// the edge.
func (r *repository) Transition(ctx context.Context, id uuid.UUID, from []enums.DisbursementStatus, to enums.DisbursementStatus, updates map[string]any) (bool, error) {
	if updates == nil {
		updates = map[string]any{}
	}
	updates["status"] = to
	res := r.db.WithContext(ctx).
		Model(&models.Disbursement{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Requeue returns an in-flight row to the queue for another attempt. The
// gateway idempotency key makes resubmission of an already accepted transfer
// safe.
func (r *repository) Requeue(ctx context.Context, id uuid.UUID, nextAttemptAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Disbursement{}).
		Where("id = ? AND status IN ?", id, []enums.DisbursementStatus{
			enums.DisbursementStatusProcessing,
			enums.DisbursementStatusSending,
		}).
		Updates(map[string]any{
			"status":          enums.DisbursementStatusPending,
			"next_attempt_at": nextAttemptAt,
			"processing_at":   nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RequeueStale rescues rows a crashed worker left mid-flight.
func (r *repository) RequeueStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Disbursement{}).
		Where("status IN ? AND processing_at < ?", []enums.DisbursementStatus{
			enums.DisbursementStatusProcessing,
			enums.DisbursementStatusSending,
		}, cutoff).
		Updates(map[string]any{
			"status":        enums.DisbursementStatusPending,
			"processing_at": nil,
		})
	return res.RowsAffected, res.Error
}

// ListTerminalUnreleased finds failed and cancelled rows whose hold never
// came back. Completed rows never match: their hold is consumed, not released.
func (r *repository) ListTerminalUnreleased(ctx context.Context, limit int) ([]models.Disbursement, error) {
	var rows []models.Disbursement
	err := r.db.WithContext(ctx).
		Where("status IN ? AND hold_released = ?", []enums.DisbursementStatus{
			enums.DisbursementStatusFailed,
			enums.DisbursementStatusCancelled,
		}, false).
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkHoldReleased flips the release flag at most once. The winner is the only
// caller allowed to move the held funds back to the wallet.
func (r *repository) MarkHoldReleased(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Disbursement{}).
		Where("id = ? AND hold_released = ?", id, false).
		Update("hold_released", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) SetGatewayReference(ctx context.Context, id uuid.UUID, reference string) error {
	return r.db.WithContext(ctx).
		Model(&models.Disbursement{}).
		Where("id = ?", id).
		Update("gateway_reference", reference).Error
}

func (r *repository) SetLedgerTx(ctx context.Context, id uuid.UUID, ledgerTxID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Disbursement{}).
		Where("id = ?", id).
		Update("ledger_tx_id", ledgerTxID).Error
}

func (r *repository) CreateBatch(ctx context.Context, batch *models.DisbursementBatch) error {
	return r.db.WithContext(ctx).Create(batch).Error
}

func (r *repository) FindBatch(ctx context.Context, id uuid.UUID) (*models.DisbursementBatch, error) {
	var batch models.DisbursementBatch
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&batch).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &batch, nil
}

func (r *repository) AttachToBatch(ctx context.Context, batchID uuid.UUID, heldAmount int64) error {
	return r.db.WithContext(ctx).
		Model(&models.DisbursementBatch{}).
		Where("id = ?", batchID).
		Updates(map[string]any{
			"total_count":  gorm.Expr("total_count + 1"),
			"total_amount": gorm.Expr("total_amount + ?", heldAmount),
		}).Error
}

func (r *repository) BatchStatusCounts(ctx context.Context, batchID uuid.UUID) (map[enums.DisbursementStatus]int, error) {
	type statusCount struct {
		Status enums.DisbursementStatus
		Count  int
	}
	var rows []statusCount
	err := r.db.WithContext(ctx).
		Model(&models.Disbursement{}).
		Select("status, COUNT(*) AS count").
		Where("batch_id = ?", batchID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[enums.DisbursementStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *repository) ListOpenBatchIDs(ctx context.Context, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.DisbursementBatch{}).
		Where("settled_at IS NULL AND total_count > 0").
		Order("created_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) UpdateBatch(ctx context.Context, batchID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.DisbursementBatch{}).
		Where("id = ?", batchID).
		Updates(updates).Error
}

func (r *repository) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]models.Disbursement, error) {
	var rows []models.Disbursement
	err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
