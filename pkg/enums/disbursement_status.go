package enums

import "fmt"

// DisbursementStatus maps to the disbursement_status_enum enum in Postgres.
type DisbursementStatus string

const (
	DisbursementStatusPending    DisbursementStatus = "pending"
	DisbursementStatusProcessing DisbursementStatus = "processing"
	DisbursementStatusSending    DisbursementStatus = "sending"
	DisbursementStatusCompleted  DisbursementStatus = "completed"
	DisbursementStatusFailed     DisbursementStatus = "failed"
	DisbursementStatusCancelled  DisbursementStatus = "cancelled"
)

var validDisbursementStatuses = []DisbursementStatus{
	DisbursementStatusPending,
	DisbursementStatusProcessing,
	DisbursementStatusSending,
	DisbursementStatusCompleted,
	DisbursementStatusFailed,
	DisbursementStatusCancelled,
}

// IsTerminal reports whether the status ends the settlement lifecycle.
func (s DisbursementStatus) IsTerminal() bool {
	switch s {
	case DisbursementStatusCompleted, DisbursementStatusFailed, DisbursementStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo enforces the settlement state machine. Cancellation is only
// reachable from pending; once processing starts the disbursement must run to
// completed or failed.
func (s DisbursementStatus) CanTransitionTo(next DisbursementStatus) bool {
	switch s {
	case DisbursementStatusPending:
		return next == DisbursementStatusProcessing || next == DisbursementStatusCancelled
	case DisbursementStatusProcessing:
		return next == DisbursementStatusSending || next == DisbursementStatusFailed
	case DisbursementStatusSending:
		return next == DisbursementStatusCompleted || next == DisbursementStatusFailed
	default:
		return false
	}
}

// IsValid reports whether the value matches the canonical disbursement status enum.
func (s DisbursementStatus) IsValid() bool {
	for _, candidate := range validDisbursementStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseDisbursementStatus converts raw input into DisbursementStatus.
func ParseDisbursementStatus(value string) (DisbursementStatus, error) {
	for _, candidate := range validDisbursementStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid disbursement status %q", value)
}

// BatchStatus is the derived status of a disbursement batch.
type BatchStatus string

const (
	BatchStatusProcessing         BatchStatus = "processing"
	BatchStatusCompleted          BatchStatus = "completed"
	BatchStatusFailed             BatchStatus = "failed"
	BatchStatusPartiallyCompleted BatchStatus = "partially_completed"
)

var validBatchStatuses = []BatchStatus{
	BatchStatusProcessing,
	BatchStatusCompleted,
	BatchStatusFailed,
	BatchStatusPartiallyCompleted,
}

// IsValid reports whether the value matches the canonical batch status enum.
func (s BatchStatus) IsValid() bool {
	for _, candidate := range validBatchStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}
