package enums

import "fmt"

// EarningStatus maps to the earning_status_enum enum in Postgres.
type EarningStatus string

const (
	EarningStatusPending           EarningStatus = "pending"
	EarningStatusSettled           EarningStatus = "settled"
	EarningStatusRefunded          EarningStatus = "refunded"
	EarningStatusPartiallyRefunded EarningStatus = "partially_refunded"
)

var validEarningStatuses = []EarningStatus{
	EarningStatusPending,
	EarningStatusSettled,
	EarningStatusRefunded,
	EarningStatusPartiallyRefunded,
}

// IsValid reports whether the value matches the canonical earning status enum.
func (s EarningStatus) IsValid() bool {
	for _, candidate := range validEarningStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseEarningStatus converts raw input into EarningStatus.
func ParseEarningStatus(value string) (EarningStatus, error) {
	for _, candidate := range validEarningStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid earning status %q", value)
}
