package enums

import "fmt"

// RelatedEntityType is the closed set of business entities a ledger entry or
// webhook delivery may reference.
type RelatedEntityType string

const (
	RelatedEntityTypeCharge       RelatedEntityType = "charge"
	RelatedEntityTypeDisbursement RelatedEntityType = "disbursement"
	RelatedEntityTypeRefund       RelatedEntityType = "refund"
	RelatedEntityTypeTopUp        RelatedEntityType = "top_up"
)

var validRelatedEntityTypes = []RelatedEntityType{
	RelatedEntityTypeCharge,
	RelatedEntityTypeDisbursement,
	RelatedEntityTypeRefund,
	RelatedEntityTypeTopUp,
}

// IsValid reports whether the value matches the canonical related entity enum.
func (t RelatedEntityType) IsValid() bool {
	for _, candidate := range validRelatedEntityTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseRelatedEntityType converts raw input into RelatedEntityType.
func ParseRelatedEntityType(value string) (RelatedEntityType, error) {
	for _, candidate := range validRelatedEntityTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid related entity type %q", value)
}
