package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/meridianpay/meridian-backend/pkg/enums"
)

// LedgerEntry is one side of a balanced double-entry posting. Entries are
// append-only; nothing in the codebase updates or deletes them.
type LedgerEntry struct {
	ID            uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TransactionID uuid.UUID               `gorm:"column:transaction_id;type:uuid;not null;index"`
	MerchantID    uuid.UUID               `gorm:"column:merchant_id;type:uuid;not null;index"`
	AccountType   enums.AccountType       `gorm:"column:account_type;type:account_type_enum;not null"`
	AccountName   string                  `gorm:"column:account_name;not null"`
	EntryType     enums.EntryType         `gorm:"column:entry_type;type:entry_type_enum;not null"`
	AmountMinor   int64                   `gorm:"column:amount_minor;not null"`
	Currency      enums.Currency          `gorm:"column:currency;type:varchar(3);not null"`
	RelatedType   enums.RelatedEntityType `gorm:"column:related_type;type:related_entity_type_enum;not null"`
	RelatedID     uuid.UUID               `gorm:"column:related_id;type:uuid;not null"`
	Description   *string                 `gorm:"column:description"`
	CreatedAt     time.Time               `gorm:"column:created_at;autoCreateTime"`
}
