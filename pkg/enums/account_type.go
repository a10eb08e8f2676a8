package enums

import "fmt"

// AccountType classifies ledger accounts by their double-entry class.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeFee       AccountType = "fee"
	AccountTypeFXGain    AccountType = "fx_gain"
	AccountTypeFXLoss    AccountType = "fx_loss"
)

var validAccountTypes = []AccountType{
	AccountTypeAsset,
	AccountTypeLiability,
	AccountTypeRevenue,
	AccountTypeFee,
	AccountTypeFXGain,
	AccountTypeFXLoss,
}

// NormalSide reports the entry side that increases the account balance.
// Asset, fee, and fx_loss accounts are debit-normal; liability, revenue,
// and fx_gain accounts are credit-normal.
func (t AccountType) NormalSide() EntryType {
	switch t {
	case AccountTypeAsset, AccountTypeFee, AccountTypeFXLoss:
		return EntryTypeDebit
	default:
		return EntryTypeCredit
	}
}

// IsValid reports whether the value matches the canonical account type enum.
func (t AccountType) IsValid() bool {
	for _, candidate := range validAccountTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseAccountType converts raw input into AccountType.
func ParseAccountType(value string) (AccountType, error) {
	for _, candidate := range validAccountTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid account type %q", value)
}
