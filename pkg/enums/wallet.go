package enums

import "fmt"

// WalletType maps to the wallet_type_enum enum in Postgres.
type WalletType string

const (
	WalletTypeOperating WalletType = "operating"
	WalletTypePayout    WalletType = "payout"
	WalletTypeReserve   WalletType = "reserve"
)

var validWalletTypes = []WalletType{
	WalletTypeOperating,
	WalletTypePayout,
	WalletTypeReserve,
}

// IsValid reports whether the value matches the canonical wallet type enum.
func (t WalletType) IsValid() bool {
	for _, candidate := range validWalletTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseWalletType converts raw input into WalletType.
func ParseWalletType(value string) (WalletType, error) {
	for _, candidate := range validWalletTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet type %q", value)
}

// WalletStatus maps to the wallet_status_enum enum in Postgres.
type WalletStatus string

const (
	WalletStatusActive    WalletStatus = "active"
	WalletStatusFrozen    WalletStatus = "frozen"
	WalletStatusSuspended WalletStatus = "suspended"
	WalletStatusClosed    WalletStatus = "closed"
)

var validWalletStatuses = []WalletStatus{
	WalletStatusActive,
	WalletStatusFrozen,
	WalletStatusSuspended,
	WalletStatusClosed,
}

// CanDebit reports whether outbound movement (debits and holds) is allowed.
// Frozen, suspended, and closed wallets all block debits; only frozen wallets
// still accept credits.
func (s WalletStatus) CanDebit() bool {
	return s == WalletStatusActive
}

// CanCredit reports whether inbound movement is allowed.
func (s WalletStatus) CanCredit() bool {
	return s == WalletStatusActive || s == WalletStatusFrozen
}

// IsValid reports whether the value matches the canonical wallet status enum.
func (s WalletStatus) IsValid() bool {
	for _, candidate := range validWalletStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseWalletStatus converts raw input into WalletStatus.
func ParseWalletStatus(value string) (WalletStatus, error) {
	for _, candidate := range validWalletStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet status %q", value)
}
