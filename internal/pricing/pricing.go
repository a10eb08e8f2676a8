package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/meridianpay/meridian-backend/pkg/config"
	apperrors "github.com/meridianpay/meridian-backend/pkg/errors"
)

// gatewayCostFactor estimates the rail's cut when no measured cost is
// configured. Override with MERIDIAN_PRICING_ACTUAL_GATEWAY_COST.
var gatewayCostFactor = decimal.RequireFromString("0.7")

// Config holds parsed pricing parameters. Amounts are minor units; only the
// rates are decimals, so no float ever touches money.
type Config struct {
	ProcessingRate    decimal.Decimal
	ProcessingFixed   int64
	MinFee            int64
	MaxFee            int64
	ApplicationRate   decimal.Decimal
	ApplicationFixed  int64
	ActualGatewayCost int64
}

// Breakdown is the fee split for one transaction, all in minor units.
type Breakdown struct {
	ProcessingFee        int64
	ApplicationFee       int64
	GatewayCost          int64
	ProcessingMargin     int64
	TotalPlatformRevenue int64
}

// FromAppConfig parses the string rates out of the environment configuration.
func FromAppConfig(cfg config.PricingConfig) (Config, error) {
	processingRate, err := decimal.NewFromString(cfg.ProcessingRate)
	if err != nil {
		return Config{}, fmt.Errorf("invalid processing rate %q: %w", cfg.ProcessingRate, err)
	}
	applicationRate, err := decimal.NewFromString(cfg.ApplicationRate)
	if err != nil {
		return Config{}, fmt.Errorf("invalid application rate %q: %w", cfg.ApplicationRate, err)
	}
	parsed := Config{
		ProcessingRate:    processingRate,
		ProcessingFixed:   cfg.ProcessingFixed,
		MinFee:            cfg.MinFee,
		MaxFee:            cfg.MaxFee,
		ApplicationRate:   applicationRate,
		ApplicationFixed:  cfg.ApplicationFixed,
		ActualGatewayCost: cfg.ActualGatewayCost,
	}
	if err := parsed.validate(); err != nil {
		return Config{}, err
	}
	return parsed, nil
}

func (c Config) validate() error {
	if c.ProcessingRate.IsNegative() || c.ApplicationRate.IsNegative() {
		return fmt.Errorf("rates must be non-negative")
	}
	if c.ProcessingFixed < 0 || c.ApplicationFixed < 0 || c.MinFee < 0 || c.MaxFee < 0 || c.ActualGatewayCost < 0 {
		return fmt.Errorf("fee amounts must be non-negative")
	}
	if c.MaxFee > 0 && c.MaxFee < c.MinFee {
		return fmt.Errorf("max fee %d is below min fee %d", c.MaxFee, c.MinFee)
	}
	return nil
}

// Calculate runs the fee schedule for an amount:
//
//	processing_fee = clamp(round(amount*rate) + fixed, min_fee, max_fee)
//	application_fee = round(amount*app_rate) + app_fixed
//	gateway_cost = configured actual cost, else round(0.7 * processing_fee)
//	processing_margin = max(0, processing_fee - gateway_cost)
//	total_platform_revenue = application_fee + processing_margin
//
// Rounding is half-up to integer minor units.
func Calculate(amount int64, cfg Config) (Breakdown, error) {
	if amount <= 0 {
		return Breakdown{}, apperrors.New(apperrors.CodeValidation, "amount must be positive")
	}
	if err := cfg.validate(); err != nil {
		return Breakdown{}, apperrors.New(apperrors.CodeValidation, err.Error())
	}

	amountDec := decimal.NewFromInt(amount)

	processingFee := roundToMinor(amountDec.Mul(cfg.ProcessingRate)) + cfg.ProcessingFixed
	processingFee = clamp(processingFee, cfg.MinFee, cfg.MaxFee)

	applicationFee := roundToMinor(amountDec.Mul(cfg.ApplicationRate)) + cfg.ApplicationFixed

	gatewayCost := cfg.ActualGatewayCost
	if gatewayCost == 0 {
		gatewayCost = roundToMinor(decimal.NewFromInt(processingFee).Mul(gatewayCostFactor))
	}

	margin := processingFee - gatewayCost
	if margin < 0 {
		margin = 0
	}

	return Breakdown{
		ProcessingFee:        processingFee,
		ApplicationFee:       applicationFee,
		GatewayCost:          gatewayCost,
		ProcessingMargin:     margin,
		TotalPlatformRevenue: applicationFee + margin,
	}, nil
}

// roundToMinor rounds half away from zero; inputs here are non-negative, so
// this is round-half-up.
func roundToMinor(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

func clamp(value, minFee, maxFee int64) int64 {
	if value < minFee {
		value = minFee
	}
	if maxFee > 0 && value > maxFee {
		value = maxFee
	}
	return value
}
