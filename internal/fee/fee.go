// Package fee computes the breakdown a user pays for an outbound USDT
// transfer: the TRX gas the gateway will spend sponsoring the send,
// converted to USDT, plus a platform margin, clamped to a configured
// band. All arithmetic is decimal (github.com/shopspring/decimal) — spec
// 9 is explicit that FeeEngine must never touch binary floating point.
//
// Grounded on the fee computation spec 4.6 describes; there is no
// teacher analogue (the crypto-service prices chains in raw SUN/wei
// integers), so this package is built fresh in the teacher's idiom:
// small pure functions, a single exported entry point, errors wrapped
// with fmt.Errorf("...: %w", ...).
package fee

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// sunPerTrx is the fixed-point scale between SUN and TRX (spec 6 glossary).
const sunPerTrx = 1_000_000

// usdtScale is USDT's on-chain decimal precision (spec 6 glossary).
const usdtScale = 6

// Config is the subset of internal/config.FeeConfig FeeEngine needs to
// price a quote.
type Config struct {
	EnergyPriceSun int64 // current network energy price, SUN per energy unit
	TrxUsdtRate    decimal.Decimal
	Percentage     decimal.Decimal // platform margin, e.g. 0.01 for 1%
	MinUsdt        decimal.Decimal
	MaxUsdt        decimal.Decimal
}

// Quote is the computed breakdown for a single order (spec 4.6, 8).
type Quote struct {
	OrderAmount decimal.Decimal
	GasEnergy   int64
	GasCostTrx  decimal.Decimal
	GasCostUsdt decimal.Decimal
	PlatformFee decimal.Decimal
	TotalFee    decimal.Decimal
	TotalAmount decimal.Decimal
}

// Compute prices an order of orderAmount USDT given a fresh energy estimate
// and the current TRX/USDT rate (spec 4.6):
//
//	gasTrx  = energyEstimate * energyPriceSun / 10^6
//	gasUsdt = gasTrx * trxUsdtRate
//	platformFee = orderAmount * percentage
//	rawFee = gasUsdt + platformFee
//	totalFee = clamp(rawFee, feeMin, feeMax)
//	totalAmount = orderAmount + totalFee
//
// Every result is rounded to usdtScale (6 decimal places, half-away-from-
// zero) only at the end, so intermediate rounding never compounds.
func Compute(orderAmount decimal.Decimal, energyEstimate int64, cfg Config) (Quote, error) {
	if orderAmount.IsNegative() {
		return Quote{}, fmt.Errorf("order amount must be non-negative, got %s", orderAmount)
	}
	if energyEstimate < 0 {
		return Quote{}, fmt.Errorf("energy estimate must be non-negative, got %d", energyEstimate)
	}
	if cfg.MaxUsdt.LessThan(cfg.MinUsdt) {
		return Quote{}, fmt.Errorf("fee config invalid: max %s is less than min %s", cfg.MaxUsdt, cfg.MinUsdt)
	}

	gasCostTrx := decimal.NewFromInt(energyEstimate).
		Mul(decimal.NewFromInt(cfg.EnergyPriceSun)).
		Div(decimal.NewFromInt(sunPerTrx))

	gasCostUsdt := gasCostTrx.Mul(cfg.TrxUsdtRate)

	platformFee := orderAmount.Mul(cfg.Percentage)

	rawFee := gasCostUsdt.Add(platformFee)

	totalFee := clamp(rawFee, cfg.MinUsdt, cfg.MaxUsdt)

	totalAmount := orderAmount.Add(totalFee)

	round := func(d decimal.Decimal) decimal.Decimal { return d.Round(usdtScale) }

	return Quote{
		OrderAmount: round(orderAmount),
		GasEnergy:   energyEstimate,
		GasCostTrx:  round(gasCostTrx),
		GasCostUsdt: round(gasCostUsdt),
		PlatformFee: round(platformFee),
		TotalFee:    round(totalFee),
		TotalAmount: round(totalAmount),
	}, nil
}

// clamp bounds v to [min, max]. min > max is the caller's responsibility to
// reject before calling clamp (Compute does so above).
func clamp(v, min, max decimal.Decimal) decimal.Decimal {
	if v.LessThan(min) {
		return min
	}
	if v.GreaterThan(max) {
		return max
	}
	return v
}
