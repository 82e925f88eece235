// Package policy holds the deterministic energy-market rules enforced by
// block validation. Rules are plain data evaluated without I/O so every node
// reaches the same verdict on the same block.
package policy

import (
	"fmt"
	"strings"
	"time"
)

// Rules bounds what blocks and individual trades may settle.
type Rules struct {
	// MaxBlockEnergyKWh caps the total energy settled per block.
	MaxBlockEnergyKWh float64
	// MaxTradeKWh caps the energy amount of a single trade.
	MaxTradeKWh float64
	// MinPriceTokens and MaxPriceTokens bound the per-kWh price of a trade.
	MinPriceTokens uint64
	MaxPriceTokens uint64
	// BasePriceTokens is the market reference price; the average trade price
	// of a block may deviate from it by at most MaxAvgDeviationPct percent.
	BasePriceTokens    uint64
	MaxAvgDeviationPct float64
}

// DefaultRules returns the market parameters the chain ships with.
func DefaultRules() Rules {
	return Rules{
		MaxBlockEnergyKWh:  100_000,
		MaxTradeKWh:        10_000,
		MinPriceTokens:     1_000,
		MaxPriceTokens:     10_000,
		BasePriceTokens:    4_000,
		MaxAvgDeviationPct: 50,
	}
}

// CheckBlockEnergy validates the aggregate energy statistics of a block.
// avgPrice is ignored when the block settles no energy.
func (r Rules) CheckBlockEnergy(totalKWh float64, avgPrice float64) error {
	if totalKWh > r.MaxBlockEnergyKWh {
		return fmt.Errorf("block energy %.1f kWh exceeds maximum %.1f kWh",
			totalKWh, r.MaxBlockEnergyKWh)
	}
	if totalKWh <= 0 {
		return nil
	}

	base := float64(r.BasePriceTokens)
	deviation := (avgPrice - base) / base * 100
	if deviation < 0 {
		deviation = -deviation
	}
	if deviation > r.MaxAvgDeviationPct {
		return fmt.Errorf("average energy price %.1f deviates %.1f%% from base %d (max %.1f%%)",
			avgPrice, deviation, r.BasePriceTokens, r.MaxAvgDeviationPct)
	}
	return nil
}

// CheckTradePrice validates a single trade's per-kWh price against the band.
func (r Rules) CheckTradePrice(pricePerKWh uint64) error {
	if pricePerKWh < r.MinPriceTokens || pricePerKWh > r.MaxPriceTokens {
		return fmt.Errorf("energy price %d outside acceptable range (%d-%d tokens/kWh)",
			pricePerKWh, r.MinPriceTokens, r.MaxPriceTokens)
	}
	return nil
}

// CheckTradeEnergy validates a single trade's energy amount.
func (r Rules) CheckTradeEnergy(energyKWh float64) error {
	if energyKWh > r.MaxTradeKWh {
		return fmt.Errorf("trade energy %.1f kWh exceeds maximum %.1f kWh",
			energyKWh, r.MaxTradeKWh)
	}
	return nil
}

// bangkokZone is the fixed UTC+7 zone of the Thai grid.
var bangkokZone = time.FixedZone("ICT", 7*60*60)

// InPeakHours reports whether t falls in the Thai grid's peak window,
// 18:00-22:00 on weekdays, Bangkok time.
func InPeakHours(t time.Time) bool {
	local := t.In(bangkokZone)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	hour := local.Hour()
	return hour >= 18 && hour < 22
}

// ValidateGridLocation checks the PROVINCE-AREA-SUBSTATION format used by
// grid operators, e.g. "BKK-01-SUB001".
func ValidateGridLocation(location string) bool {
	parts := strings.Split(location, "-")
	return len(parts) == 3 &&
		len(parts[0]) == 3 &&
		len(parts[1]) == 2 &&
		strings.HasPrefix(parts[2], "SUB")
}

// TariffMultiplier returns the regional tariff multiplier applied to
// settlement previews. Unknown regions get the base rate.
func TariffMultiplier(region string) float64 {
	switch strings.ToLower(region) {
	case "bangkok":
		return 1.2
	case "central":
		return 1.0
	case "northern":
		return 0.9
	case "northeastern":
		return 0.8
	case "southern":
		return 1.1
	default:
		return 1.0
	}
}
