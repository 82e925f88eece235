package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckBlockEnergy(t *testing.T) {
	rules := DefaultRules()

	assert.NoError(t, rules.CheckBlockEnergy(0, 0))
	assert.NoError(t, rules.CheckBlockEnergy(100_000, 4_000))
	assert.NoError(t, rules.CheckBlockEnergy(500, 5_999)) // just inside 50%

	err := rules.CheckBlockEnergy(100_001, 4_000)
	assert.ErrorContains(t, err, "exceeds maximum")

	err = rules.CheckBlockEnergy(500, 6_500) // 62.5% above base
	assert.ErrorContains(t, err, "deviates")

	err = rules.CheckBlockEnergy(500, 1_500) // 62.5% below base
	assert.ErrorContains(t, err, "deviates")
}

func TestCheckTradePrice(t *testing.T) {
	rules := DefaultRules()

	assert.NoError(t, rules.CheckTradePrice(1_000))
	assert.NoError(t, rules.CheckTradePrice(10_000))
	assert.ErrorContains(t, rules.CheckTradePrice(999), "outside acceptable range")
	assert.ErrorContains(t, rules.CheckTradePrice(10_001), "outside acceptable range")
}

func TestCheckTradeEnergy(t *testing.T) {
	rules := DefaultRules()

	assert.NoError(t, rules.CheckTradeEnergy(10_000))
	assert.ErrorContains(t, rules.CheckTradeEnergy(10_000.5), "exceeds maximum")

	rules.MaxTradeKWh = 50
	assert.ErrorContains(t, rules.CheckTradeEnergy(51), "exceeds maximum 50.0 kWh")
}

func TestInPeakHours(t *testing.T) {
	// 2026-08-19 is a Wednesday. 12:00 UTC is 19:00 in Bangkok.
	weekdayPeak := time.Date(2026, 8, 19, 12, 0, 0, 0, time.UTC)
	assert.True(t, InPeakHours(weekdayPeak))

	// 16:00 UTC is 23:00 in Bangkok, past the window.
	weekdayLate := time.Date(2026, 8, 19, 16, 0, 0, 0, time.UTC)
	assert.False(t, InPeakHours(weekdayLate))

	// 06:00 UTC is 13:00 in Bangkok, before the window.
	weekdayNoon := time.Date(2026, 8, 19, 6, 0, 0, 0, time.UTC)
	assert.False(t, InPeakHours(weekdayNoon))

	// 2026-08-22 is a Saturday; no peak hours on weekends.
	weekend := time.Date(2026, 8, 22, 12, 0, 0, 0, time.UTC)
	assert.False(t, InPeakHours(weekend))
}

func TestValidateGridLocation(t *testing.T) {
	assert.True(t, ValidateGridLocation("BKK-01-SUB001"))
	assert.True(t, ValidateGridLocation("CNX-12-SUB044"))
	assert.False(t, ValidateGridLocation("BKK-01"))
	assert.False(t, ValidateGridLocation("BANGKOK-01-SUB001"))
	assert.False(t, ValidateGridLocation("BKK-001-SUB001"))
	assert.False(t, ValidateGridLocation("BKK-01-STA001"))
}

func TestTariffMultiplier(t *testing.T) {
	assert.Equal(t, 1.2, TariffMultiplier("Bangkok"))
	assert.Equal(t, 0.8, TariffMultiplier("northeastern"))
	assert.Equal(t, 1.0, TariffMultiplier("unknown-region"))
}
