package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIndicativePrice(t *testing.T) {
	pricing := DefaultPricingConfig()

	// Balanced book: tanh(ln(1)) is zero, so the price sits at balance.
	assert.InDelta(t, 4_000, pricing.IndicativePrice(100, 100), 0.001)

	// Excess demand lifts the price, oversupply depresses it.
	assert.Greater(t, pricing.IndicativePrice(50, 100), 4_000.0)
	assert.Less(t, pricing.IndicativePrice(200, 100), 4_000.0)

	// An empty demand side falls back to the balance price.
	assert.InDelta(t, 4_000, pricing.IndicativePrice(500, 0), 0.001)

	// The swing is bounded by the range parameter: tanh saturates at 1.
	extreme := pricing.IndicativePrice(1_000_000, 1)
	assert.Greater(t, extreme, 4_000-3.15/2*2_000)
	assert.Less(t, extreme, 4_000.0)
}

func TestIndicativePriceFloorsAtOne(t *testing.T) {
	pricing := PricingConfig{
		BalanceTokens: 10,
		RangeTokens:   2_000,
		Sensitivity:   1.0,
		MinRatio:      0.01,
	}
	assert.InDelta(t, 1.0, pricing.IndicativePrice(1_000_000, 1), 0.001)
}
