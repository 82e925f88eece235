package policy

import "math"

// PricingConfig tunes the indicative price curve used for market price
// discovery.
type PricingConfig struct {
	// BalanceTokens is the per-kWh price when supply equals demand.
	BalanceTokens float64
	// RangeTokens scales how far the price can swing away from balance.
	RangeTokens float64
	// Sensitivity steepens the response to supply-demand imbalance.
	Sensitivity float64
	// MinRatio floors the supply-demand ratio so the curve stays defined
	// when one side of the book is empty.
	MinRatio float64
}

// DefaultPricingConfig returns the curve parameters the market ships with.
func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		BalanceTokens: 4_000,
		RangeTokens:   2_000,
		Sensitivity:   1.0,
		MinRatio:      0.01,
	}
}

// IndicativePrice computes the price signal for the given open supply and
// demand volumes: balance - (pi/2) * range * tanh(k * ln(supply/demand)).
// Oversupply pulls the price below balance, excess demand lifts it above.
// Zero demand yields the balance price.
func (p PricingConfig) IndicativePrice(supplyKWh, demandKWh float64) float64 {
	if demandKWh <= 0 {
		return p.BalanceTokens
	}
	ratio := math.Max(supplyKWh/demandKWh, p.MinRatio)
	swing := math.Pi / 2 * p.RangeTokens * math.Tanh(p.Sensitivity*math.Log(ratio))
	return math.Max(p.BalanceTokens-swing, 1)
}
