package blockchain

import "time"

// SettlementStatus tracks a matched trade through delivery.
type SettlementStatus string

const (
	SettlementPending   SettlementStatus = "PENDING"
	SettlementConfirmed SettlementStatus = "CONFIRMED"
	SettlementDelivered SettlementStatus = "DELIVERED"
	SettlementFailed    SettlementStatus = "FAILED"
)

// EnergyOrder is an open buy or sell order in the market book.
type EnergyOrder struct {
	ID              string       `json:"id"`
	Trader          string       `json:"trader"`
	EnergyAmountKWh float64      `json:"energyAmountKwh"`
	PricePerKWh     uint64       `json:"pricePerKwh"`
	OrderType       OrderType    `json:"orderType"`
	EnergySource    EnergySource `json:"energySource,omitempty"`
	CreatedAt       time.Time    `json:"createdAt"`
	ExpiresAt       time.Time    `json:"expiresAt"`
	GridLocation    string       `json:"gridLocation,omitempty"`
	MinTradeKWh     float64      `json:"minTradeKwh,omitempty"`
}

// MatchedTrade records the settlement of a buy order against a sell order.
type MatchedTrade struct {
	ID               string           `json:"id"`
	BuyOrderID       string           `json:"buyOrderId"`
	SellOrderID      string           `json:"sellOrderId"`
	EnergyAmountKWh  float64          `json:"energyAmountKwh"`
	PricePerKWh      uint64           `json:"pricePerKwh"`
	TotalValue       uint64           `json:"totalValue"`
	MatchedAt        time.Time        `json:"matchedAt"`
	SettlementStatus SettlementStatus `json:"settlementStatus"`
}

// PriceSignal is an indicative per-kWh price derived from the open order
// volume on each side of the market book.
type PriceSignal struct {
	IndicativePrice   float64   `json:"indicativePrice"`
	SupplyDemandRatio float64   `json:"supplyDemandRatio"`
	TotalSupplyKWh    float64   `json:"totalSupplyKwh"`
	TotalDemandKWh    float64   `json:"totalDemandKwh"`
	PeakHours         bool      `json:"peakHours"`
	CalculatedAt      time.Time `json:"calculatedAt"`
}

// EnergyOrderBook tracks open orders and settled trades. Access is guarded
// by the owning Chain's lock.
type EnergyOrderBook struct {
	BuyOrders     []EnergyOrder  `json:"buyOrders"`
	SellOrders    []EnergyOrder  `json:"sellOrders"`
	MatchedTrades []MatchedTrade `json:"matchedTrades"`
}

// NewEnergyOrderBook returns an empty order book.
func NewEnergyOrderBook() *EnergyOrderBook {
	return &EnergyOrderBook{}
}

// AddOrder files an open order on its market side.
func (ob *EnergyOrderBook) AddOrder(order EnergyOrder) {
	switch order.OrderType {
	case OrderBuy:
		ob.BuyOrders = append(ob.BuyOrders, order)
	case OrderSell:
		ob.SellOrders = append(ob.SellOrders, order)
	}
}

// Settle records a matched trade and removes both filled orders from the
// book.
func (ob *EnergyOrderBook) Settle(trade MatchedTrade) {
	ob.MatchedTrades = append(ob.MatchedTrades, trade)
	ob.BuyOrders = removeOrder(ob.BuyOrders, trade.BuyOrderID)
	ob.SellOrders = removeOrder(ob.SellOrders, trade.SellOrderID)
}

func removeOrder(orders []EnergyOrder, id string) []EnergyOrder {
	kept := orders[:0]
	for _, order := range orders {
		if order.ID != id {
			kept = append(kept, order)
		}
	}
	return kept
}
