package blockchain

import (
	"fmt"
	"time"
)

// UTXO is an unspent transaction output. Every transaction with a recipient
// produces exactly one output at index 0.
type UTXO struct {
	TxID           string              `json:"txId"`
	OutputIndex    uint32              `json:"outputIndex"`
	Amount         uint64              `json:"amount"`
	Owner          string              `json:"owner"`
	BlockHeight    uint64              `json:"blockHeight"`
	IsEnergyUTXO   bool                `json:"isEnergyUtxo"`
	EnergyMetadata *EnergyUTXOMetadata `json:"energyMetadata,omitempty"`
}

// EnergyUTXOMetadata carries the energy details of an output created by an
// energy trade.
type EnergyUTXOMetadata struct {
	EnergyAmountKWh float64   `json:"energyAmountKwh"`
	EnergySource    string    `json:"energySource"`
	CarbonCredits   float64   `json:"carbonCredits"`
	DeliveryTime    time.Time `json:"deliveryTime"`
	GridLocation    string    `json:"gridLocation,omitempty"`
}

// UTXOKey returns the output set key for a transaction output.
func UTXOKey(txID string, index uint32) string {
	return fmt.Sprintf("%s:%d", txID, index)
}

// newUTXO builds the single output of a transaction included at the given
// block height. Returns nil for transactions without a recipient.
func newUTXO(tx *Transaction, blockHeight uint64) *UTXO {
	if tx.To == "" {
		return nil
	}
	utxo := &UTXO{
		TxID:         tx.ID,
		OutputIndex:  0,
		Amount:       tx.Amount(),
		Owner:        tx.To,
		BlockHeight:  blockHeight,
		IsEnergyUTXO: tx.IsEnergy(),
	}
	if tx.Kind == TxEnergyTrade && tx.EnergyTrade != nil {
		trade := tx.EnergyTrade
		utxo.EnergyMetadata = &EnergyUTXOMetadata{
			EnergyAmountKWh: trade.EnergyAmountKWh,
			EnergySource:    string(trade.Source),
			CarbonCredits:   trade.CarbonCredits,
			DeliveryTime:    trade.DeliveryEnd,
			GridLocation:    trade.GridLocation,
		}
	}
	return utxo
}
