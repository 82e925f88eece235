// Package events streams committed blocks to external consumers. The chain
// itself never depends on delivery; a failed publish is logged and dropped.
package events

import "gridtokenx_go/blockchain"

// Publisher receives every block the node commits.
type Publisher interface {
	PublishBlock(block *blockchain.Block) error
	Close() error
}

// NopPublisher discards all events. Used when no event stream is configured.
type NopPublisher struct{}

func (NopPublisher) PublishBlock(*blockchain.Block) error { return nil }

func (NopPublisher) Close() error { return nil }
