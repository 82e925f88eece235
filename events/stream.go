package events

import (
	"errors"
	"fmt"
	"sync"

	"gridtokenx_go/blockchain"
)

// BlockStream fans committed blocks out to in-process subscribers, such as
// websocket sessions on the API server. Publishing never blocks: a
// subscriber whose buffer is full misses that block.
type BlockStream struct {
	mutex       sync.Mutex
	subscribers map[uint64]chan *blockchain.Block
	nextID      uint64
	closed      bool
}

// NewBlockStream creates a stream with no subscribers.
func NewBlockStream() *BlockStream {
	return &BlockStream{
		subscribers: make(map[uint64]chan *blockchain.Block),
	}
}

// Subscribe registers a subscriber with the given channel buffer. The
// returned cancel function unregisters it and closes the channel; calling
// it more than once is safe.
func (s *BlockStream) Subscribe(buffer int) (<-chan *blockchain.Block, func()) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	ch := make(chan *blockchain.Block, buffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextID
	s.nextID++
	s.subscribers[id] = ch

	cancel := func() {
		s.mutex.Lock()
		defer s.mutex.Unlock()
		if sub, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(sub)
		}
	}
	return ch, cancel
}

// PublishBlock delivers the block to every subscriber with buffer room.
func (s *BlockStream) PublishBlock(block *blockchain.Block) error {
	if block == nil {
		return nil
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return fmt.Errorf("block stream is closed")
	}
	for _, ch := range s.subscribers {
		select {
		case ch <- block:
		default:
		}
	}
	return nil
}

// Subscribers returns the number of attached subscribers.
func (s *BlockStream) Subscribers() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.subscribers)
}

// Close unregisters and closes every subscriber channel.
func (s *BlockStream) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for id, ch := range s.subscribers {
		delete(s.subscribers, id)
		close(ch)
	}
	return nil
}

// MultiPublisher forwards every event to each wrapped publisher.
type MultiPublisher []Publisher

// PublishBlock publishes to all wrapped publishers and joins their errors.
func (m MultiPublisher) PublishBlock(block *blockchain.Block) error {
	var errs []error
	for _, p := range m {
		if err := p.PublishBlock(block); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes all wrapped publishers and joins their errors.
func (m MultiPublisher) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
