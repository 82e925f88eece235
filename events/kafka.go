package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"gridtokenx_go/blockchain"
	"gridtokenx_go/utils"
)

// KafkaPublisher streams committed blocks to a Kafka topic through an async
// producer. Delivery results are drained in the background so PublishBlock
// never blocks the consensus loop.
type KafkaPublisher struct {
	producer sarama.AsyncProducer
	topic    string

	done chan struct{}
	wg   sync.WaitGroup

	mu     sync.RWMutex
	sent   int64
	failed int64
}

// NewKafkaPublisher connects an async producer to the given brokers.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic cannot be empty")
	}

	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Retry.Max = 3
	config.Producer.Timeout = 3 * time.Second
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Compression = sarama.CompressionSnappy

	producer, err := sarama.NewAsyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	p := &KafkaPublisher{
		producer: producer,
		topic:    topic,
		done:     make(chan struct{}),
	}
	p.wg.Add(1)
	go p.drainResults()

	utils.LogInfo("Kafka block publisher connected: brokers=%v topic=%s", brokers, topic)
	return p, nil
}

// drainResults consumes the producer's success and error channels until the
// publisher is closed.
func (p *KafkaPublisher) drainResults() {
	defer p.wg.Done()
	for {
		select {
		case success := <-p.producer.Successes():
			if success != nil {
				p.mu.Lock()
				p.sent++
				p.mu.Unlock()
				utils.LogDebug("Block event delivered to %s partition %d offset %d",
					success.Topic, success.Partition, success.Offset)
			}
		case producerErr := <-p.producer.Errors():
			if producerErr != nil {
				p.mu.Lock()
				p.failed++
				p.mu.Unlock()
				utils.LogError("Block event delivery failed: %v", producerErr.Err)
			}
		case <-p.done:
			return
		}
	}
}

// PublishBlock enqueues the block as a JSON message keyed by block hash.
// Returns an error when the producer's input buffer is full.
func (p *KafkaPublisher) PublishBlock(block *blockchain.Block) error {
	if block == nil {
		return nil
	}

	payload, err := json.Marshal(block)
	if err != nil {
		return fmt.Errorf("failed to encode block event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(block.Header.Hash),
		Value: sarama.ByteEncoder(payload),
	}

	// The input channel is closed by Close; never race a send against it.
	select {
	case <-p.done:
		return fmt.Errorf("kafka publisher is closed")
	default:
	}

	select {
	case p.producer.Input() <- msg:
		return nil
	default:
		return fmt.Errorf("kafka producer buffer is full")
	}
}

// Stats returns the delivered and failed message counts.
func (p *KafkaPublisher) Stats() (sent, failed int64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sent, p.failed
}

// Close stops the drain goroutine and shuts the producer down.
func (p *KafkaPublisher) Close() error {
	close(p.done)
	err := p.producer.Close()
	p.wg.Wait()

	sent, failed := p.Stats()
	utils.LogInfo("Kafka block publisher closed: sent=%d failed=%d", sent, failed)
	return err
}
