package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"storefront/internal/domain"
	"storefront/internal/logger"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// KafkaSink exports events to a Kafka topic, keyed by the cart or product id
// so all events for one aggregate land on one partition
type KafkaSink struct {
	producer sarama.AsyncProducer
	topic    string
	logger   *zap.Logger
	failed   atomic.Uint64
	wg       sync.WaitGroup

	// mu guards closed; Publish holds it shared while sending to the producer input
	mu     sync.RWMutex
	closed bool
}

// NewKafkaSink connects an async producer to brokers
func NewKafkaSink(brokers []string, topic string, logger *zap.Logger) (*KafkaSink, error) {
	config := sarama.NewConfig()
	config.ClientID = "storefront"
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Partitioner = sarama.NewHashPartitioner
	config.Producer.Return.Successes = false
	config.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return NewKafkaSinkWithProducer(producer, topic, logger), nil
}

// NewKafkaSinkWithProducer wraps an existing producer
func NewKafkaSinkWithProducer(producer sarama.AsyncProducer, topic string, logger *zap.Logger) *KafkaSink {
	s := &KafkaSink{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}

	s.wg.Add(1)
	go s.drainErrors()

	return s
}

// Publish enqueues the event; if the producer's input is full or the sink is
// closed the event is dropped
func (s *KafkaSink) Publish(_ context.Context, event domain.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.failed.Add(1)
		s.logger.Debug("Kafka sink closed, dropping event", logger.Event(event))
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to encode event for kafka", logger.Event(event), zap.Error(err))
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(event.Key()),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event-type"), Value: []byte(event.Type)},
		},
	}

	select {
	case s.producer.Input() <- msg:
	default:
		s.failed.Add(1)
		s.logger.Warn("Kafka producer queue full, dropping event", logger.Event(event))
	}
}

// Failed returns how many events were dropped or failed delivery
func (s *KafkaSink) Failed() uint64 {
	return s.failed.Load()
}

// Close flushes buffered messages and stops the producer. Later calls are no-ops.
func (s *KafkaSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.producer.Close()
	s.wg.Wait()
	return err
}

func (s *KafkaSink) drainErrors() {
	defer s.wg.Done()

	for perr := range s.producer.Errors() {
		s.failed.Add(1)
		s.logger.Warn("Kafka delivery failed",
			zap.String("topic", perr.Msg.Topic),
			zap.Error(perr.Err),
		)
	}
}
