// internal/events/kafka.go
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/earnings-ledger/internal/metrics"
)

type KafkaPublisher struct {
	producer sarama.AsyncProducer
	topic    string
	log      *logrus.Entry
	wg       sync.WaitGroup
}

func NewKafkaPublisher(brokers []string, topic, clientID string, log *logrus.Entry) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers list is empty")
	}
	if topic == "" {
		return nil, errors.New("kafka topic is empty")
	}

	producer, err := sarama.NewAsyncProducer(brokers, createSaramaConfig(clientID))
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return newKafkaPublisher(producer, topic, log), nil
}

func newKafkaPublisher(producer sarama.AsyncProducer, topic string, log *logrus.Entry) *KafkaPublisher {
	p := &KafkaPublisher{
		producer: producer,
		topic:    topic,
		log:      log.WithField("component", "kafka_publisher"),
	}

	p.wg.Add(2)
	go func() {
		defer p.wg.Done()
		for range producer.Successes() {
		}
	}()
	go func() {
		defer p.wg.Done()
		for perr := range producer.Errors() {
			metrics.EventsPublishFailed.Inc()
			p.log.WithError(perr.Err).WithField("topic", perr.Msg.Topic).Error("Failed to publish ledger event")
		}
	}()

	return p
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.Key),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("Event-Type"), Value: []byte(event.Type)},
		},
	}

	select {
	case p.producer.Input() <- msg:
		return nil
	case <-ctx.Done():
		p.log.WithError(ctx.Err()).WithField("event_type", event.Type).Warn("Context cancelled before publishing event")
		return ctx.Err()
	}
}

// Close flushes buffered messages and waits for the drain goroutines.
func (p *KafkaPublisher) Close() error {
	p.log.Info("Closing Kafka producer")
	p.producer.AsyncClose()
	p.wg.Wait()
	return nil
}

func createSaramaConfig(clientID string) *sarama.Config {
	config := sarama.NewConfig()
	config.ClientID = clientID
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1
	config.Producer.Compression = sarama.CompressionSnappy
	config.Version = sarama.V2_8_0_0
	return config
}
