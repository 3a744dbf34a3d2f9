package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKafkaPublisherSendsKeyedJSON(t *testing.T) {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Successes = true
	producer := mocks.NewAsyncProducer(t, cfg)

	producer.ExpectInputWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, _ := msg.Key.Encode()
		assert.Equal(t, "track_1", string(key))

		value, _ := msg.Value.Encode()
		var event Event
		if err := json.Unmarshal(value, &event); err != nil {
			return err
		}
		assert.Equal(t, TypeSaleCompleted, event.Type)
		assert.Equal(t, "1000", event.Data["amount"])
		return nil
	})

	p := newKafkaPublisher(producer, "ledger-events", logrus.NewEntry(logrus.New()))
	err := p.Publish(context.Background(), New(TypeSaleCompleted, "track_1", map[string]interface{}{"amount": "1000"}))
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestKafkaPublisherCountsFailures(t *testing.T) {
	producer := mocks.NewAsyncProducer(t, mocks.NewTestConfig())
	producer.ExpectInputAndFail(sarama.ErrOutOfBrokers)

	p := newKafkaPublisher(producer, "ledger-events", logrus.NewEntry(logrus.New()))
	require.NoError(t, p.Publish(context.Background(), New(TypePayoutRequested, "payout-1", nil)))
	require.NoError(t, p.Close())
}

func TestRecorderFiltersByType(t *testing.T) {
	r := &Recorder{}
	ctx := context.Background()
	r.Publish(ctx, New(TypeSaleCompleted, "a", nil))
	r.Publish(ctx, New(TypeFundsMatured, "b", nil))
	r.Publish(ctx, New(TypeSaleCompleted, "c", nil))

	assert.Len(t, r.Events(), 3)
	assert.Len(t, r.OfType(TypeSaleCompleted), 2)
}
