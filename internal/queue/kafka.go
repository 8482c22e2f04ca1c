package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/emrgen/rard/internal/event"
	"github.com/sirupsen/logrus"
)

var _ Publisher = (*KafkaPublisher)(nil)

// KafkaPublisher publishes envelopes to one topic, keyed by event name so that events of
// the same kind keep their relative order inside a partition.
type KafkaPublisher struct {
	producer *kafka.Producer
	topic    string
}

func NewKafkaPublisher(brokers, topic string) (*KafkaPublisher, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  brokers,
		"acks":               "all",
		"enable.idempotence": true,
	})
	if err != nil {
		return nil, err
	}

	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaPublisher{producer: producer, topic: topic}, nil
}

func (k *KafkaPublisher) Publish(ctx context.Context, envelopes ...*event.Envelope) error {
	delivery := make(chan kafka.Event, len(envelopes))

	for _, envelope := range envelopes {
		value, err := json.Marshal(envelope)
		if err != nil {
			return err
		}
		err = k.producer.Produce(&kafka.Message{
			TopicPartition: kafka.TopicPartition{Topic: &k.topic, Partition: kafka.PartitionAny},
			Key:            []byte(envelope.Name),
			Value:          value,
		}, delivery)
		if err != nil {
			return err
		}
	}

	for range envelopes {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-delivery:
			m, ok := e.(*kafka.Message)
			if !ok {
				return fmt.Errorf("unexpected delivery report %v", e)
			}
			if m.TopicPartition.Error != nil {
				return m.TopicPartition.Error
			}
			logrus.Debugf("published %s to %s", m.Key, *m.TopicPartition.Topic)
		}
	}

	return nil
}

func (k *KafkaPublisher) Close() {
	if remaining := k.producer.Flush(5000); remaining > 0 {
		logrus.Warnf("%d change events were not delivered", remaining)
	}
	k.producer.Close()
}
