package service

import (
    "context"
    "encoding/json"
    "time"

    "github.com/segmentio/kafka-go"
)

// KafkaPublisher writes every topic to a single Kafka topic and carries
// the routing key in a "type" header.
type KafkaPublisher struct {
    writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
    writer := &kafka.Writer{
        Addr:         kafka.TCP(brokers...),
        Topic:        topic,
        Balancer:     &kafka.Hash{},
        BatchTimeout: 10 * time.Millisecond,
        RequiredAcks: kafka.RequireAll,
    }
    return &KafkaPublisher{writer: writer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic, key string, payload any) error {
    msg, err := kafkaMessage(topic, key, payload)
    if err != nil {
        return err
    }
    return p.writer.WriteMessages(ctx, msg)
}

func (p *KafkaPublisher) Close() error {
    return p.writer.Close()
}

func kafkaMessage(topic, key string, payload any) (kafka.Message, error) {
    data, err := json.Marshal(payload)
    if err != nil {
        return kafka.Message{}, err
    }
    return kafka.Message{
        Key:     []byte(key),
        Value:   data,
        Headers: []kafka.Header{{Key: "type", Value: []byte(topic)}},
        Time:    time.Now(),
    }, nil
}
