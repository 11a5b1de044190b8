package service

import (
    "context"
    "encoding/json"
    "fmt"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitPublisher publishes to durable queues named after the topic on the
// default exchange. The connection is opened lazily and re-dialled after
// it drops.
type RabbitPublisher struct {
    url string

    mu       sync.Mutex
    conn     *amqp.Connection
    declared map[string]bool
}

func NewRabbitPublisher(url string) *RabbitPublisher {
    return &RabbitPublisher{url: url, declared: make(map[string]bool)}
}

func (p *RabbitPublisher) connection() (*amqp.Connection, error) {
    if p.conn != nil && !p.conn.IsClosed() {
        return p.conn, nil
    }
    conn, err := amqp.Dial(p.url)
    if err != nil {
        return nil, fmt.Errorf("rabbitmq: dial failed: %w", err)
    }
    p.conn = conn
    p.declared = make(map[string]bool)
    return conn, nil
}

// Publish marks messages persistent. The queue is declared (idempotent)
// the first time a topic is used on a connection.
func (p *RabbitPublisher) Publish(ctx context.Context, topic, key string, payload any) error {
    body, err := json.Marshal(payload)
    if err != nil {
        return fmt.Errorf("rabbitmq: marshal event failed: %w", err)
    }

    p.mu.Lock()
    defer p.mu.Unlock()
    conn, err := p.connection()
    if err != nil {
        return err
    }
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("rabbitmq: channel open failed: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if !p.declared[topic] {
        // Durable so messages survive broker restarts.
        if _, err := ch.QueueDeclare(topic, true, false, false, false, nil); err != nil {
            return fmt.Errorf("rabbitmq: queue declare failed: %w", err)
        }
        p.declared[topic] = true
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent, // store on disk
        MessageId:    key,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx, "", topic, false, false, pub); err != nil {
        return fmt.Errorf("rabbitmq: publish failed: %w", err)
    }
    return nil
}

func (p *RabbitPublisher) Close() error {
    p.mu.Lock()
    defer p.mu.Unlock()
    if p.conn == nil || p.conn.IsClosed() {
        return nil
    }
    return p.conn.Close()
}
