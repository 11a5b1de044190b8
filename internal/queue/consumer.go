package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log/slog"
    "os"
    "path/filepath"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// BookingLogConsumer listens to the ticket.issued queue and appends one
// line per issued ticket to a booking log file.
type BookingLogConsumer struct {
    url     string
    logPath string
    log     *slog.Logger
}

// NewBookingLogConsumer returns a consumer writing to logPath
// (logs/booking.log when empty).
func NewBookingLogConsumer(url, logPath string, logger *slog.Logger) *BookingLogConsumer {
    if logPath == "" {
        logPath = filepath.Join("logs", "booking.log")
    }
    return &BookingLogConsumer{url: url, logPath: logPath, log: logger}
}

// Run connects to RabbitMQ, declares the ticket.issued queue (durable), and
// consumes until ctx is cancelled. Broker failures are retried with
// exponential backoff capped at 30s; a message that cannot be processed is
// rejected without requeue so the loop keeps going.
func (c *BookingLogConsumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(c.url)
        if err != nil {
            c.log.Warn("booking consumer: dial failed", "error", err, "retry_in", backoff)
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        err = c.consume(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        c.log.Warn("booking consumer: consume loop ended; reconnecting", "error", err)
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func (c *BookingLogConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.log.Warn("booking consumer: set QoS failed", "error", err)
    }
    if _, err := ch.QueueDeclare(TopicTicketIssued, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.ConsumeWithContext(ctx, TopicTicketIssued, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for d := range msgs {
        if err := c.Handle(d.Body); err != nil {
            c.log.Error("booking consumer: handle message failed", "error", err)
            _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
            continue
        }
        _ = d.Ack(false)
    }
    return errors.New("deliveries channel closed")
}

// Handle decodes one ticket.issued message and appends it to the log.
func (c *BookingLogConsumer) Handle(body []byte) error {
    var ev TicketIssuedEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.TicketID == "" {
        return errors.New("event without ticket_id")
    }
    if err := os.MkdirAll(filepath.Dir(c.logPath), 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(c.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(FormatBookingLine(ev)); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

// FormatBookingLine renders the single-line booking log entry.
func FormatBookingLine(ev TicketIssuedEvent) string {
    return fmt.Sprintf("[%s] Ticket issued | ticket_id=%s | order_id=%s | buyer_id=%s | event_id=%s | event=%q | category=%q | phase=%q | qty=%d | total=%d %s | payment_ref=%s\n",
        ev.IssuedAt, ev.TicketID, ev.OrderID, ev.BuyerID, ev.EventID, ev.EventName, ev.Category, ev.Phase, ev.Quantity, ev.Total, ev.Currency, ev.PaymentRef)
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}
