package service

import (
    "context"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/ticket-inventory/internal/queue"
)

func TestKafkaMessage(t *testing.T) {
    msg, err := kafkaMessage(queue.TopicTicketIssued, "TKT-1", queue.TicketIssuedEvent{TicketID: "TKT-1"})
    require.NoError(t, err)
    assert.Equal(t, []byte("TKT-1"), msg.Key)
    require.Len(t, msg.Headers, 1)
    assert.Equal(t, "type", msg.Headers[0].Key)
    assert.Equal(t, queue.TopicTicketIssued, string(msg.Headers[0].Value))
    assert.Contains(t, string(msg.Value), `"ticket_id":"TKT-1"`)

    _, err = kafkaMessage("x", "k", func() {})
    assert.Error(t, err)
}

func TestNopPublisher(t *testing.T) {
    var p Publisher = NopPublisher{}
    assert.NoError(t, p.Publish(context.Background(), "t", "k", nil))
    assert.NoError(t, p.Close())
}
