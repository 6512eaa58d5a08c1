package rabbitmq

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPublishing(t *testing.T) {
	msg, err := newPublishing("o-1", map[string]string{"order_id": "o-1"})
	require.NoError(t, err)

	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "o-1", msg.MessageId)
	assert.JSONEq(t, `{"order_id":"o-1"}`, string(msg.Body))
}

func TestNewPublishing_Unencodable(t *testing.T) {
	_, err := newPublishing("k", make(chan int))
	assert.Error(t, err)
}
