package mq

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/typoreporter/apiserver/config"
)

// loopback delivers published messages to subscribers in process.
type loopback struct {
	mu       sync.Mutex
	messages map[string][]Message
	failNext error
	closed   bool
}

func newLoopback() *loopback {
	return &loopback{messages: map[string][]Message{}}
}

func (l *loopback) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failNext != nil {
		err := l.failNext
		l.failNext = nil
		return "", err
	}
	id := newMessageID()
	l.messages[channel] = append(l.messages[channel], Message{ID: id, Data: data, Attributes: attrs})
	return id, nil
}

func (l *loopback) Subscribe(ctx context.Context, channel string, handler Handler) error {
	l.mu.Lock()
	pending := l.messages[channel]
	l.messages[channel] = nil
	l.mu.Unlock()
	for _, msg := range pending {
		if err := handler(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (l *loopback) Close() error {
	l.closed = true
	return nil
}

func TestAccountEvents_PublishAndDecode(t *testing.T) {
	backend := newLoopback()
	queue := New(backend)
	events := NewAccountEvents(queue, "account-events")
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, events.Publish(context.Background(), AccountEvent{
		Type:       AccountUpdated,
		AccountID:  "acc-1",
		Email:      "new@test.ru",
		OccurredAt: at,
	}))

	var got []AccountEvent
	err := queue.Subscribe(context.Background(), "account-events", func(_ context.Context, msg Message) error {
		assert.Equal(t, AccountUpdated, msg.Attributes[TypeAttr])
		assert.Equal(t, "application/json", msg.Attributes[ContentTypeAttr])
		evt, err := DecodeAccountEvent(msg)
		if err != nil {
			return err
		}
		got = append(got, evt)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, AccountEvent{Type: AccountUpdated, AccountID: "acc-1", Email: "new@test.ru", OccurredAt: at}, got[0])

	require.NoError(t, queue.Close())
	assert.True(t, backend.closed)
}

func TestAccountEvents_Publish_Errors(t *testing.T) {
	backend := newLoopback()
	events := NewAccountEvents(backend, "account-events")

	assert.Error(t, events.Publish(context.Background(), AccountEvent{AccountID: "acc-1"}))

	backend.failNext = errors.New("broker down")
	err := events.Publish(context.Background(), AccountEvent{Type: AccountCreated, AccountID: "acc-1"})
	assert.ErrorContains(t, err, "broker down")
	assert.Equal(t, "account-events", events.Channel())
}

func TestDecodeAccountEvent_FallsBackToAttribute(t *testing.T) {
	evt, err := DecodeAccountEvent(Message{
		Data:       []byte(`{"accountId":"acc-1"}`),
		Attributes: map[string]string{TypeAttr: AccountCreated},
	})
	require.NoError(t, err)
	assert.Equal(t, AccountCreated, evt.Type)

	_, err = DecodeAccountEvent(Message{ID: "m1", Data: []byte("{")})
	assert.ErrorContains(t, err, "m1")
}

func TestHeadersToAttributes(t *testing.T) {
	assert.Nil(t, headersToAttributes(nil))
	attrs := headersToAttributes(map[string]any{
		"type":  "account.created",
		"raw":   []byte("bytes"),
		"count": int32(3),
	})
	assert.Equal(t, map[string]string{"type": "account.created", "raw": "bytes", "count": "3"}, attrs)
}

func TestOpen_Backends(t *testing.T) {
	queue, err := Open(context.Background(), config.MQConfig{})
	require.NoError(t, err)
	assert.Nil(t, queue)

	_, err = Open(context.Background(), config.MQConfig{Backend: "kafka"})
	assert.ErrorContains(t, err, "unknown mq backend")

	_, err = Open(context.Background(), config.MQConfig{Backend: "rabbitmq"})
	assert.ErrorContains(t, err, "rabbitmq url is required")

	_, err = Open(context.Background(), config.MQConfig{Backend: "pubsub"})
	assert.ErrorContains(t, err, "pubsub project id is required")
}
