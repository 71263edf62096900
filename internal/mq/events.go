package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// TypeAttr names the attribute carrying the event type.
const TypeAttr = "type"

// Account event types.
const (
	AccountCreated         = "account.created"
	AccountUpdated         = "account.updated"
	AccountPasswordChanged = "account.password_changed"
	AccountAvatarChanged   = "account.avatar_changed"
)

// AccountEvent is published after an account mutation is committed.
type AccountEvent struct {
	Type       string    `json:"type"`
	AccountID  string    `json:"accountId"`
	Email      string    `json:"email"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher is the subset of MQ used to emit events.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// AccountEvents publishes AccountEvent values as JSON on one channel.
type AccountEvents struct {
	publisher Publisher
	channel   string
}

func NewAccountEvents(publisher Publisher, channel string) *AccountEvents {
	return &AccountEvents{publisher: publisher, channel: channel}
}

// Publish encodes evt and sends it. A zero OccurredAt is set to now.
func (e *AccountEvents) Publish(ctx context.Context, evt AccountEvent) error {
	if evt.Type == "" {
		return errors.New("event type is required")
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	attrs := map[string]string{
		TypeAttr:        evt.Type,
		ContentTypeAttr: "application/json",
	}
	if _, err := e.publisher.Publish(ctx, e.channel, data, attrs); err != nil {
		return fmt.Errorf("publish %s: %w", evt.Type, err)
	}
	return nil
}

// Channel returns the channel events are published on.
func (e *AccountEvents) Channel() string {
	return e.channel
}

// DecodeAccountEvent parses a message produced by AccountEvents.Publish.
func DecodeAccountEvent(msg Message) (AccountEvent, error) {
	var evt AccountEvent
	if err := json.Unmarshal(msg.Data, &evt); err != nil {
		return AccountEvent{}, fmt.Errorf("decode account event %s: %w", msg.ID, err)
	}
	if evt.Type == "" {
		evt.Type = msg.Attributes[TypeAttr]
	}
	return evt, nil
}
