package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nexus-collab/apiserver/types"
)

const attrEventType = "event-type"

// FeedEventPublisher publishes feed events as JSON on one channel.
type FeedEventPublisher struct {
	mq      *MQ
	channel string
}

// NewFeedEventPublisher returns a publisher bound to channel. A nil mq yields
// a publisher that drops every event.
func NewFeedEventPublisher(mq *MQ, channel string) *FeedEventPublisher {
	return &FeedEventPublisher{mq: mq, channel: channel}
}

// Publish marshals and sends the event.
func (p *FeedEventPublisher) Publish(ctx context.Context, event types.FeedEvent) error {
	if p == nil || p.mq == nil {
		return nil
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal feed event: %w", err)
	}
	_, err = p.mq.Publish(ctx, p.channel, data, map[string]string{
		AttrContentType: "application/json",
		attrEventType:   event.Type,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// DecodeFeedEvent parses a message produced by FeedEventPublisher.
func DecodeFeedEvent(msg Message) (types.FeedEvent, error) {
	var event types.FeedEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return types.FeedEvent{}, fmt.Errorf("decode feed event %s: %w", msg.ID, err)
	}
	if event.Type == "" {
		event.Type = msg.Attributes[attrEventType]
	}
	return event, nil
}
