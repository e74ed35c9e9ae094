package mq

import (
	"context"
	"errors"
	"testing"

	"github.com/nexus-collab/apiserver/config"
	"github.com/nexus-collab/apiserver/types"
)

type recordingBackend struct {
	channel string
	data    []byte
	attrs   map[string]string
	err     error
}

func (b *recordingBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	b.channel = channel
	b.data = data
	b.attrs = attrs
	return "msg-1", nil
}

func (b *recordingBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return nil
}

func (b *recordingBackend) Close() error { return nil }

func TestFeedEventPublisherRoundTrip(t *testing.T) {
	backend := &recordingBackend{}
	publisher := NewFeedEventPublisher(New(backend), "feed.events")

	event := types.FeedEvent{Type: types.EventFeedCreated, FeedID: 7, ProjectID: 3, ActorID: 11, FileIDs: []int{1, 2}}
	if err := publisher.Publish(context.Background(), event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if backend.channel != "feed.events" {
		t.Fatalf("unexpected channel: %q", backend.channel)
	}
	if backend.attrs[AttrContentType] != "application/json" {
		t.Fatalf("unexpected content type: %q", backend.attrs[AttrContentType])
	}
	if backend.attrs[attrEventType] != types.EventFeedCreated {
		t.Fatalf("unexpected event type attr: %q", backend.attrs[attrEventType])
	}

	decoded, err := DecodeFeedEvent(Message{ID: "msg-1", Data: backend.data, Attributes: backend.attrs})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.FeedID != 7 || decoded.ProjectID != 3 || len(decoded.FileIDs) != 2 {
		t.Fatalf("unexpected decoded event: %+v", decoded)
	}
	if decoded.OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be stamped")
	}
}

func TestFeedEventPublisherDisabled(t *testing.T) {
	publisher := NewFeedEventPublisher(nil, "feed.events")
	if err := publisher.Publish(context.Background(), types.FeedEvent{Type: types.EventFeedDeleted}); err != nil {
		t.Fatalf("expected disabled publisher to drop events, got %v", err)
	}
}

func TestFeedEventPublisherWrapsBackendError(t *testing.T) {
	backendErr := errors.New("broker down")
	publisher := NewFeedEventPublisher(New(&recordingBackend{err: backendErr}), "feed.events")

	err := publisher.Publish(context.Background(), types.FeedEvent{Type: types.EventFeedUpdated})
	if !errors.Is(err, backendErr) {
		t.Fatalf("expected wrapped backend error, got %v", err)
	}
}

func TestOpenDisabled(t *testing.T) {
	m, err := Open(context.Background(), configNone())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if m != nil {
		t.Fatalf("expected nil mq when disabled")
	}
}

func configNone() config.MQConfig {
	return config.MQConfig{Backend: "none"}
}
