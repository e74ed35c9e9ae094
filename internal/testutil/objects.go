package testutil

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/nexus-collab/apiserver/internal/storage"
	"github.com/nexus-collab/apiserver/types"
)

// MemoryObjects is an object storage backend kept in a map.
type MemoryObjects struct {
	mu           sync.Mutex
	objects      map[string][]byte
	contentTypes map[string]string

	// FailPut, when set, is returned by Put for every key.
	FailPut error
}

func NewMemoryObjects() *MemoryObjects {
	return &MemoryObjects{
		objects:      make(map[string][]byte),
		contentTypes: make(map[string]string),
	}
}

func (o *MemoryObjects) EnsureBucket(ctx context.Context) error { return nil }

func (o *MemoryObjects) Bucket() string { return "memory" }

func (o *MemoryObjects) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if o.FailPut != nil {
		return o.FailPut
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.objects[key] = data
	o.contentTypes[key] = contentType
	return nil
}

func (o *MemoryObjects) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	data, ok := o.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (o *MemoryObjects) Delete(ctx context.Context, key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.objects, key)
	delete(o.contentTypes, key)
	return nil
}

// Has reports whether key is stored.
func (o *MemoryObjects) Has(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.objects[key]
	return ok
}

// Len returns the number of stored objects.
func (o *MemoryObjects) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.objects)
}

// RecordingPublisher collects published feed events.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []types.FeedEvent
}

func (p *RecordingPublisher) Publish(ctx context.Context, event types.FeedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Events returns a copy of the events published so far.
func (p *RecordingPublisher) Events() []types.FeedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]types.FeedEvent(nil), p.events...)
}
