package realtime

import (
	"context"
	"fmt"
	"sync"

	models "tenderplan/internal/domain/models/outline"
)

// Message carries a client event between server instances.
type Message struct {
	ProjectID string             `json:"project_id"`
	Event     models.ClientEvent `json:"event"`
}

// Bus fans client events out to every server instance, including the sender.
type Bus interface {
	Publish(ctx context.Context, msg Message) error
	StartForwarder(ctx context.Context, onMsg func(Message)) error
	Close() error
}

// localBus delivers messages in-process. Used when no Redis is configured.
type localBus struct {
	mu       sync.RWMutex
	handlers []func(Message)
}

// NewLocalBus creates a single-instance bus.
func NewLocalBus() Bus {
	return &localBus{}
}

func (b *localBus) Publish(_ context.Context, msg Message) error {
	b.mu.RLock()
	handlers := b.handlers
	b.mu.RUnlock()
	for _, h := range handlers {
		h(msg)
	}
	return nil
}

func (b *localBus) StartForwarder(ctx context.Context, onMsg func(Message)) error {
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}
	b.mu.Lock()
	b.handlers = append(b.handlers[:len(b.handlers):len(b.handlers)], onMsg)
	b.mu.Unlock()
	return nil
}

func (b *localBus) Close() error {
	b.mu.Lock()
	b.handlers = nil
	b.mu.Unlock()
	return nil
}
