package credential

import (
	"context"
	"sync"
)

// Scope names the collection a change event refers to.
type Scope string

const (
	ScopeProviderKeys Scope = "provider_keys"
	ScopeGatewayKeys  Scope = "gateway_keys"
)

// ChangeEvent notifies subscribers that a user's key list changed.
type ChangeEvent struct {
	UserID   string
	Scope    Scope
	Provider string
}

// Subscriber receives change events. It must not block.
type Subscriber func(ctx context.Context, event ChangeEvent)

// Notifier fans change events out to subscribers.
type Notifier struct {
	mu          sync.RWMutex
	subscribers []Subscriber
}

// NewNotifier constructs an empty Notifier.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Subscribe registers fn for future events.
func (n *Notifier) Subscribe(fn Subscriber) {
	if n == nil || fn == nil {
		return
	}
	n.mu.Lock()
	n.subscribers = append(n.subscribers, fn)
	n.mu.Unlock()
}

// Publish delivers event to every subscriber.
func (n *Notifier) Publish(ctx context.Context, event ChangeEvent) {
	if n == nil {
		return
	}
	n.mu.RLock()
	subscribers := append([]Subscriber(nil), n.subscribers...)
	n.mu.RUnlock()
	for _, fn := range subscribers {
		fn(ctx, event)
	}
}
