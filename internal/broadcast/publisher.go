// Package broadcast fans committed catalog and cart mutations out to listeners.
// Delivery is fire-and-forget and at-most-once; nothing is persisted or replayed.
package broadcast

import (
	"context"

	"storefront/internal/domain"
)

// Publisher accepts events after the originating write has committed.
// Implementations must not block on slow consumers and never report failure to the caller.
type Publisher interface {
	Publish(ctx context.Context, event domain.Event)
}

// Multi publishes to each publisher in order
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event domain.Event) {
	for _, p := range m {
		p.Publish(ctx, event)
	}
}

// Nop discards every event
type Nop struct{}

func (Nop) Publish(context.Context, domain.Event) {}
