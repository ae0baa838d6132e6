package ports

import (
	"context"

	"github.com/alejandrodnm/polymaker/internal/domain"
)

// BookSnapshotHandler receives a wholesale replacement of a token's book.
type BookSnapshotHandler func(tokenID string, bids, asks []domain.PriceLevel)

// BookDeltaHandler receives one price-level change. Size 0 removes the level.
type BookDeltaHandler func(tokenID string, side domain.Side, price, size float64)

// BookFeed is the push feed of order-book state. Implementations own the
// transport: they reconnect with backoff, resubscribe, and deliver a fresh
// snapshot before any delta after reconnect.
type BookFeed interface {
	// Subscribe connects and subscribes to the given outcome tokens.
	// Handlers must be registered before calling Subscribe.
	Subscribe(ctx context.Context, tokenIDs []string) error

	OnSnapshot(h BookSnapshotHandler)
	OnDelta(h BookDeltaHandler)

	// OnReset registers a handler invoked after the transport reconnects,
	// when resident books cannot be trusted until fresh snapshots arrive.
	OnReset(h func())

	Close() error
}

// UserFeed is the authenticated push feed of this account's own order
// events: fills, placements, cancellations.
type UserFeed interface {
	Subscribe(ctx context.Context, conditionIDs []string) error
	OnEvent(h func(domain.UserEvent))
	Close() error
}
