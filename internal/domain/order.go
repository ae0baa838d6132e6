package domain

import "time"

// Side of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Order is a live resting order on the exchange. At most one order per
// (token, side) is permitted by policy; the poll reconciler cancels extras.
type Order struct {
	ExchangeID string
	TokenID    string
	Side       Side
	Price      float64
	Size       float64 // shares
	PlacedAt   time.Time
}

// Fill is a confirmed trade event from the user feed.
type Fill struct {
	TradeID   string
	OrderID   string
	TokenID   string
	Side      Side
	Price     float64
	Size      float64 // shares
	Timestamp time.Time
}

// UserEventType classifies user-channel events.
type UserEventType string

const (
	UserEventFill      UserEventType = "FILL"
	UserEventPlaced    UserEventType = "PLACED"
	UserEventCancelled UserEventType = "CANCELLED"
)

// UserEvent is a push notification about this account's own orders.
type UserEvent struct {
	Type      UserEventType
	Order     Order
	Fill      Fill
	Timestamp time.Time
}

// PendingLease marks an in-flight order-affecting call for a token: while
// it lives, the poll path must not overwrite that token's local state.
type PendingLease struct {
	TokenID     string
	Side        Side
	RequestedAt time.Time
}

// DesiredQuote is the quote policy's intent for one side of a token.
type DesiredQuote struct {
	TokenID string
	Side    Side
	Price   float64
	Size    float64 // shares
}
