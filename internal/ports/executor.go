package ports

import (
	"context"

	"github.com/alejandrodnm/polymaker/internal/domain"
)

// OrderExecutor places, cancels, and queries real orders on the exchange.
// The CLOB has no amend operation: resizing or repricing is always
// cancel-then-place.
type OrderExecutor interface {
	// CreateOrder signs and submits a GTC limit order. Returns the
	// exchange order ID.
	CreateOrder(ctx context.Context, tokenID string, side domain.Side, price, size float64, negRisk bool) (string, error)

	// CancelOrder cancels one order by exchange ID. Cancelling an order
	// that is already gone is success, not an error.
	CancelOrder(ctx context.Context, exchangeID string) error

	// CancelTokenOrders cancels every open order for one token.
	CancelTokenOrders(ctx context.Context, tokenID string) error

	// CancelMarketOrders cancels every open order for one market
	// (both outcome tokens).
	CancelMarketOrders(ctx context.Context, conditionID string) error

	// GetOpenOrders returns all currently resting orders for this account.
	GetOpenOrders(ctx context.Context) ([]domain.Order, error)

	// GetPositions returns all outcome-token positions for this account.
	GetPositions(ctx context.Context) ([]domain.Position, error)

	// GetBalance returns the available USDC.e balance.
	GetBalance(ctx context.Context) (float64, error)
}
