package maker

// lifecycle.go — order lifecycle manager.
//
// Turns desired quotes into the minimal set of exchange mutations. The
// CLOB is cancel/replace only, so a quote that moved beyond the policy
// thresholds becomes cancel-then-place. Every order-affecting call takes
// a PendingLease first, and state is updated optimistically; the push
// feed confirms, the poll corrects.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/polymaker/internal/domain"
	"github.com/alejandrodnm/polymaker/internal/ports"
)

// Lifecycle issues create/cancel operations against the exchange.
type Lifecycle struct {
	exec  ports.OrderExecutor
	state *StateStore
}

// NewLifecycle creates a lifecycle manager writing through the given
// state store.
func NewLifecycle(exec ports.OrderExecutor, state *StateStore) *Lifecycle {
	return &Lifecycle{exec: exec, state: state}
}

// ApplyQuote reconciles one desired quote against the live order for its
// (token, side). The policy only emits a quote when action is needed, so
// a live order here always means cancel-then-place. Exchange rejections
// drop the intent for this cycle; the next cycle re-derives it.
func (l *Lifecycle) ApplyQuote(ctx context.Context, q domain.DesiredQuote, negRisk bool) (placed, cancelled int) {
	if live, ok := l.state.Order(q.TokenID, q.Side); ok {
		if err := l.cancel(ctx, live); err != nil {
			slog.Warn("lifecycle: cancel before replace failed, dropping intent",
				"token", q.TokenID, "side", q.Side, "err", err)
			return 0, 0
		}
		cancelled++
	}

	if err := l.place(ctx, q, negRisk); err != nil {
		slog.Warn("lifecycle: place failed, dropping intent",
			"token", q.TokenID, "side", q.Side,
			"price", fmt.Sprintf("%.3f", q.Price),
			"size", fmt.Sprintf("%.1f", q.Size),
			"err", err)
		return 0, cancelled
	}
	return 1, cancelled
}

// Liquidate exits a position at market: cancels everything resting on the
// token and sells the full size against the bid. Bypasses all replace
// thresholds.
func (l *Lifecycle) Liquidate(ctx context.Context, tokenID string, bestBid, size float64, negRisk bool) error {
	l.state.Lease(tokenID, domain.SideBuy)
	l.state.Lease(tokenID, domain.SideSell)

	if err := l.exec.CancelTokenOrders(ctx, tokenID); err != nil {
		l.state.ClearLease(tokenID, domain.SideBuy)
		l.state.ClearLease(tokenID, domain.SideSell)
		return fmt.Errorf("lifecycle.Liquidate: cancel token orders: %w", err)
	}
	l.state.RecordCancellation(tokenID, domain.SideBuy)
	l.state.RecordCancellation(tokenID, domain.SideSell)
	l.state.ClearLease(tokenID, domain.SideBuy)

	// Marketable limit at the touch: crosses immediately against the bid.
	q := domain.DesiredQuote{
		TokenID: tokenID,
		Side:    domain.SideSell,
		Price:   bestBid,
		Size:    size,
	}
	if err := l.place(ctx, q, negRisk); err != nil {
		return fmt.Errorf("lifecycle.Liquidate: place exit order: %w", err)
	}
	return nil
}

// place leases (token, side), submits, and optimistically records the
// new order.
func (l *Lifecycle) place(ctx context.Context, q domain.DesiredQuote, negRisk bool) error {
	l.state.Lease(q.TokenID, q.Side)

	exchangeID, err := l.exec.CreateOrder(ctx, q.TokenID, q.Side, q.Price, q.Size, negRisk)
	if err != nil {
		l.state.ClearLease(q.TokenID, q.Side)
		return err
	}
	if exchangeID == "" {
		// Delayed-match responses omit the id; track under a local one
		// until the poll reports the real order.
		exchangeID = "local-" + uuid.New().String()
	}

	l.state.RecordPlacement(domain.Order{
		ExchangeID: exchangeID,
		TokenID:    q.TokenID,
		Side:       q.Side,
		Price:      q.Price,
		Size:       q.Size,
		PlacedAt:   time.Now().UTC(),
	})

	slog.Info("lifecycle: order placed",
		"token", q.TokenID,
		"side", q.Side,
		"price", fmt.Sprintf("%.3f", q.Price),
		"size", fmt.Sprintf("%.1f", q.Size),
		"id", exchangeID,
	)
	return nil
}

// cancel leases (token, side) and cancels the live order. A cancel on an
// order that already disappeared is success — the adapter maps those.
func (l *Lifecycle) cancel(ctx context.Context, live domain.Order) error {
	l.state.Lease(live.TokenID, live.Side)

	if err := l.exec.CancelOrder(ctx, live.ExchangeID); err != nil {
		l.state.ClearLease(live.TokenID, live.Side)
		return err
	}
	l.state.RecordCancellation(live.TokenID, live.Side)

	slog.Debug("lifecycle: order cancelled",
		"token", live.TokenID,
		"side", live.Side,
		"id", live.ExchangeID,
	)
	return nil
}
