package polymarket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polymaker/internal/domain"
)

func TestMarketFeed_HandleBookSnapshot(t *testing.T) {
	f := NewMarketFeed("wss://example.invalid")

	var gotToken string
	var gotBids, gotAsks []domain.PriceLevel
	f.OnSnapshot(func(tokenID string, bids, asks []domain.PriceLevel) {
		gotToken = tokenID
		gotBids, gotAsks = bids, asks
	})

	f.handleMessage([]byte(`{
		"event_type": "book",
		"asset_id": "tok1",
		"bids": [{"price": "0.40", "size": "100"}, {"price": "0.39", "size": "50"}],
		"asks": [{"price": "0.44", "size": "80"}]
	}`))

	assert.Equal(t, "tok1", gotToken)
	require.Len(t, gotBids, 2)
	require.Len(t, gotAsks, 1)
	assert.InDelta(t, 0.40, gotBids[0].Price, 0.0001)
}

func TestMarketFeed_HandlePriceChangeBatch(t *testing.T) {
	f := NewMarketFeed("wss://example.invalid")

	type delta struct {
		token string
		side  domain.Side
		price float64
		size  float64
	}
	var deltas []delta
	f.OnDelta(func(tokenID string, side domain.Side, price, size float64) {
		deltas = append(deltas, delta{tokenID, side, price, size})
	})

	// Array frame with one price_change carrying two level updates.
	f.handleMessage([]byte(`[{
		"event_type": "price_change",
		"asset_id": "tok1",
		"changes": [
			{"price": "0.41", "size": "25", "side": "BUY"},
			{"asset_id": "tok2", "price": "0.44", "size": "0", "side": "SELL"}
		]
	}]`))

	require.Len(t, deltas, 2)
	assert.Equal(t, delta{"tok1", domain.SideBuy, 0.41, 25}, deltas[0])
	assert.Equal(t, delta{"tok2", domain.SideSell, 0.44, 0}, deltas[1])
}

func TestMarketFeed_IgnoresUnknownAndMalformed(t *testing.T) {
	f := NewMarketFeed("wss://example.invalid")

	called := false
	f.OnSnapshot(func(string, []domain.PriceLevel, []domain.PriceLevel) { called = true })
	f.OnDelta(func(string, domain.Side, float64, float64) { called = true })

	f.handleMessage([]byte(`{"event_type": "tick_size_change"}`))
	f.handleMessage([]byte(`not json`))
	f.handleMessage([]byte(`[]`))

	assert.False(t, called)
}

func TestMarketFeed_FireReset(t *testing.T) {
	f := NewMarketFeed("wss://example.invalid")

	resets := 0
	f.OnReset(func() { resets++ })
	f.fireReset()

	assert.Equal(t, 1, resets)
}

func TestUserEventFeed_RoutesOrderAndTradeMessages(t *testing.T) {
	f := NewUserEventFeed("wss://example.invalid", nil)

	var events []domain.UserEvent
	f.OnEvent(func(ev domain.UserEvent) { events = append(events, ev) })

	f.handleMessage([]byte(`{
		"event_type": "order",
		"id": "ord1", "asset_id": "tok", "side": "BUY",
		"price": "0.40", "original_size": "10", "size_matched": "0",
		"type": "PLACEMENT"
	}`))
	f.handleMessage([]byte(`{
		"event_type": "trade",
		"id": "trade1", "asset_id": "tok", "side": "SELL",
		"price": "0.40", "size": "4", "status": "MATCHED",
		"maker_orders": [
			{"order_id": "ord1", "asset_id": "tok", "matched_amount": "4", "price": "0.40"}
		]
	}`))
	// The CONFIRMED re-emission of the same trade is dropped.
	f.handleMessage([]byte(`{
		"event_type": "trade",
		"id": "trade1", "asset_id": "tok", "side": "SELL",
		"price": "0.40", "size": "4", "status": "CONFIRMED"
	}`))

	require.Len(t, events, 2)
	assert.Equal(t, domain.UserEventPlaced, events[0].Type)
	assert.Equal(t, domain.UserEventFill, events[1].Type)
	assert.Equal(t, domain.SideBuy, events[1].Fill.Side)
	assert.InDelta(t, 4, events[1].Fill.Size, 0.001)
}
