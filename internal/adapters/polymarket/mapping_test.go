package polymarket

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polymaker/internal/domain"
)

func TestMapOpenOrder_RemainingSize(t *testing.T) {
	o := mapOpenOrder(clobOpenOrder{
		ID:           "ord1",
		AssetID:      "tok",
		Side:         "BUY",
		OriginalSize: "100",
		SizeMatched:  "37.5",
		Price:        "0.42",
		CreatedAt:    "1724500000",
	})

	assert.Equal(t, "ord1", o.ExchangeID)
	assert.Equal(t, domain.SideBuy, o.Side)
	assert.InDelta(t, 62.5, o.Size, 0.001)
	assert.InDelta(t, 0.42, o.Price, 0.0001)
	assert.False(t, o.PlacedAt.IsZero())
}

func TestMapOpenOrder_OverMatchedClampsAtZero(t *testing.T) {
	o := mapOpenOrder(clobOpenOrder{OriginalSize: "10", SizeMatched: "11"})
	assert.Equal(t, 0.0, o.Size)
}

func TestMapPositions_DropsRedeemableAndEmpty(t *testing.T) {
	positions := mapPositions([]dataPosition{
		{Asset: "tok1", Size: 30, AvgPrice: 0.40},
		{Asset: "tok2", Size: 10, AvgPrice: 0.55, Redeemable: true},
		{Asset: "tok3", Size: 0, AvgPrice: 0.20},
	})

	require.Len(t, positions, 1)
	assert.Equal(t, "tok1", positions[0].TokenID)
	assert.InDelta(t, 0.40, positions[0].AvgPrice, 0.0001)
}

func TestMapWSLevels_DropsMalformed(t *testing.T) {
	levels := mapWSLevels([]wsBookLevel{
		{Price: "0.40", Size: "100"},
		{Price: "bad", Size: "10"},
		{Price: "0", Size: "10"},
		{Price: "0.41", Size: "x"},
	})

	require.Len(t, levels, 1)
	assert.InDelta(t, 0.40, levels[0].Price, 0.0001)
	assert.InDelta(t, 100, levels[0].Size, 0.001)
}

func TestParseTimestamp_Formats(t *testing.T) {
	// Unix seconds and milliseconds.
	assert.Equal(t, int64(1724500000), parseTimestamp("1724500000").Unix())
	assert.Equal(t, int64(1724500000), parseTimestamp("1724500000123").Unix())

	// ISO shapes.
	iso := parseTimestamp("2026-08-30T10:00:00Z")
	assert.Equal(t, 2026, iso.Year())
	assert.False(t, parseTimestamp("2026-08-30 10:00:00").IsZero())

	assert.True(t, parseTimestamp("").IsZero())
	assert.True(t, parseTimestamp("not-a-date").IsZero())
}

func TestMapOrderMessage(t *testing.T) {
	placed := mapOrderMessage(wsOrderMessage{
		ID: "ord1", AssetID: "tok", Side: "SELL",
		Price: "0.55", OriginalSize: "40", SizeMatched: "10",
		Type: "PLACEMENT",
	})
	require.Len(t, placed, 1)
	assert.Equal(t, domain.UserEventPlaced, placed[0].Type)
	assert.Equal(t, domain.SideSell, placed[0].Order.Side)
	assert.InDelta(t, 30, placed[0].Order.Size, 0.001)

	cancelled := mapOrderMessage(wsOrderMessage{ID: "ord1", AssetID: "tok", Type: "CANCELLATION"})
	require.Len(t, cancelled, 1)
	assert.Equal(t, domain.UserEventCancelled, cancelled[0].Type)

	assert.Empty(t, mapOrderMessage(wsOrderMessage{Type: "UNKNOWN"}))
}

func TestMapTradeMessage_MakerFills(t *testing.T) {
	msg := wsTradeMessage{
		ID: "trade1", AssetID: "tok", Side: "SELL",
		Price: "0.42", Size: "10", Status: "MATCHED",
		MatchTime: "1724500000",
	}
	msg.MakerOrders = append(msg.MakerOrders, struct {
		OrderID       string `json:"order_id"`
		AssetID       string `json:"asset_id"`
		MatchedAmount string `json:"matched_amount"`
		Price         string `json:"price"`
	}{OrderID: "ord1", AssetID: "tok", MatchedAmount: "6", Price: "0.42"})

	events := mapTradeMessage(msg)
	require.Len(t, events, 1)

	f := events[0].Fill
	assert.Equal(t, "trade1-0", f.TradeID)
	assert.Equal(t, "ord1", f.OrderID)
	// The taker sold, so our resting maker order bought.
	assert.Equal(t, domain.SideBuy, f.Side)
	assert.InDelta(t, 6, f.Size, 0.001)
	assert.Equal(t, time.Unix(1724500000, 0).UTC(), f.Timestamp)
}

func TestMapTradeMessage_TakerFill(t *testing.T) {
	events := mapTradeMessage(wsTradeMessage{
		ID: "trade2", AssetID: "tok", Side: "SELL",
		Price: "0.38", Size: "40", Status: "MATCHED",
		TakerOrderID: "exit1",
	})

	require.Len(t, events, 1)
	assert.Equal(t, "trade2", events[0].Fill.TradeID)
	assert.Equal(t, domain.SideSell, events[0].Fill.Side)
	assert.InDelta(t, 40, events[0].Fill.Size, 0.001)
}

func TestMapTradeMessage_OnlyMatchedStatusApplies(t *testing.T) {
	for _, status := range []string{"MINED", "CONFIRMED", "RETRYING", "FAILED"} {
		events := mapTradeMessage(wsTradeMessage{ID: "t", Status: status, Size: "10"})
		assert.Empty(t, events, status)
	}
}

func TestOrderAlreadyGone(t *testing.T) {
	gone := []error{
		&apiError{status: 404, body: "order not found"},
		&apiError{status: 400, body: "Order Already canceled"},
		&apiError{status: 400, body: "order does not exist"},
		fmt.Errorf("cancel: %w", &apiError{status: 404, body: "not found"}),
	}
	for _, err := range gone {
		assert.True(t, orderAlreadyGone(err), err.Error())
	}

	assert.False(t, orderAlreadyGone(&apiError{status: 500, body: "internal"}))
	assert.False(t, orderAlreadyGone(fmt.Errorf("network timeout")))
}
