package maker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polymaker/internal/domain"
)

func TestStateStore_ApplyFillAdvancesPositionAndOrder(t *testing.T) {
	s := NewStateStore()
	s.RecordPlacement(domain.Order{
		ExchangeID: "ord1", TokenID: "tok", Side: domain.SideBuy,
		Price: 0.40, Size: 10,
	})
	s.Lease("tok", domain.SideBuy)

	s.ApplyFill(domain.Fill{
		TradeID: "t1", OrderID: "ord1", TokenID: "tok",
		Side: domain.SideBuy, Price: 0.40, Size: 4,
	})

	p := s.Position("tok")
	assert.InDelta(t, 4, p.Size, 0.001)
	assert.InDelta(t, 0.40, p.AvgPrice, 0.0001)

	o, ok := s.Order("tok", domain.SideBuy)
	require.True(t, ok)
	assert.InDelta(t, 6, o.Size, 0.001)

	// Confirmation clears the lease.
	assert.False(t, s.HasLease("tok"))
}

func TestStateStore_FullFillDropsOrder(t *testing.T) {
	s := NewStateStore()
	s.RecordPlacement(domain.Order{
		ExchangeID: "ord1", TokenID: "tok", Side: domain.SideBuy,
		Price: 0.40, Size: 10,
	})

	s.ApplyFill(domain.Fill{
		TradeID: "t1", OrderID: "ord1", TokenID: "tok",
		Side: domain.SideBuy, Price: 0.40, Size: 10,
	})

	_, ok := s.Order("tok", domain.SideBuy)
	assert.False(t, ok)
}

func TestStateStore_SellFillReducesWithoutMovingEntry(t *testing.T) {
	s := NewStateStore()
	s.ApplyFill(domain.Fill{TradeID: "b", TokenID: "tok", Side: domain.SideBuy, Price: 0.40, Size: 20})
	s.ApplyFill(domain.Fill{TradeID: "s", TokenID: "tok", Side: domain.SideSell, Price: 0.50, Size: 5})

	p := s.Position("tok")
	assert.InDelta(t, 15, p.Size, 0.001)
	assert.InDelta(t, 0.40, p.AvgPrice, 0.0001)
}

func TestStateStore_OrderEvents(t *testing.T) {
	s := NewStateStore()

	s.ApplyOrderEvent(domain.UserEvent{
		Type: domain.UserEventPlaced,
		Order: domain.Order{
			ExchangeID: "ord1", TokenID: "tok", Side: domain.SideSell,
			Price: 0.55, Size: 8,
		},
	})
	o, ok := s.Order("tok", domain.SideSell)
	require.True(t, ok)
	assert.Equal(t, "ord1", o.ExchangeID)

	// Cancellation for a different exchange ID must not drop it.
	s.ApplyOrderEvent(domain.UserEvent{
		Type:  domain.UserEventCancelled,
		Order: domain.Order{ExchangeID: "other", TokenID: "tok", Side: domain.SideSell},
	})
	_, ok = s.Order("tok", domain.SideSell)
	assert.True(t, ok)

	s.ApplyOrderEvent(domain.UserEvent{
		Type:  domain.UserEventCancelled,
		Order: domain.Order{ExchangeID: "ord1", TokenID: "tok", Side: domain.SideSell},
	})
	_, ok = s.Order("tok", domain.SideSell)
	assert.False(t, ok)
}

func TestStateStore_SweepLeases(t *testing.T) {
	s := NewStateStore()
	s.Lease("tok", domain.SideBuy)

	assert.Empty(t, s.SweepLeases(time.Now()))
	assert.True(t, s.HasLease("tok"))

	expired := s.SweepLeases(time.Now().Add(leaseTimeout + time.Second))
	require.Len(t, expired, 1)
	assert.Equal(t, "tok", expired[0].TokenID)
	assert.False(t, s.HasLease("tok"))
}

func TestStateStore_ReconcilePositionsSkipsLeasedToken(t *testing.T) {
	s := NewStateStore()
	s.ApplyFill(domain.Fill{TradeID: "t", TokenID: "tok", Side: domain.SideBuy, Price: 0.40, Size: 10})
	s.Lease("tok", domain.SideSell)

	fetchedAt := time.Now().Add(time.Second)
	s.ReconcilePositions(fetchedAt, []domain.Position{{TokenID: "tok", Size: 99, AvgPrice: 0.1}})

	// The poll result is ignored for the leased token.
	assert.InDelta(t, 10, s.Position("tok").Size, 0.001)

	s.ClearLease("tok", domain.SideSell)
	s.ReconcilePositions(time.Now().Add(time.Second), []domain.Position{{TokenID: "tok", Size: 99, AvgPrice: 0.1}})
	assert.InDelta(t, 99, s.Position("tok").Size, 0.001)
}

func TestStateStore_ReconcilePositionsSkipsFresherPush(t *testing.T) {
	s := NewStateStore()
	fetchedAt := time.Now()

	// Push event lands after the poll snapshot was taken.
	s.ApplyFill(domain.Fill{TradeID: "t", TokenID: "tok", Side: domain.SideBuy, Price: 0.40, Size: 10})

	s.ReconcilePositions(fetchedAt, []domain.Position{{TokenID: "tok", Size: 3, AvgPrice: 0.40}})
	assert.InDelta(t, 10, s.Position("tok").Size, 0.001)
}

func TestStateStore_ReconcilePositionsFlattensMissingTokens(t *testing.T) {
	s := NewStateStore()
	s.ApplyFill(domain.Fill{TradeID: "t", TokenID: "tok", Side: domain.SideBuy, Price: 0.40, Size: 10})

	s.ReconcilePositions(time.Now().Add(time.Second), nil)
	assert.Equal(t, 0.0, s.Position("tok").Size)
}

func TestStateStore_ReconcileOrdersKeepsNewestDuplicate(t *testing.T) {
	s := NewStateStore()
	older := domain.Order{
		ExchangeID: "old", TokenID: "tok", Side: domain.SideBuy,
		Price: 0.40, Size: 10, PlacedAt: time.Now().Add(-time.Minute),
	}
	newer := domain.Order{
		ExchangeID: "new", TokenID: "tok", Side: domain.SideBuy,
		Price: 0.41, Size: 10, PlacedAt: time.Now(),
	}

	extras := s.ReconcileOrders(time.Now().Add(time.Second), []domain.Order{older, newer})
	require.Len(t, extras, 1)
	assert.Equal(t, "old", extras[0].ExchangeID)

	o, ok := s.Order("tok", domain.SideBuy)
	require.True(t, ok)
	assert.Equal(t, "new", o.ExchangeID)
}

func TestStateStore_ReconcileOrdersDropsVanished(t *testing.T) {
	s := NewStateStore()
	s.RecordPlacement(domain.Order{ExchangeID: "gone", TokenID: "tok", Side: domain.SideBuy, Size: 5})

	s.ReconcileOrders(time.Now().Add(time.Second), nil)
	_, ok := s.Order("tok", domain.SideBuy)
	assert.False(t, ok)
}

func TestStateStore_AdjustForMerge(t *testing.T) {
	s := NewStateStore()
	s.ApplyFill(domain.Fill{TradeID: "y", TokenID: "yes", Side: domain.SideBuy, Price: 0.40, Size: 30})
	s.ApplyFill(domain.Fill{TradeID: "n", TokenID: "no", Side: domain.SideBuy, Price: 0.55, Size: 25})

	s.AdjustForMerge("yes", "no", 25)

	assert.InDelta(t, 5, s.Position("yes").Size, 0.001)
	assert.Equal(t, 0.0, s.Position("no").Size)
	// Entry price survives the merge on the remaining leg.
	assert.InDelta(t, 0.40, s.Position("yes").AvgPrice, 0.0001)

	// A poll snapshot fetched before the merge must not roll it back.
	s.ReconcilePositions(time.Now().Add(-time.Second), []domain.Position{
		{TokenID: "yes", Size: 30, AvgPrice: 0.40},
		{TokenID: "no", Size: 25, AvgPrice: 0.55},
	})
	assert.InDelta(t, 5, s.Position("yes").Size, 0.001)
}
