package maker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polymaker/internal/domain"
)

func levels(pairs ...float64) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, domain.PriceLevel{Price: pairs[i], Size: pairs[i+1]})
	}
	return out
}

func TestBookStore_SnapshotSummary(t *testing.T) {
	s := NewBookStore(0.02)
	s.ApplySnapshot("tok",
		levels(0.40, 100, 0.39, 50, 0.30, 500), // bids, unsorted input ok
		levels(0.44, 80, 0.45, 20, 0.60, 300),
	)

	sum, ok := s.Summary("tok")
	require.True(t, ok)
	assert.InDelta(t, 0.40, sum.BestBid, 0.0001)
	assert.InDelta(t, 0.44, sum.BestAsk, 0.0001)
	assert.InDelta(t, 650, sum.BidSize, 0.001)
	assert.InDelta(t, 400, sum.AskSize, 0.001)

	// Depth band: 2% of 0.40 keeps 0.40 and 0.392+, so only the touch.
	assert.InDelta(t, 100, sum.BidDepthNear, 0.001)
	// 2% of 0.44 reaches up to 0.4488: only the 0.44 level.
	assert.InDelta(t, 80, sum.AskDepthNear, 0.001)
}

func TestBookStore_SummaryRequiresBothSides(t *testing.T) {
	s := NewBookStore(0.02)
	s.ApplySnapshot("tok", levels(0.40, 100), nil)

	_, ok := s.Summary("tok")
	assert.False(t, ok)

	_, ok = s.Summary("unknown")
	assert.False(t, ok)
}

func TestBookStore_DeltaUpsertAndRemove(t *testing.T) {
	s := NewBookStore(0.02)
	s.ApplySnapshot("tok", levels(0.40, 100, 0.39, 50), levels(0.44, 80))

	// New best bid.
	s.ApplyDelta("tok", domain.SideBuy, 0.41, 25)
	sum, ok := s.Summary("tok")
	require.True(t, ok)
	assert.InDelta(t, 0.41, sum.BestBid, 0.0001)

	// Size 0 removes the level again.
	s.ApplyDelta("tok", domain.SideBuy, 0.41, 0)
	sum, _ = s.Summary("tok")
	assert.InDelta(t, 0.40, sum.BestBid, 0.0001)

	// Replacing an existing level keeps one entry per price.
	s.ApplyDelta("tok", domain.SideSell, 0.44, 10)
	sum, _ = s.Summary("tok")
	assert.InDelta(t, 10, sum.AskSize, 0.001)
}

func TestBookStore_DeltaBeforeSnapshotDropped(t *testing.T) {
	s := NewBookStore(0.02)
	s.ApplyDelta("tok", domain.SideBuy, 0.40, 100)

	_, ok := s.Summary("tok")
	assert.False(t, ok)
}

func TestBookStore_InvalidateDropsBookUntilNextSnapshot(t *testing.T) {
	s := NewBookStore(0.02)
	s.ApplySnapshot("tok", levels(0.40, 100), levels(0.44, 80))
	s.InvalidateAll()

	_, ok := s.Summary("tok")
	require.False(t, ok)

	// Deltas against an invalidated book must not resurrect it.
	s.ApplyDelta("tok", domain.SideBuy, 0.40, 100)
	_, ok = s.Summary("tok")
	require.False(t, ok)

	s.ApplySnapshot("tok", levels(0.41, 10), levels(0.43, 10))
	sum, ok := s.Summary("tok")
	require.True(t, ok)
	assert.InDelta(t, 0.41, sum.BestBid, 0.0001)
}

func TestBookStore_Volatility(t *testing.T) {
	s := NewBookStore(0.02)
	s.ApplySnapshot("tok", levels(0.40, 100), levels(0.44, 80))

	tb := s.book("tok", false)
	require.NotNil(t, tb)

	now := time.Now()
	tb.mu.Lock()
	tb.mids = []midSample{
		{mid: 0.40, at: now.Add(-2 * time.Hour)},
		{mid: 0.48, at: now.Add(-time.Hour)},
		{mid: 0.44, at: now.Add(-time.Minute)},
		// Outside the 3h window, must not widen the range.
		{mid: 0.10, at: now.Add(-4 * time.Hour)},
	}
	tb.mu.Unlock()

	// (0.48 - 0.40) / 0.44
	assert.InDelta(t, 0.1818, s.Volatility("tok"), 0.001)
}

func TestBookStore_VolatilityNeedsTwoSamples(t *testing.T) {
	s := NewBookStore(0.02)
	assert.Equal(t, 0.0, s.Volatility("tok"))

	s.ApplySnapshot("tok", levels(0.40, 100), levels(0.44, 80))
	// ApplySnapshot records a single sample.
	assert.Equal(t, 0.0, s.Volatility("tok"))
}
