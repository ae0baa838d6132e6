package maker

// book.go — per-token order book store.
//
// Books are rebuilt wholesale from push snapshots and advanced by deltas.
// Sides are kept as sorted level slices (bids descending, asks ascending)
// so touch reads are O(1) and level upserts are a binary search plus a
// slice insert. Deltas arriving before the first snapshot after a
// (re)connect are discarded — the feed always replays a snapshot first.

import (
	"sync"
	"time"

	"github.com/alejandrodnm/polymaker/internal/domain"
)

const (
	// midSampleEvery throttles volatility samples per token.
	midSampleEvery = 10 * time.Second
	// volWindow is the lookback for the realized volatility gate.
	volWindow = 3 * time.Hour
)

type midSample struct {
	mid float64
	at  time.Time
}

// tokenBook holds one token's two sides plus its midpoint history.
type tokenBook struct {
	mu          sync.RWMutex
	bids        []domain.PriceLevel // descending by price
	asks        []domain.PriceLevel // ascending by price
	mids        []midSample
	lastSample  time.Time
	hasSnapshot bool
}

// BookStore owns all order-book state. Ingestion locks one token at a
// time, so a slow decision cycle on one market never blocks book writes
// for another.
type BookStore struct {
	mu      sync.RWMutex
	books   map[string]*tokenBook
	bandPct float64 // depth band around the touch, e.g. 0.02 = 2%
}

// NewBookStore creates an empty store. bandPct controls how far from the
// touch the near-depth aggregation reaches.
func NewBookStore(bandPct float64) *BookStore {
	if bandPct <= 0 {
		bandPct = 0.02
	}
	return &BookStore{
		books:   make(map[string]*tokenBook),
		bandPct: bandPct,
	}
}

func (s *BookStore) book(tokenID string, create bool) *tokenBook {
	s.mu.RLock()
	tb := s.books[tokenID]
	s.mu.RUnlock()
	if tb != nil || !create {
		return tb
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tb = s.books[tokenID]; tb == nil {
		tb = &tokenBook{}
		s.books[tokenID] = tb
	}
	return tb
}

// ApplySnapshot replaces both sides of a token's book.
func (s *BookStore) ApplySnapshot(tokenID string, bids, asks []domain.PriceLevel) {
	tb := s.book(tokenID, true)

	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.bids = sortLevels(bids, true)
	tb.asks = sortLevels(asks, false)
	tb.hasSnapshot = true
	tb.sampleMid(time.Now())
}

// ApplyDelta upserts one level; size 0 removes it. Deltas for tokens
// without a resident snapshot are dropped.
func (s *BookStore) ApplyDelta(tokenID string, side domain.Side, price, size float64) {
	tb := s.book(tokenID, false)
	if tb == nil {
		return
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()

	if !tb.hasSnapshot {
		return
	}
	if side == domain.SideBuy {
		tb.bids = upsertLevel(tb.bids, price, size, true)
	} else {
		tb.asks = upsertLevel(tb.asks, price, size, false)
	}
	tb.sampleMid(time.Now())
}

// Invalidate drops a token's book until the next snapshot arrives.
// Called on feed reconnect so stale deltas cannot resurrect old state.
func (s *BookStore) Invalidate(tokenID string) {
	tb := s.book(tokenID, false)
	if tb == nil {
		return
	}
	tb.mu.Lock()
	tb.bids, tb.asks = nil, nil
	tb.hasSnapshot = false
	tb.mu.Unlock()
}

// InvalidateAll drops every resident book. Used when the push transport
// reconnects and all subscriptions are replayed.
func (s *BookStore) InvalidateAll() {
	s.mu.RLock()
	ids := make([]string, 0, len(s.books))
	for id := range s.books {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	for _, id := range ids {
		s.Invalidate(id)
	}
}

// Summary returns the quoting metrics for a token. ok is false while no
// book is resident or a side is empty — callers must treat that as
// "do not quote", never as zero liquidity.
func (s *BookStore) Summary(tokenID string) (domain.BookSummary, bool) {
	tb := s.book(tokenID, false)
	if tb == nil {
		return domain.BookSummary{}, false
	}

	tb.mu.RLock()
	defer tb.mu.RUnlock()

	if !tb.hasSnapshot || len(tb.bids) == 0 || len(tb.asks) == 0 {
		return domain.BookSummary{}, false
	}

	sum := domain.BookSummary{
		TokenID: tokenID,
		BestBid: tb.bids[0].Price,
		BestAsk: tb.asks[0].Price,
	}

	bidFloor := sum.BestBid * (1 - s.bandPct)
	for _, l := range tb.bids {
		sum.BidSize += l.Size
		if l.Price >= bidFloor {
			sum.BidDepthNear += l.Size
		}
	}
	askCeil := sum.BestAsk * (1 + s.bandPct)
	for _, l := range tb.asks {
		sum.AskSize += l.Size
		if l.Price <= askCeil {
			sum.AskDepthNear += l.Size
		}
	}
	return sum, true
}

// Volatility returns the realized mid-price range volatility over the
// 3h window: (max-min)/latest mid. Returns 0 with fewer than two samples.
func (s *BookStore) Volatility(tokenID string) float64 {
	tb := s.book(tokenID, false)
	if tb == nil {
		return 0
	}

	tb.mu.RLock()
	defer tb.mu.RUnlock()

	cutoff := time.Now().Add(-volWindow)
	var lo, hi, last float64
	n := 0
	for _, m := range tb.mids {
		if m.at.Before(cutoff) {
			continue
		}
		if n == 0 || m.mid < lo {
			lo = m.mid
		}
		if n == 0 || m.mid > hi {
			hi = m.mid
		}
		last = m.mid
		n++
	}
	if n < 2 || last == 0 {
		return 0
	}
	return (hi - lo) / last
}

// sampleMid appends a throttled midpoint sample. Caller holds tb.mu.
func (tb *tokenBook) sampleMid(now time.Time) {
	if len(tb.bids) == 0 || len(tb.asks) == 0 {
		return
	}
	if now.Sub(tb.lastSample) < midSampleEvery {
		return
	}
	tb.lastSample = now
	tb.mids = append(tb.mids, midSample{
		mid: (tb.bids[0].Price + tb.asks[0].Price) / 2,
		at:  now,
	})

	// Prune samples older than the window, amortised.
	cutoff := now.Add(-volWindow)
	firstLive := 0
	for firstLive < len(tb.mids) && tb.mids[firstLive].at.Before(cutoff) {
		firstLive++
	}
	if firstLive > 0 {
		tb.mids = append(tb.mids[:0], tb.mids[firstLive:]...)
	}
}

// sortLevels returns a sorted copy, dropping non-positive sizes.
// desc=true for bids.
func sortLevels(levels []domain.PriceLevel, desc bool) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(levels))
	for _, l := range levels {
		if l.Size > 0 {
			out = append(out, l)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && levelBefore(out[j], out[j-1], desc); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func levelBefore(a, b domain.PriceLevel, desc bool) bool {
	if desc {
		return a.Price > b.Price
	}
	return a.Price < b.Price
}

// upsertLevel inserts, replaces, or removes (size<=0) one level in a
// sorted side via binary search. No two entries ever share a price.
func upsertLevel(levels []domain.PriceLevel, price, size float64, desc bool) []domain.PriceLevel {
	lo, hi := 0, len(levels)
	for lo < hi {
		mid := (lo + hi) / 2
		if levelBefore(levels[mid], domain.PriceLevel{Price: price}, desc) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}

	found := lo < len(levels) && levels[lo].Price == price
	switch {
	case size <= 0 && found:
		return append(levels[:lo], levels[lo+1:]...)
	case size <= 0:
		return levels
	case found:
		levels[lo].Size = size
		return levels
	default:
		levels = append(levels, domain.PriceLevel{})
		copy(levels[lo+1:], levels[lo:])
		levels[lo] = domain.PriceLevel{Price: price, Size: size}
		return levels
	}
}
