package domain

import "strconv"

// PriceLevel is one resting level in an order book side.
type PriceLevel struct {
	Price float64
	Size  float64
}

// BookSummary is an immutable snapshot of the metrics the quoting engine
// needs from a token's order book. Produced by the book store; consumers
// never see the underlying level maps.
type BookSummary struct {
	TokenID string
	BestBid float64
	BestAsk float64
	// BidDepthNear / AskDepthNear are the cumulative resting sizes within
	// the configured percentage band of the touch on each side.
	BidDepthNear float64
	AskDepthNear float64
	// BidSize / AskSize are the aggregate resting sizes across the whole side.
	BidSize float64
	AskSize float64
}

// Spread returns best ask minus best bid, or 0 when either side is empty.
func (b BookSummary) Spread() float64 {
	if b.BestBid == 0 || b.BestAsk == 0 {
		return 0
	}
	return b.BestAsk - b.BestBid
}

// Midpoint returns the mid price between the touches, or 0 when either
// side is empty.
func (b BookSummary) Midpoint() float64 {
	if b.BestBid == 0 || b.BestAsk == 0 {
		return 0
	}
	return (b.BestBid + b.BestAsk) / 2
}

// SizeRatio returns aggregate bid size over aggregate ask size.
// A ratio below 1 means more resting sellers than buyers.
func (b BookSummary) SizeRatio() float64 {
	if b.AskSize == 0 {
		return 0
	}
	return b.BidSize / b.AskSize
}

// ParsePrice converts an API price string to float64.
func ParsePrice(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
