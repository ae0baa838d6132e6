package domain

// Position is the holding in one outcome token. Size is in shares and
// never negative. AvgPrice is the volume-weighted entry price; it moves
// only on size-increasing fills, never on exits.
type Position struct {
	TokenID  string
	Size     float64
	AvgPrice float64
}

// CostBasis returns the USDC spent acquiring the current position.
func (p Position) CostBasis() float64 {
	return p.Size * p.AvgPrice
}

// PnLFraction returns the unrealized profit or loss at mark, as a fraction
// of cost basis. Returns 0 for empty positions or a zero entry price.
func (p Position) PnLFraction(mark float64) float64 {
	if p.Size <= 0 || p.AvgPrice <= 0 {
		return 0
	}
	return (mark - p.AvgPrice) / p.AvgPrice
}

// AddFill returns the position after buying size shares at price,
// recomputing the volume-weighted average entry.
func (p Position) AddFill(price, size float64) Position {
	if size <= 0 {
		return p
	}
	total := p.Size + size
	p.AvgPrice = (p.Size*p.AvgPrice + size*price) / total
	p.Size = total
	return p
}

// ReduceFill returns the position after selling size shares. AvgPrice is
// left untouched; size is clamped at zero.
func (p Position) ReduceFill(size float64) Position {
	if size <= 0 {
		return p
	}
	p.Size -= size
	if p.Size < 0 {
		p.Size = 0
	}
	return p
}
