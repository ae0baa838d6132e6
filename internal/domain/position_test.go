package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPosition_AddFillVWAP(t *testing.T) {
	p := Position{TokenID: "tok"}
	p = p.AddFill(0.40, 10)
	p = p.AddFill(0.50, 10)

	assert.InDelta(t, 20.0, p.Size, 0.001)
	assert.InDelta(t, 0.45, p.AvgPrice, 0.0001)
}

func TestPosition_AddFillIgnoresNonPositiveSize(t *testing.T) {
	p := Position{TokenID: "tok", Size: 10, AvgPrice: 0.40}
	assert.Equal(t, p, p.AddFill(0.90, 0))
	assert.Equal(t, p, p.AddFill(0.90, -5))
}

func TestPosition_ReduceFillKeepsAvgPrice(t *testing.T) {
	p := Position{TokenID: "tok", Size: 30, AvgPrice: 0.42}
	p = p.ReduceFill(12)

	assert.InDelta(t, 18.0, p.Size, 0.001)
	assert.InDelta(t, 0.42, p.AvgPrice, 0.0001)
}

func TestPosition_ReduceFillClampsAtZero(t *testing.T) {
	p := Position{TokenID: "tok", Size: 5, AvgPrice: 0.42}
	p = p.ReduceFill(9)
	assert.Equal(t, 0.0, p.Size)
}

func TestPosition_PnLFraction(t *testing.T) {
	p := Position{TokenID: "tok", Size: 10, AvgPrice: 0.50}

	assert.InDelta(t, 0.10, p.PnLFraction(0.55), 0.0001)
	assert.InDelta(t, -0.20, p.PnLFraction(0.40), 0.0001)
	assert.Equal(t, 0.0, Position{}.PnLFraction(0.55))
}

func TestPosition_CostBasis(t *testing.T) {
	p := Position{Size: 25, AvgPrice: 0.40}
	assert.InDelta(t, 10.0, p.CostBasis(), 0.0001)
}
