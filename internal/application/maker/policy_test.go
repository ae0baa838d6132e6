package maker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polymaker/internal/domain"
)

func quoteInput() QuoteInput {
	return QuoteInput{
		Book: domain.BookSummary{
			TokenID:      "tok",
			BestBid:      0.40,
			BestAsk:      0.43,
			BidDepthNear: 200,
			AskDepthNear: 150,
			BidSize:      500,
			AskSize:      400,
		},
		HasBook:  true,
		Position: domain.Position{TokenID: "tok"},
		Params: domain.Hyperparameters{
			MarketType:          "sports",
			TradeSize:           10,
			MaxSize:             100,
			MinSize:             50,
			MaxSpread:           0.03,
			StopLossThreshold:   0.15,
			TakeProfitThreshold: 0.05,
			SpreadThreshold:     0.04,
			VolatilityThreshold: 0.10,
			SleepPeriodHours:    6,
		},
	}
}

func TestEvaluate_NoBookNoQuotes(t *testing.T) {
	in := quoteInput()
	in.HasBook = false

	d := Evaluate(in)
	assert.Nil(t, d.Buy)
	assert.Nil(t, d.Sell)
	assert.False(t, d.Liquidate)
}

func TestEvaluate_BuyJoinsTrustedTouch(t *testing.T) {
	in := quoteInput()

	d := Evaluate(in)
	require.NotNil(t, d.Buy)
	assert.Equal(t, domain.SideBuy, d.Buy.Side)
	assert.InDelta(t, 0.40, d.Buy.Price, 0.0001)
	assert.InDelta(t, 10, d.Buy.Size, 0.001)
}

func TestEvaluate_BuyUsesSpreadBudgetOnThinTouch(t *testing.T) {
	in := quoteInput()
	in.Book.BidDepthNear = 10 // below min_size: do not trust the touch

	d := Evaluate(in)
	require.NotNil(t, d.Buy)
	// best ask 0.43 minus max_spread 0.03
	assert.InDelta(t, 0.40, d.Buy.Price, 0.0001)
}

func TestEvaluate_BuyStaysOneTickInsideAsk(t *testing.T) {
	in := quoteInput()
	in.Book.BestBid = 0.428
	in.Book.BestAsk = 0.43

	d := Evaluate(in)
	require.NotNil(t, d.Buy)
	assert.LessOrEqual(t, d.Buy.Price, 0.43-0.01+1e-9)
}

func TestEvaluate_BuyPriceBand(t *testing.T) {
	in := quoteInput()
	in.Book.BestBid = 0.05
	in.Book.BestAsk = 0.06

	d := Evaluate(in)
	assert.Nil(t, d.Buy)

	in = quoteInput()
	in.Book.BestBid = 0.95
	in.Book.BestAsk = 0.97

	d = Evaluate(in)
	assert.Nil(t, d.Buy)
}

func TestEvaluate_BuySuppressedByRiskOff(t *testing.T) {
	in := quoteInput()
	in.RiskOff = true

	d := Evaluate(in)
	assert.Nil(t, d.Buy)
}

func TestEvaluate_BuySuppressedByVolatility(t *testing.T) {
	in := quoteInput()
	in.Volatility = 0.20

	assert.Nil(t, Evaluate(in).Buy)

	in.Volatility = 0.05
	assert.NotNil(t, Evaluate(in).Buy)
}

func TestEvaluate_BuySuppressedBySellerHeavyBook(t *testing.T) {
	in := quoteInput()
	in.Book.BidSize = 100
	in.Book.AskSize = 300

	assert.Nil(t, Evaluate(in).Buy)
}

func TestEvaluate_BuySuppressedByDominantReversePosition(t *testing.T) {
	in := quoteInput()
	in.Position.Size = 5
	in.Reverse = domain.Position{TokenID: "rev", Size: 60}

	assert.Nil(t, Evaluate(in).Buy)

	// A small reverse holding does not block buying.
	in.Reverse.Size = 20
	assert.NotNil(t, Evaluate(in).Buy)
}

func TestEvaluate_BuyCapacity(t *testing.T) {
	in := quoteInput()
	in.Position = domain.Position{TokenID: "tok", Size: 96, AvgPrice: 0.40}

	// 96 >= 95% of 100: no new buy order.
	assert.Nil(t, Evaluate(in).Buy)

	// Remaining room shrinks the order below trade_size.
	in.Position.Size = 94
	d := Evaluate(in)
	require.NotNil(t, d.Buy)
	assert.InDelta(t, 6, d.Buy.Size, 0.001)
}

func TestEvaluate_BuyReplaceThresholds(t *testing.T) {
	in := quoteInput()
	live := domain.Order{ExchangeID: "b", TokenID: "tok", Side: domain.SideBuy, Price: 0.398, Size: 10}
	in.BuyOrder = &live

	// Within half a cent and 10% size: leave it alone.
	assert.Nil(t, Evaluate(in).Buy)

	live.Price = 0.39
	assert.NotNil(t, Evaluate(in).Buy)

	live.Price = 0.40
	live.Size = 7
	assert.NotNil(t, Evaluate(in).Buy)
}

func TestEvaluate_BuyRestingOrderSaturatesBudget(t *testing.T) {
	in := quoteInput()
	in.Position = domain.Position{TokenID: "tok", Size: 90, AvgPrice: 0.40}
	in.BuyOrder = &domain.Order{ExchangeID: "b", TokenID: "tok", Side: domain.SideBuy, Price: 0.30, Size: 10}

	// 90 + 10 resting >= 95: no churn even though the price moved.
	assert.Nil(t, Evaluate(in).Buy)
}

func TestEvaluate_SellTakeProfit(t *testing.T) {
	in := quoteInput()
	in.Position = domain.Position{TokenID: "tok", Size: 40, AvgPrice: 0.40}

	d := Evaluate(in)
	require.NotNil(t, d.Sell)
	assert.Equal(t, domain.SideSell, d.Sell.Side)
	assert.InDelta(t, 0.42, d.Sell.Price, 0.0001)
	assert.InDelta(t, 40, d.Sell.Size, 0.001)
}

func TestEvaluate_SellCappedAt99Cents(t *testing.T) {
	in := quoteInput()
	in.Book.BestBid = 0.85
	in.Book.BestAsk = 0.87
	in.Position = domain.Position{TokenID: "tok", Size: 40, AvgPrice: 0.97}

	d := Evaluate(in)
	require.NotNil(t, d.Sell)
	assert.InDelta(t, 0.99, d.Sell.Price, 0.0001)
}

func TestEvaluate_SellReplaceThresholds(t *testing.T) {
	in := quoteInput()
	in.Position = domain.Position{TokenID: "tok", Size: 40, AvgPrice: 0.40}
	live := domain.Order{ExchangeID: "s", TokenID: "tok", Side: domain.SideSell, Price: 0.425, Size: 40}
	in.SellOrder = &live

	// Just over 1% off target, full coverage: keep it.
	assert.Nil(t, Evaluate(in).Sell)

	// More than 2% price deviation forces a replace.
	live.Price = 0.45
	assert.NotNil(t, Evaluate(in).Sell)

	// Under 97% position coverage forces a replace.
	live.Price = 0.42
	live.Size = 38
	assert.NotNil(t, Evaluate(in).Sell)
}

func TestEvaluate_SellOnlyWithPosition(t *testing.T) {
	in := quoteInput()
	assert.Nil(t, Evaluate(in).Sell)
}

func TestEvaluate_StopLossNeedsBothConditions(t *testing.T) {
	in := quoteInput()
	in.Position = domain.Position{TokenID: "tok", Size: 40, AvgPrice: 0.50}

	// Mid 0.415 puts PnL at -17%, spread 0.03 <= 0.04: liquidate.
	d := Evaluate(in)
	require.True(t, d.Liquidate)
	assert.Nil(t, d.Buy)
	assert.Nil(t, d.Sell)
	assert.InDelta(t, 6, d.RiskOffHours, 0.001)

	// Loss above the threshold but a wide spread blocks the exit.
	wide := quoteInput()
	wide.Position = in.Position
	wide.Book.BestBid = 0.38
	wide.Book.BestAsk = 0.45
	assert.False(t, Evaluate(wide).Liquidate)

	// Tight spread but the loss has not breached the threshold.
	small := quoteInput()
	small.Position = domain.Position{TokenID: "tok", Size: 40, AvgPrice: 0.45}
	assert.False(t, Evaluate(small).Liquidate)
}

func TestEvaluate_StopLossBoundaryIsExclusive(t *testing.T) {
	in := quoteInput()
	in.Book.BestBid = 0.42
	in.Book.BestAsk = 0.43 // mid 0.425
	in.Position = domain.Position{TokenID: "tok", Size: 40, AvgPrice: 0.50}
	in.Params.StopLossThreshold = 0.15

	// PnL = (0.425-0.50)/0.50 = -0.15 exactly: not a breach.
	assert.False(t, Evaluate(in).Liquidate)

	in.Params.StopLossThreshold = 0.1499
	assert.True(t, Evaluate(in).Liquidate)
}
