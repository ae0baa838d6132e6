package maker

// policy.go — quote policy.
//
// Pure computation: (book summary, position, resting orders,
// hyperparameters, risk state) → desired quotes. No I/O, no clocks, no
// locks; everything it needs arrives in QuoteInput, which makes the
// threshold edges directly testable.

import "github.com/alejandrodnm/polymaker/internal/domain"

const (
	// Quoting price band. Targets outside it are never quoted, whatever
	// the other gates say.
	minQuotePrice = 0.10
	maxQuotePrice = 0.90

	// Replace thresholds for the buy side: live orders are churned only
	// when the target moved more than half a cent or 10% in size.
	buyReplacePriceDelta = 0.005
	buyReplaceSizeFrac   = 0.10

	// A buy order is only (re)created while position + resting buy size
	// sits below this fraction of max_size.
	buyCapacityFrac = 0.95

	// Sell-side replace thresholds: 2% price deviation, or the live order
	// covering less than 97% of the position.
	sellReplacePriceFrac = 0.02
	sellCoverageFrac     = 0.97
)

// QuoteInput is everything the policy evaluates for one token.
type QuoteInput struct {
	Book    domain.BookSummary
	HasBook bool

	Position domain.Position
	Reverse  domain.Position // position in the opposite outcome token

	BuyOrder  *domain.Order // live resting buy, if any
	SellOrder *domain.Order // live resting sell, if any

	Params     domain.Hyperparameters
	RiskOff    bool    // risk-off window active for the market
	Volatility float64 // realized 3h volatility
}

// QuoteDecision is the policy output for one token. Buy/Sell are non-nil
// only when the lifecycle manager should act; a live order already within
// thresholds yields nil. Liquidate bypasses the replace thresholds
// entirely and carries the risk-off window to open.
type QuoteDecision struct {
	Buy          *domain.DesiredQuote
	Sell         *domain.DesiredQuote
	Liquidate    bool
	RiskOffHours float64
}

// Evaluate derives the desired quotes for one token.
func Evaluate(in QuoteInput) QuoteDecision {
	if !in.HasBook {
		// No resident book means no market view at all: do not quote.
		return QuoteDecision{}
	}

	if liq := evaluateStopLoss(in); liq {
		return QuoteDecision{
			Liquidate:    true,
			RiskOffHours: in.Params.SleepPeriodHours,
		}
	}

	return QuoteDecision{
		Buy:  evaluateBuy(in),
		Sell: evaluateSell(in),
	}
}

// evaluateStopLoss fires when unrealized PnL breaches the stop threshold
// while the spread is tight enough that a market exit is not itself
// costly. Both conditions are required.
func evaluateStopLoss(in QuoteInput) bool {
	if in.Position.Size <= 0 || in.Params.StopLossThreshold <= 0 {
		return false
	}
	mark := in.Book.Midpoint()
	if mark == 0 {
		return false
	}
	if in.Position.PnLFraction(mark) >= -in.Params.StopLossThreshold {
		return false
	}
	return in.Book.Spread() <= in.Params.SpreadThreshold
}

// evaluateBuy computes the target bid and applies the suppression gates,
// then the replace thresholds against any live order.
func evaluateBuy(in QuoteInput) *domain.DesiredQuote {
	if in.RiskOff {
		return nil
	}
	if in.Params.VolatilityThreshold > 0 && in.Volatility > in.Params.VolatilityThreshold {
		return nil
	}
	// More resting sellers than buyers: stand aside.
	if in.Book.SizeRatio() < 1 {
		return nil
	}
	// Buying this side while heavily long the opposite outcome is blocked;
	// that exposure resolves through merges, not more inventory.
	if in.Reverse.Size > in.Position.Size && in.Reverse.Size >= in.Params.EffectiveMaxSize()/2 {
		return nil
	}

	target := targetBid(in.Book, in.Params)
	if target < minQuotePrice || target > maxQuotePrice {
		return nil
	}

	maxSize := in.Params.EffectiveMaxSize()
	size := in.Params.TradeSize
	if room := maxSize - in.Position.Size; room < size {
		size = room
	}
	if size <= 0 {
		return nil
	}

	quote := &domain.DesiredQuote{
		TokenID: in.Position.TokenID,
		Side:    domain.SideBuy,
		Price:   target,
		Size:    size,
	}

	if in.BuyOrder == nil {
		// Place only while there is real capacity left.
		if in.Position.Size >= buyCapacityFrac*maxSize {
			return nil
		}
		return quote
	}

	if in.Position.Size+in.BuyOrder.Size >= buyCapacityFrac*maxSize {
		// Resting order already saturates the position budget.
		return nil
	}

	priceMoved := abs(in.BuyOrder.Price-target) > buyReplacePriceDelta
	sizeMoved := abs(in.BuyOrder.Size-size) > buyReplaceSizeFrac*size
	if !priceMoved && !sizeMoved {
		return nil
	}
	return quote
}

// targetBid derives the bid from microstructure: join the touch when at
// least min_size is resting near it, otherwise quote a spread budget
// below the ask. Either way stay a maker: one tick inside the ask.
func targetBid(book domain.BookSummary, p domain.Hyperparameters) float64 {
	var target float64
	if book.BidDepthNear >= p.MinSize {
		target = book.BestBid
	} else {
		target = book.BestAsk - p.MaxSpread
	}
	if ceil := book.BestAsk - 0.01; target > ceil {
		target = ceil
	}
	return target
}

// evaluateSell maintains the take-profit order: active only while a
// position exists, priced at entry plus the take-profit threshold and
// sized to the full position.
func evaluateSell(in QuoteInput) *domain.DesiredQuote {
	if in.Position.Size <= 0 || in.Position.AvgPrice <= 0 {
		return nil
	}

	target := in.Position.AvgPrice * (1 + in.Params.TakeProfitThreshold)
	if target > 0.99 {
		target = 0.99
	}

	quote := &domain.DesiredQuote{
		TokenID: in.Position.TokenID,
		Side:    domain.SideSell,
		Price:   target,
		Size:    in.Position.Size,
	}

	if in.SellOrder == nil {
		return quote
	}

	priceMoved := abs(in.SellOrder.Price-target)/target > sellReplacePriceFrac
	undersized := in.SellOrder.Size < sellCoverageFrac*in.Position.Size
	if !priceMoved && !undersized {
		return nil
	}
	return quote
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
