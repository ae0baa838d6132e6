package domain

import "fmt"

// HardMaxPositionShares is the absolute per-token position cap, enforced
// independent of any configured max_size.
const HardMaxPositionShares = 250.0

// Hyperparameters tune quoting for one market type. Sourced from the
// remote tabular store at startup and immutable during a session.
type Hyperparameters struct {
	MarketType          string
	TradeSize           float64 // shares per order
	MaxSize             float64 // target max position, shares
	MinSize             float64 // min resting depth near the touch to trust it
	MaxSpread           float64 // spread budget when the touch is not trusted
	StopLossThreshold   float64 // PnL fraction, positive number
	TakeProfitThreshold float64 // fraction over entry price
	SpreadThreshold     float64 // max spread at which a market exit is acceptable
	VolatilityThreshold float64 // 3h realized volatility gate
	SleepPeriodHours    float64 // risk-off window after a stop-loss
}

// Validate reports the first malformed field. A market type failing
// validation is excluded from trading; it is not process-fatal.
func (h Hyperparameters) Validate() error {
	switch {
	case h.MarketType == "":
		return fmt.Errorf("hyperparameters: empty market_type")
	case h.TradeSize <= 0:
		return fmt.Errorf("hyperparameters %q: trade_size must be > 0, got %v", h.MarketType, h.TradeSize)
	case h.MaxSize <= 0:
		return fmt.Errorf("hyperparameters %q: max_size must be > 0, got %v", h.MarketType, h.MaxSize)
	case h.MinSize < 0:
		return fmt.Errorf("hyperparameters %q: min_size must be >= 0, got %v", h.MarketType, h.MinSize)
	case h.MaxSpread <= 0 || h.MaxSpread >= 1:
		return fmt.Errorf("hyperparameters %q: max_spread must be in (0,1), got %v", h.MarketType, h.MaxSpread)
	case h.StopLossThreshold <= 0:
		return fmt.Errorf("hyperparameters %q: stop_loss_threshold must be > 0, got %v", h.MarketType, h.StopLossThreshold)
	case h.TakeProfitThreshold <= 0:
		return fmt.Errorf("hyperparameters %q: take_profit_threshold must be > 0, got %v", h.MarketType, h.TakeProfitThreshold)
	case h.SpreadThreshold <= 0:
		return fmt.Errorf("hyperparameters %q: spread_threshold must be > 0, got %v", h.MarketType, h.SpreadThreshold)
	case h.VolatilityThreshold <= 0:
		return fmt.Errorf("hyperparameters %q: volatility_threshold must be > 0, got %v", h.MarketType, h.VolatilityThreshold)
	case h.SleepPeriodHours <= 0:
		return fmt.Errorf("hyperparameters %q: sleep_period must be > 0, got %v", h.MarketType, h.SleepPeriodHours)
	}
	return nil
}

// EffectiveMaxSize returns the configured max position capped by the
// absolute hard limit.
func (h Hyperparameters) EffectiveMaxSize() float64 {
	if h.MaxSize > HardMaxPositionShares {
		return HardMaxPositionShares
	}
	return h.MaxSize
}
