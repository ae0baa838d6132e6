package maker

// risk.go — risk controller.
//
// Owns the risk-off window table: after a stop-loss fires for a market,
// new buy-side quoting is suppressed there until the window expires.
// Windows expire lazily on check.

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/polymaker/internal/domain"
	"github.com/alejandrodnm/polymaker/internal/ports"
)

// RiskController evaluates and records risk-off state per market.
type RiskController struct {
	mu      sync.Mutex
	windows map[string]time.Time // conditionID → active until
	store   ports.EngineStorage  // nil in tests
}

// NewRiskController creates a controller. store may be nil; risk events
// are then log-only.
func NewRiskController(store ports.EngineStorage) *RiskController {
	return &RiskController{
		windows: make(map[string]time.Time),
		store:   store,
	}
}

// IsRiskOff reports whether a risk-off window is active for the market.
// Expired windows are removed on the way out.
func (rc *RiskController) IsRiskOff(conditionID string, now time.Time) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	until, ok := rc.windows[conditionID]
	if !ok {
		return false
	}
	if now.After(until) {
		delete(rc.windows, conditionID)
		return false
	}
	return true
}

// OpenRiskOff starts (or extends) a risk-off window for the market and
// persists the stop-loss event.
func (rc *RiskController) OpenRiskOff(ctx context.Context, conditionID, tokenID string, now time.Time, hours float64) {
	until := now.Add(time.Duration(hours * float64(time.Hour)))

	rc.mu.Lock()
	if cur, ok := rc.windows[conditionID]; !ok || until.After(cur) {
		rc.windows[conditionID] = until
	}
	rc.mu.Unlock()

	slog.Warn("risk: stop-loss fired, buy quoting suppressed",
		"condition", conditionID,
		"token", tokenID,
		"until", until.Format(time.RFC3339),
	)

	if rc.store == nil {
		return
	}
	ev := domain.RiskEvent{
		Type:        domain.RiskEventStopLoss,
		ConditionID: conditionID,
		TokenID:     tokenID,
		Detail:      "risk-off until " + until.Format(time.RFC3339),
		OccurredAt:  now,
	}
	if err := rc.store.SaveRiskEvent(ctx, ev); err != nil {
		slog.Warn("risk: error saving stop-loss event", "err", err)
	}
}
