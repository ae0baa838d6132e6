package domain

import "time"

// MergeResult is the outcome of one on-chain CTF merge: collapsing
// equal-sized opposing outcome positions back into collateral.
type MergeResult struct {
	ConditionID  string
	Amount       float64 // token sets merged
	TxHash       string
	GasCostUSD   float64
	USDCReceived float64
	Success      bool
	Error        string
	ExecutedAt   time.Time
}

// RiskEventType classifies persisted risk controller events.
type RiskEventType string

const (
	RiskEventStopLoss     RiskEventType = "STOP_LOSS"
	RiskEventLeaseExpired RiskEventType = "LEASE_EXPIRED"
)

// RiskEvent is a persisted record of a risk action, the audit trail for
// stop-losses and expired leases.
type RiskEvent struct {
	ID          int64
	Type        RiskEventType
	ConditionID string
	TokenID     string
	Detail      string
	OccurredAt  time.Time
}

// DailySummary is the per-day snapshot of engine activity.
type DailySummary struct {
	Date            time.Time
	OrdersPlaced    int
	OrdersCancelled int
	Fills           int
	Merges          int
	MergeVolume     float64
	StopLosses      int
	RealizedPnL     float64
}
