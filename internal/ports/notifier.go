package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/polymaker/internal/domain"
)

// ReportInput bundles the state the console report renders.
type ReportInput struct {
	At         time.Time
	Positions  []domain.Position
	OpenOrders []domain.Order
	Merges     []domain.MergeResult
	RiskEvents []domain.RiskEvent
	Dailies    []domain.DailySummary
}

// Notifier presents engine state to the operator.
type Notifier interface {
	Report(ctx context.Context, in ReportInput) error
}
