package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/polymaker/internal/domain"
)

// EngineStorage persists the engine's write effects. Together with logs
// it is the only liveness surface the engine exposes.
type EngineStorage interface {
	ApplySchema(ctx context.Context) error

	// Fills
	SaveFill(ctx context.Context, fill domain.Fill) error
	GetFills(ctx context.Context, from, to time.Time) ([]domain.Fill, error)

	// Merges
	SaveMergeResult(ctx context.Context, result domain.MergeResult) error
	GetMergeResults(ctx context.Context) ([]domain.MergeResult, error)

	// Risk events (stop-losses, expired leases)
	SaveRiskEvent(ctx context.Context, ev domain.RiskEvent) error
	GetRiskEvents(ctx context.Context, from, to time.Time) ([]domain.RiskEvent, error)

	// Position snapshots, written each poll reconcile
	SavePositionSnapshot(ctx context.Context, at time.Time, positions []domain.Position) error
	GetLatestPositions(ctx context.Context) ([]domain.Position, time.Time, error)

	// Daily summaries
	SaveDailySummary(ctx context.Context, d domain.DailySummary) error
	GetDailySummaries(ctx context.Context) ([]domain.DailySummary, error)

	Close() error
}
