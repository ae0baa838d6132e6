package ports

import (
	"context"

	"github.com/alejandrodnm/polymaker/internal/domain"
)

// MergeExecutor performs the on-chain settlement call that collapses
// equal-sized opposing outcome positions back into USDC.e collateral.
// Treated as opaque by the engine: failures are logged and re-evaluated
// next cycle, never retried within one.
type MergeExecutor interface {
	// Merge burns amount YES+NO token sets of the given condition.
	Merge(ctx context.Context, conditionID string, amount float64, negRisk bool) (domain.MergeResult, error)

	// EstimateGasCostUSD returns the current estimated settlement gas cost.
	EstimateGasCostUSD(ctx context.Context) (float64, error)

	// EnsureApprovals verifies and sets the on-chain token approvals the
	// settlement path needs. Called once at startup.
	EnsureApprovals(ctx context.Context) error
}
