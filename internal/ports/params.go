package ports

import (
	"context"

	"github.com/alejandrodnm/polymaker/internal/domain"
)

// ParamsProvider is the remote tabular configuration source: the list of
// markets to trade and the per-market-type hyperparameters. Read at
// startup and refreshed periodically; rows failing schema validation are
// dropped with a log line rather than failing the whole load.
type ParamsProvider interface {
	// FetchMarkets returns the configured markets.
	FetchMarkets(ctx context.Context) ([]domain.Market, error)

	// FetchHyperparameters returns hyperparameters keyed by market type.
	FetchHyperparameters(ctx context.Context) (map[string]domain.Hyperparameters, error)
}
