package maker

// merge.go — merge trigger.
//
// When both legs of a market grow past the minimum, the opposing
// positions are collapsed back into collateral through the settlement
// executor. Runs at the top of every decision cycle, before quoting.

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/alejandrodnm/polymaker/internal/domain"
)

// MinMergeSize is the minimum share count on each leg before a merge
// fires.
const MinMergeSize = 20.0

// maybeMerge settles min(yes, no) token sets when both legs qualify.
// On success both positions are decremented optimistically, pending poll
// confirmation; on failure state is left untouched and the next cycle
// re-evaluates from fresh state — no retry within this one.
func (e *Engine) maybeMerge(ctx context.Context, mkt domain.Market) {
	if e.merger == nil {
		return
	}

	yes := e.state.Position(mkt.YesTokenID)
	no := e.state.Position(mkt.NoTokenID)
	if yes.Size < MinMergeSize || no.Size < MinMergeSize {
		return
	}
	amount := math.Floor(math.Min(yes.Size, no.Size))

	e.state.Lease(mkt.YesTokenID, domain.SideSell)
	e.state.Lease(mkt.NoTokenID, domain.SideSell)

	result, err := e.merger.Merge(ctx, mkt.ConditionID, amount, mkt.NegRisk)
	if err != nil {
		e.state.ClearLease(mkt.YesTokenID, domain.SideSell)
		e.state.ClearLease(mkt.NoTokenID, domain.SideSell)
		slog.Warn("maker: merge failed, positions untouched",
			"market", domain.TruncateQuestion(mkt.Question, mkt.ConditionID, 35),
			"amount", amount,
			"err", err)
		if e.store != nil {
			_ = e.store.SaveMergeResult(ctx, result)
		}
		return
	}

	e.state.AdjustForMerge(mkt.YesTokenID, mkt.NoTokenID, amount)
	e.state.ClearLease(mkt.YesTokenID, domain.SideSell)
	e.state.ClearLease(mkt.NoTokenID, domain.SideSell)
	e.counters.addMerge(amount)

	if e.store != nil {
		if err := e.store.SaveMergeResult(ctx, result); err != nil {
			slog.Warn("maker: error saving merge result", "err", err)
		}
	}

	slog.Info("maker: MERGED opposing positions",
		"market", domain.TruncateQuestion(mkt.Question, mkt.ConditionID, 35),
		"amount", amount,
		"tx", result.TxHash,
		"gas_usd", fmt.Sprintf("$%.4f", result.GasCostUSD),
	)
}
