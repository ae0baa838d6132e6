package maker

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polymaker/internal/domain"
)

// fakeExecutor records calls and returns scripted results.
type fakeExecutor struct {
	nextOrderID  string
	createErr    error
	cancelErr    error
	created      []domain.DesiredQuote
	cancelledIDs []string
	tokenCancels []string
}

func (f *fakeExecutor) CreateOrder(_ context.Context, tokenID string, side domain.Side, price, size float64, _ bool) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, domain.DesiredQuote{TokenID: tokenID, Side: side, Price: price, Size: size})
	return f.nextOrderID, nil
}

func (f *fakeExecutor) CancelOrder(_ context.Context, exchangeID string) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelledIDs = append(f.cancelledIDs, exchangeID)
	return nil
}

func (f *fakeExecutor) CancelTokenOrders(_ context.Context, tokenID string) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.tokenCancels = append(f.tokenCancels, tokenID)
	return nil
}

func (f *fakeExecutor) CancelMarketOrders(context.Context, string) error { return nil }
func (f *fakeExecutor) GetOpenOrders(context.Context) ([]domain.Order, error) {
	return nil, nil
}
func (f *fakeExecutor) GetPositions(context.Context) ([]domain.Position, error) {
	return nil, nil
}
func (f *fakeExecutor) GetBalance(context.Context) (float64, error) { return 0, nil }

func TestLifecycle_ApplyQuotePlacesFresh(t *testing.T) {
	exec := &fakeExecutor{nextOrderID: "ex1"}
	state := NewStateStore()
	life := NewLifecycle(exec, state)

	q := domain.DesiredQuote{TokenID: "tok", Side: domain.SideBuy, Price: 0.40, Size: 10}
	placed, cancelled := life.ApplyQuote(context.Background(), q, false)

	assert.Equal(t, 1, placed)
	assert.Equal(t, 0, cancelled)

	o, ok := state.Order("tok", domain.SideBuy)
	require.True(t, ok)
	assert.Equal(t, "ex1", o.ExchangeID)
	assert.InDelta(t, 0.40, o.Price, 0.0001)

	// The lease waits for push confirmation.
	assert.True(t, state.HasLease("tok"))
}

func TestLifecycle_ApplyQuoteReplacesLiveOrder(t *testing.T) {
	exec := &fakeExecutor{nextOrderID: "ex2"}
	state := NewStateStore()
	state.RecordPlacement(domain.Order{ExchangeID: "ex1", TokenID: "tok", Side: domain.SideBuy, Price: 0.39, Size: 10})
	life := NewLifecycle(exec, state)

	q := domain.DesiredQuote{TokenID: "tok", Side: domain.SideBuy, Price: 0.40, Size: 10}
	placed, cancelled := life.ApplyQuote(context.Background(), q, false)

	assert.Equal(t, 1, placed)
	assert.Equal(t, 1, cancelled)
	assert.Equal(t, []string{"ex1"}, exec.cancelledIDs)

	o, _ := state.Order("tok", domain.SideBuy)
	assert.Equal(t, "ex2", o.ExchangeID)
}

func TestLifecycle_CancelFailureDropsIntent(t *testing.T) {
	exec := &fakeExecutor{cancelErr: errors.New("boom")}
	state := NewStateStore()
	state.RecordPlacement(domain.Order{ExchangeID: "ex1", TokenID: "tok", Side: domain.SideBuy, Price: 0.39, Size: 10})
	life := NewLifecycle(exec, state)

	q := domain.DesiredQuote{TokenID: "tok", Side: domain.SideBuy, Price: 0.40, Size: 10}
	placed, cancelled := life.ApplyQuote(context.Background(), q, false)

	assert.Equal(t, 0, placed)
	assert.Equal(t, 0, cancelled)
	assert.Empty(t, exec.created)

	// The live order survives and the lease was released.
	_, ok := state.Order("tok", domain.SideBuy)
	assert.True(t, ok)
	assert.False(t, state.HasLease("tok"))
}

func TestLifecycle_PlaceFailureReleasesLease(t *testing.T) {
	exec := &fakeExecutor{createErr: errors.New("rejected")}
	state := NewStateStore()
	life := NewLifecycle(exec, state)

	q := domain.DesiredQuote{TokenID: "tok", Side: domain.SideBuy, Price: 0.40, Size: 10}
	placed, _ := life.ApplyQuote(context.Background(), q, false)

	assert.Equal(t, 0, placed)
	assert.False(t, state.HasLease("tok"))
	_, ok := state.Order("tok", domain.SideBuy)
	assert.False(t, ok)
}

func TestLifecycle_EmptyExchangeIDGetsLocalID(t *testing.T) {
	exec := &fakeExecutor{nextOrderID: ""}
	state := NewStateStore()
	life := NewLifecycle(exec, state)

	q := domain.DesiredQuote{TokenID: "tok", Side: domain.SideBuy, Price: 0.40, Size: 10}
	placed, _ := life.ApplyQuote(context.Background(), q, false)
	require.Equal(t, 1, placed)

	o, ok := state.Order("tok", domain.SideBuy)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(o.ExchangeID, "local-"))
}

func TestLifecycle_Liquidate(t *testing.T) {
	exec := &fakeExecutor{nextOrderID: "exit1"}
	state := NewStateStore()
	state.RecordPlacement(domain.Order{ExchangeID: "b1", TokenID: "tok", Side: domain.SideBuy, Price: 0.39, Size: 10})
	state.RecordPlacement(domain.Order{ExchangeID: "s1", TokenID: "tok", Side: domain.SideSell, Price: 0.50, Size: 40})
	life := NewLifecycle(exec, state)

	err := life.Liquidate(context.Background(), "tok", 0.38, 40, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"tok"}, exec.tokenCancels)
	require.Len(t, exec.created, 1)
	assert.Equal(t, domain.SideSell, exec.created[0].Side)
	assert.InDelta(t, 0.38, exec.created[0].Price, 0.0001)
	assert.InDelta(t, 40, exec.created[0].Size, 0.001)

	_, ok := state.Order("tok", domain.SideBuy)
	assert.False(t, ok)
}

func TestLifecycle_LiquidateCancelFailure(t *testing.T) {
	exec := &fakeExecutor{cancelErr: errors.New("down")}
	state := NewStateStore()
	life := NewLifecycle(exec, state)

	err := life.Liquidate(context.Background(), "tok", 0.38, 40, false)
	require.Error(t, err)
	assert.Empty(t, exec.created)
	assert.False(t, state.HasLease("tok"))
}
