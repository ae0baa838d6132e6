package maker

// state.go — reconciled state store.
//
// Two unsynchronized views of exchange state feed one model with
// asymmetric trust: the push feed is authoritative for events (fills,
// placements, cancellations) and applied immediately; the periodic poll
// is authoritative for steady state and overwrites wholesale — except for
// tokens with a live PendingLease, which are skipped for that cycle, and
// tokens that saw a push event after the poll snapshot was fetched, which
// would otherwise be rolled back to a stale value.

import (
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/polymaker/internal/domain"
)

// leaseTimeout bounds the damage of a lost confirmation: after this long
// a lease is force-expired and the next poll becomes authoritative again.
const leaseTimeout = 15 * time.Second

type orderKey struct {
	tokenID string
	side    domain.Side
}

// StateStore owns the Position, Order, and PendingLease tables. All
// mutation goes through Apply*/Reconcile*/lease methods; readers get
// value copies.
type StateStore struct {
	mu         sync.RWMutex
	positions  map[string]domain.Position
	orders     map[orderKey]domain.Order
	leases     map[orderKey]domain.PendingLease
	lastPushAt map[string]time.Time // per token, for poll/push race ordering
}

// NewStateStore creates an empty store.
func NewStateStore() *StateStore {
	return &StateStore{
		positions:  make(map[string]domain.Position),
		orders:     make(map[orderKey]domain.Order),
		leases:     make(map[orderKey]domain.PendingLease),
		lastPushAt: make(map[string]time.Time),
	}
}

// Position returns the current position for a token (zero value when flat).
func (s *StateStore) Position(tokenID string) domain.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[tokenID]
	if !ok {
		p = domain.Position{TokenID: tokenID}
	}
	return p
}

// Order returns the resting order for (token, side), if any.
func (s *StateStore) Order(tokenID string, side domain.Side) (domain.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderKey{tokenID, side}]
	return o, ok
}

// OpenOrders returns a copy of every tracked resting order.
func (s *StateStore) OpenOrders() []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	return out
}

// Positions returns a copy of every non-flat position.
func (s *StateStore) Positions() []domain.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Position, 0, len(s.positions))
	for _, p := range s.positions {
		if p.Size > 0 {
			out = append(out, p)
		}
	}
	return out
}

// ApplyFill applies a confirmed fill from the push feed: advances the
// position (VWAP on buys, size-only on sells), shrinks or drops the
// matching resting order, and clears the matching lease.
func (s *StateStore) ApplyFill(f domain.Fill) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[f.TokenID]
	if !ok {
		p = domain.Position{TokenID: f.TokenID}
	}
	if f.Side == domain.SideBuy {
		p = p.AddFill(f.Price, f.Size)
	} else {
		p = p.ReduceFill(f.Size)
	}
	s.positions[f.TokenID] = p
	s.lastPushAt[f.TokenID] = time.Now()

	key := orderKey{f.TokenID, f.Side}
	if o, ok := s.orders[key]; ok && (f.OrderID == "" || o.ExchangeID == f.OrderID) {
		o.Size -= f.Size
		if o.Size <= 0 {
			delete(s.orders, key)
		} else {
			s.orders[key] = o
		}
	}
	delete(s.leases, key)
}

// ApplyOrderEvent applies a placed/cancelled push event and clears the
// matching lease.
func (s *StateStore) ApplyOrderEvent(ev domain.UserEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := orderKey{ev.Order.TokenID, ev.Order.Side}
	switch ev.Type {
	case domain.UserEventPlaced:
		s.orders[key] = ev.Order
	case domain.UserEventCancelled:
		if o, ok := s.orders[key]; ok && (ev.Order.ExchangeID == "" || o.ExchangeID == ev.Order.ExchangeID) {
			delete(s.orders, key)
		}
	default:
		return
	}
	s.lastPushAt[ev.Order.TokenID] = time.Now()
	delete(s.leases, key)
}

// RecordPlacement optimistically upserts an order we just placed. The
// lease stays live until the push feed confirms or it expires; the poll
// path corrects us if the confirmation is lost.
func (s *StateStore) RecordPlacement(o domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[orderKey{o.TokenID, o.Side}] = o
}

// RecordCancellation optimistically drops an order we just cancelled,
// leaving the lease in place until confirmation.
func (s *StateStore) RecordCancellation(tokenID string, side domain.Side) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.orders, orderKey{tokenID, side})
}

// Lease marks an order-affecting call as in flight for (token, side).
func (s *StateStore) Lease(tokenID string, side domain.Side) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leases[orderKey{tokenID, side}] = domain.PendingLease{
		TokenID:     tokenID,
		Side:        side,
		RequestedAt: time.Now(),
	}
}

// ClearLease drops the lease for (token, side), if any.
func (s *StateStore) ClearLease(tokenID string, side domain.Side) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.leases, orderKey{tokenID, side})
}

// HasLease reports whether any lease is live for the token. The poll path
// skips the whole token while one is — push is trusted over a stale poll.
func (s *StateStore) HasLease(tokenID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k := range s.leases {
		if k.tokenID == tokenID {
			return true
		}
	}
	return false
}

// SweepLeases force-expires leases older than leaseTimeout and returns
// them so the caller can log and persist the events. The next poll cycle
// then corrects whatever state the lost confirmation left wrong.
func (s *StateStore) SweepLeases(now time.Time) []domain.PendingLease {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []domain.PendingLease
	for k, l := range s.leases {
		if now.Sub(l.RequestedAt) >= leaseTimeout {
			expired = append(expired, l)
			delete(s.leases, k)
		}
	}
	return expired
}

// ReconcilePositions overwrites positions wholesale from a poll result.
// Tokens with a live lease are skipped entirely for this cycle, as are
// tokens that saw a push event after fetchedAt — the poll snapshot is
// older than what we already hold.
func (s *StateStore) ReconcilePositions(fetchedAt time.Time, polled []domain.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byToken := make(map[string]domain.Position, len(polled))
	for _, p := range polled {
		byToken[p.TokenID] = p
	}

	skip := func(tokenID string) bool {
		for k := range s.leases {
			if k.tokenID == tokenID {
				return true
			}
		}
		return s.lastPushAt[tokenID].After(fetchedAt)
	}

	for tokenID, p := range byToken {
		if skip(tokenID) {
			continue
		}
		s.positions[tokenID] = p
	}
	// Tokens we hold but the poll no longer reports are flat.
	for tokenID := range s.positions {
		if _, ok := byToken[tokenID]; ok || skip(tokenID) {
			continue
		}
		s.positions[tokenID] = domain.Position{TokenID: tokenID}
	}
}

// ReconcileOrders overwrites the order table from a poll result, subject
// to the same lease/push skip rules, and returns the orders that violate
// the one-per-(token,side) policy — everything but the newest — so the
// caller can cancel them.
func (s *StateStore) ReconcileOrders(fetchedAt time.Time, polled []domain.Order) []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	skip := func(tokenID string) bool {
		for k := range s.leases {
			if k.tokenID == tokenID {
				return true
			}
		}
		return s.lastPushAt[tokenID].After(fetchedAt)
	}

	latest := make(map[orderKey]domain.Order)
	var extras []domain.Order
	seenToken := make(map[string]bool)

	for _, o := range polled {
		seenToken[o.TokenID] = true
		if skip(o.TokenID) {
			continue
		}
		key := orderKey{o.TokenID, o.Side}
		if cur, ok := latest[key]; ok {
			if o.PlacedAt.After(cur.PlacedAt) {
				extras = append(extras, cur)
				latest[key] = o
			} else {
				extras = append(extras, o)
			}
			continue
		}
		latest[key] = o
	}

	for key := range s.orders {
		if skip(key.tokenID) {
			continue
		}
		if _, ok := latest[key]; !ok {
			delete(s.orders, key)
		}
	}
	for key, o := range latest {
		s.orders[key] = o
	}

	if len(extras) > 0 {
		slog.Warn("state: duplicate resting orders found in poll", "count", len(extras))
	}
	return extras
}

// AdjustForMerge optimistically decrements both legs of a market after a
// successful settlement call, pending poll confirmation.
func (s *StateStore) AdjustForMerge(yesTokenID, noTokenID string, amount float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tokenID := range []string{yesTokenID, noTokenID} {
		p, ok := s.positions[tokenID]
		if !ok {
			continue
		}
		s.positions[tokenID] = p.ReduceFill(amount)
		s.lastPushAt[tokenID] = time.Now()
	}
}
