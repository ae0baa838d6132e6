package polymarket

// ws.go — Polymarket CLOB websocket feeds.
//
// Two channels: the public market channel streams book snapshots and
// price_change deltas per asset, the authenticated user channel streams
// this account's own order and trade events. Both reconnect with
// exponential backoff and resubscribe; the market feed additionally
// signals a reset so stale resident books get invalidated.

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alejandrodnm/polymaker/internal/domain"
	"github.com/alejandrodnm/polymaker/internal/ports"
)

const (
	defaultWSBase = "wss://ws-subscriptions-clob.polymarket.com/ws"

	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	reconnectDelay    = 2 * time.Second
	maxReconnectDelay = 60 * time.Second
)

// socket owns one websocket connection: dial, subscribe, keep-alive, and
// reconnect with backoff. Message routing is delegated to handle.
type socket struct {
	url     string
	handle  func(raw []byte)
	onReset func() // invoked after every successful reconnect

	mu   sync.Mutex
	conn *websocket.Conn
	sub  wsSubscription

	done      chan struct{}
	closeOnce sync.Once
}

func newSocket(url string) *socket {
	return &socket{url: url, done: make(chan struct{})}
}

// start dials, sends the subscription, and launches the read loop.
func (s *socket) start(ctx context.Context, sub wsSubscription) error {
	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()

	if err := s.dial(ctx); err != nil {
		return err
	}
	go s.readLoop()
	return nil
}

func (s *socket) dial(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("ws: dial %s: %w", s.url, err)
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	s.mu.Lock()
	s.conn = conn
	sub := s.sub
	s.mu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	payload, err := json.Marshal(sub)
	if err != nil {
		conn.Close()
		return fmt.Errorf("ws: marshal subscription: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		conn.Close()
		return fmt.Errorf("ws: subscribe: %w", err)
	}

	go s.pingLoop(conn)
	return nil
}

func (s *socket) current() *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// readLoop reads until the connection drops, then reconnects and keeps
// reading. Returns only when the socket is closed.
func (s *socket) readLoop() {
	for {
		select {
		case <-s.done:
			return
		default:
		}

		conn := s.current()
		if conn == nil {
			return
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			conn.Close()
			if !s.reconnect() {
				return
			}
			if s.onReset != nil {
				s.onReset()
			}
			continue
		}
		s.handle(raw)
	}
}

// pingLoop keeps one connection alive; exits when that connection dies.
func (s *socket) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reconnect re-dials with exponential backoff until it succeeds or the
// socket is closed. Returns false when closed.
func (s *socket) reconnect() bool {
	delay := reconnectDelay
	for {
		select {
		case <-s.done:
			return false
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := s.dial(ctx)
		cancel()
		if err == nil {
			slog.Info("ws: reconnected", "url", s.url)
			return true
		}
		slog.Warn("ws: reconnect failed", "url", s.url, "err", err)

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

func (s *socket) close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn != nil {
			_ = conn.WriteMessage(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			)
			err = conn.Close()
		}
	})
	return err
}

// MarketFeed implements ports.BookFeed over the public market channel.
type MarketFeed struct {
	sock *socket

	handlerMu  sync.RWMutex
	onSnapshot ports.BookSnapshotHandler
	onDelta    ports.BookDeltaHandler
	onReset    func()
}

// NewMarketFeed creates a market data feed. wsBase "" selects production.
func NewMarketFeed(wsBase string) *MarketFeed {
	if wsBase == "" {
		wsBase = defaultWSBase
	}
	f := &MarketFeed{sock: newSocket(wsBase + "/market")}
	f.sock.handle = f.handleMessage
	f.sock.onReset = f.fireReset
	return f
}

func (f *MarketFeed) OnSnapshot(h ports.BookSnapshotHandler) {
	f.handlerMu.Lock()
	f.onSnapshot = h
	f.handlerMu.Unlock()
}

func (f *MarketFeed) OnDelta(h ports.BookDeltaHandler) {
	f.handlerMu.Lock()
	f.onDelta = h
	f.handlerMu.Unlock()
}

func (f *MarketFeed) OnReset(h func()) {
	f.handlerMu.Lock()
	f.onReset = h
	f.handlerMu.Unlock()
}

// Subscribe connects and subscribes to book updates for the given tokens.
// The server answers with one full snapshot per token before any delta,
// both on first connect and after every reconnect.
func (f *MarketFeed) Subscribe(ctx context.Context, tokenIDs []string) error {
	err := f.sock.start(ctx, wsSubscription{Type: "market", AssetIDs: tokenIDs})
	if err != nil {
		return fmt.Errorf("market feed: %w", err)
	}
	return nil
}

func (f *MarketFeed) Close() error {
	return f.sock.close()
}

func (f *MarketFeed) handleMessage(raw []byte) {
	// Some frames arrive as arrays of events.
	if len(raw) > 0 && raw[0] == '[' {
		var batch []json.RawMessage
		if err := json.Unmarshal(raw, &batch); err != nil {
			return
		}
		for _, item := range batch {
			f.handleEvent(item)
		}
		return
	}
	f.handleEvent(raw)
}

func (f *MarketFeed) handleEvent(raw []byte) {
	var envelope struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return
	}

	switch envelope.EventType {
	case "book":
		var msg wsBookMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return
		}
		f.handlerMu.RLock()
		h := f.onSnapshot
		f.handlerMu.RUnlock()
		if h != nil {
			h(msg.AssetID, mapWSLevels(msg.Bids), mapWSLevels(msg.Asks))
		}

	case "price_change":
		var msg wsPriceChangeMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return
		}
		f.handlerMu.RLock()
		h := f.onDelta
		f.handlerMu.RUnlock()
		if h == nil {
			return
		}
		for _, ch := range msg.Changes {
			price, err1 := strconv.ParseFloat(ch.Price, 64)
			size, err2 := strconv.ParseFloat(ch.Size, 64)
			if err1 != nil || err2 != nil {
				continue
			}
			tokenID := ch.AssetID
			if tokenID == "" {
				tokenID = msg.AssetID
			}
			h(tokenID, mapSide(ch.Side), price, size)
		}
	}
}

// fireReset runs the registered reset handler.
func (f *MarketFeed) fireReset() {
	f.handlerMu.RLock()
	h := f.onReset
	f.handlerMu.RUnlock()
	if h != nil {
		h()
	}
}

// UserEventFeed implements ports.UserFeed over the authenticated user
// channel.
type UserEventFeed struct {
	sock *socket
	auth *AuthClient

	handlerMu sync.RWMutex
	onEvent   func(domain.UserEvent)
}

// NewUserEventFeed creates the account event feed. wsBase "" selects
// production.
func NewUserEventFeed(wsBase string, auth *AuthClient) *UserEventFeed {
	if wsBase == "" {
		wsBase = defaultWSBase
	}
	f := &UserEventFeed{sock: newSocket(wsBase + "/user"), auth: auth}
	f.sock.handle = f.handleMessage
	return f
}

func (f *UserEventFeed) OnEvent(h func(domain.UserEvent)) {
	f.handlerMu.Lock()
	f.onEvent = h
	f.handlerMu.Unlock()
}

// Subscribe connects with the derived L2 credentials and subscribes to
// this account's events for the given markets.
func (f *UserEventFeed) Subscribe(ctx context.Context, conditionIDs []string) error {
	if err := f.auth.EnsureCreds(ctx); err != nil {
		return fmt.Errorf("user feed: %w", err)
	}
	apiKey, secret, passphrase, err := f.auth.Creds()
	if err != nil {
		return fmt.Errorf("user feed: %w", err)
	}

	sub := wsSubscription{
		Type:    "user",
		Markets: conditionIDs,
		Auth:    &wsAuth{APIKey: apiKey, Secret: secret, Passphrase: passphrase},
	}
	if err := f.sock.start(ctx, sub); err != nil {
		return fmt.Errorf("user feed: %w", err)
	}
	return nil
}

func (f *UserEventFeed) Close() error {
	return f.sock.close()
}

func (f *UserEventFeed) handleMessage(raw []byte) {
	if len(raw) > 0 && raw[0] == '[' {
		var batch []json.RawMessage
		if err := json.Unmarshal(raw, &batch); err != nil {
			return
		}
		for _, item := range batch {
			f.handleEvent(item)
		}
		return
	}
	f.handleEvent(raw)
}

func (f *UserEventFeed) handleEvent(raw []byte) {
	var envelope struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return
	}

	f.handlerMu.RLock()
	emit := f.onEvent
	f.handlerMu.RUnlock()
	if emit == nil {
		return
	}

	switch envelope.EventType {
	case "order":
		var msg wsOrderMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return
		}
		for _, ev := range mapOrderMessage(msg) {
			emit(ev)
		}
	case "trade":
		var msg wsTradeMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return
		}
		for _, ev := range mapTradeMessage(msg) {
			emit(ev)
		}
	}
}

// mapOrderMessage converts an order lifecycle message. UPDATE carries a
// new matched size, which shows up here as a smaller remaining size.
func mapOrderMessage(msg wsOrderMessage) []domain.UserEvent {
	remaining := parseFloat(msg.OriginalSize) - parseFloat(msg.SizeMatched)
	if remaining < 0 {
		remaining = 0
	}
	order := domain.Order{
		ExchangeID: msg.ID,
		TokenID:    msg.AssetID,
		Side:       mapSide(msg.Side),
		Price:      parseFloat(msg.Price),
		Size:       remaining,
		PlacedAt:   parseTimestamp(msg.CreatedAt),
	}

	now := time.Now()
	switch msg.Type {
	case "PLACEMENT", "UPDATE":
		return []domain.UserEvent{{Type: domain.UserEventPlaced, Order: order, Timestamp: now}}
	case "CANCELLATION":
		return []domain.UserEvent{{Type: domain.UserEventCancelled, Order: order, Timestamp: now}}
	}
	return nil
}

// mapTradeMessage converts a trade into fill events. Only the initial
// MATCHED status is applied; the later MINED/CONFIRMED re-emissions of
// the same trade are dropped to avoid double counting.
func mapTradeMessage(msg wsTradeMessage) []domain.UserEvent {
	if msg.Status != "MATCHED" {
		return nil
	}

	ts := parseTimestamp(msg.MatchTime)
	if ts.IsZero() {
		ts = time.Now()
	}
	takerSide := mapSide(msg.Side)

	// Maker rows carry this account's resting orders; the taker was the
	// other party, so our side is the opposite.
	if len(msg.MakerOrders) > 0 {
		events := make([]domain.UserEvent, 0, len(msg.MakerOrders))
		for i, mo := range msg.MakerOrders {
			size := parseFloat(mo.MatchedAmount)
			if size <= 0 {
				continue
			}
			events = append(events, domain.UserEvent{
				Type: domain.UserEventFill,
				Fill: domain.Fill{
					TradeID:   fmt.Sprintf("%s-%d", msg.ID, i),
					OrderID:   mo.OrderID,
					TokenID:   mo.AssetID,
					Side:      takerSide.Opposite(),
					Price:     parseFloat(mo.Price),
					Size:      size,
					Timestamp: ts,
				},
				Timestamp: ts,
			})
		}
		return events
	}

	// No maker rows: this account took liquidity (the liquidation path).
	return []domain.UserEvent{{
		Type: domain.UserEventFill,
		Fill: domain.Fill{
			TradeID:   msg.ID,
			OrderID:   msg.TakerOrderID,
			TokenID:   msg.AssetID,
			Side:      takerSide,
			Price:     parseFloat(msg.Price),
			Size:      parseFloat(msg.Size),
			Timestamp: ts,
		},
		Timestamp: ts,
	}}
}
