package signalfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"risklab/internal/domain"
)

// WSFeedConfig configures WebSocket feed behavior.
type WSFeedConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is the maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration
	// CallTimeout bounds subscription confirmations and snapshot calls.
	CallTimeout time.Duration

	Logger *zap.Logger
}

// DefaultWSFeedConfig returns default WebSocket feed configuration.
func DefaultWSFeedConfig() WSFeedConfig {
	return WSFeedConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		CallTimeout:       30 * time.Second,
	}
}

// WSFeed implements Feed over gorilla/websocket with automatic reconnect
// and resubscription.
type WSFeed struct {
	endpoint string
	config   WSFeedConfig
	logger   *zap.Logger

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// subs maps subscription ID to the update channel
	subs   map[int64]chan domain.SignalUpdate
	subsMu sync.RWMutex

	// activeFilters stores signal id filters for resubscription after reconnect
	activeFilters   map[int64][]string
	activeFiltersMu sync.RWMutex

	// pendingSubs maps request ID to a channel waiting for the subscription ID
	pendingSubs   map[uint64]chan int64
	pendingSubsMu sync.Mutex

	// pendingSnaps maps request ID to a channel waiting for snapshot values
	pendingSnaps   map[uint64]chan map[string]float64
	pendingSnapsMu sync.Mutex

	// done signals shutdown
	done chan struct{}
	wg   sync.WaitGroup

	// reconnecting indicates reconnection in progress
	reconnecting atomic.Bool
}

// NewWSFeed creates a new WebSocket feed and connects to the endpoint.
func NewWSFeed(ctx context.Context, endpoint string, config *WSFeedConfig) (*WSFeed, error) {
	cfg := DefaultWSFeedConfig()
	if config != nil {
		cfg = *config
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	f := &WSFeed{
		endpoint:      endpoint,
		config:        cfg,
		logger:        logger,
		subs:          make(map[int64]chan domain.SignalUpdate),
		activeFilters: make(map[int64][]string),
		pendingSubs:   make(map[uint64]chan int64),
		pendingSnaps:  make(map[uint64]chan map[string]float64),
		done:          make(chan struct{}),
	}

	if err := f.connect(ctx); err != nil {
		return nil, err
	}

	f.wg.Add(1)
	go f.readLoop()

	f.wg.Add(1)
	go f.pingLoop()

	return f, nil
}

// connect establishes the WebSocket connection.
func (f *WSFeed) connect(ctx context.Context) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, f.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	f.conn = conn
	return nil
}

// Subscribe streams updates for the given signal ids.
func (f *WSFeed) Subscribe(ctx context.Context, signalIDs []string) (<-chan domain.SignalUpdate, error) {
	subID, err := f.subscribeInternal(ctx, signalIDs)
	if err != nil {
		return nil, err
	}

	// Buffer absorbs bursts; dispatch blocks rather than dropping updates
	ch := make(chan domain.SignalUpdate, 1024)
	f.subsMu.Lock()
	f.subs[subID] = ch
	f.subsMu.Unlock()

	f.activeFiltersMu.Lock()
	f.activeFilters[subID] = signalIDs
	f.activeFiltersMu.Unlock()

	return ch, nil
}

// Snapshot fetches current values for a set of signal ids.
func (f *WSFeed) Snapshot(ctx context.Context, signalIDs []string) (map[string]float64, error) {
	if f.closed.Load() {
		return nil, fmt.Errorf("feed closed")
	}

	reqID := f.requestID.Add(1)
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "signalsSnapshot",
		Params:  []any{buildFilter(signalIDs)},
	}

	resultCh := make(chan map[string]float64, 1)
	f.pendingSnapsMu.Lock()
	f.pendingSnaps[reqID] = resultCh
	f.pendingSnapsMu.Unlock()

	dropPending := func() {
		f.pendingSnapsMu.Lock()
		delete(f.pendingSnaps, reqID)
		f.pendingSnapsMu.Unlock()
	}

	if err := f.writeRequest(req); err != nil {
		dropPending()
		return nil, err
	}

	select {
	case values := <-resultCh:
		return values, nil
	case <-time.After(f.config.CallTimeout):
		dropPending()
		return nil, fmt.Errorf("snapshot timeout after %s", f.config.CallTimeout)
	case <-f.done:
		return nil, fmt.Errorf("feed closed")
	case <-ctx.Done():
		dropPending()
		return nil, ctx.Err()
	}
}

// Close closes the WebSocket connection.
func (f *WSFeed) Close() error {
	if f.closed.Swap(true) {
		return nil // already closed
	}

	close(f.done)

	f.connMu.Lock()
	if f.conn != nil {
		f.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		f.conn.Close()
	}
	f.connMu.Unlock()

	f.subsMu.Lock()
	for id, ch := range f.subs {
		close(ch)
		delete(f.subs, id)
	}
	f.subsMu.Unlock()

	f.pendingSubsMu.Lock()
	for id, ch := range f.pendingSubs {
		close(ch)
		delete(f.pendingSubs, id)
	}
	f.pendingSubsMu.Unlock()

	f.pendingSnapsMu.Lock()
	for id, ch := range f.pendingSnaps {
		close(ch)
		delete(f.pendingSnaps, id)
	}
	f.pendingSnapsMu.Unlock()

	f.wg.Wait()
	return nil
}

// subscribeInternal sends the subscribe request and waits for the
// subscription id without storing channel or filter.
func (f *WSFeed) subscribeInternal(ctx context.Context, signalIDs []string) (int64, error) {
	if f.closed.Load() {
		return 0, fmt.Errorf("feed closed")
	}

	reqID := f.requestID.Add(1)
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "signalsSubscribe",
		Params:  []any{buildFilter(signalIDs)},
	}

	confirmCh := make(chan int64, 1)
	f.pendingSubsMu.Lock()
	f.pendingSubs[reqID] = confirmCh
	f.pendingSubsMu.Unlock()

	dropPending := func() {
		f.pendingSubsMu.Lock()
		delete(f.pendingSubs, reqID)
		f.pendingSubsMu.Unlock()
	}

	if err := f.writeRequest(req); err != nil {
		dropPending()
		return 0, err
	}

	select {
	case subID := <-confirmCh:
		return subID, nil
	case <-time.After(f.config.CallTimeout):
		dropPending()
		return 0, fmt.Errorf("subscription timeout after %s", f.config.CallTimeout)
	case <-f.done:
		return 0, fmt.Errorf("feed closed")
	case <-ctx.Done():
		dropPending()
		return 0, ctx.Err()
	}
}

// writeRequest writes one request under the connection lock.
func (f *WSFeed) writeRequest(req wsRequest) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()

	if f.conn == nil {
		return fmt.Errorf("not connected")
	}

	f.conn.SetWriteDeadline(time.Now().Add(f.config.WriteTimeout))
	if err := f.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write %s: %w", req.Method, err)
	}
	return nil
}

// buildFilter builds the subscription/snapshot filter payload.
func buildFilter(signalIDs []string) map[string]any {
	filter := make(map[string]any)
	if len(signalIDs) > 0 {
		filter["signals"] = signalIDs
	} else {
		filter["all"] = nil
	}
	return filter
}

// readLoop reads messages and dispatches to subscribers.
func (f *WSFeed) readLoop() {
	defer f.wg.Done()

	reconnectDelay := f.config.ReconnectDelay

	for !f.closed.Load() {
		f.connMu.Lock()
		conn := f.conn
		f.connMu.Unlock()

		if conn == nil {
			select {
			case <-f.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(f.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if f.closed.Load() {
				return
			}

			// Connection error, reconnect with exponential backoff
			if !f.reconnecting.Swap(true) {
				go f.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > f.config.MaxReconnectDelay {
				reconnectDelay = f.config.MaxReconnectDelay
			}

			select {
			case <-f.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		// Reset delay on successful read
		reconnectDelay = f.config.ReconnectDelay

		f.handleMessage(message)
	}
}

// reconnect attempts to reconnect and resubscribe.
func (f *WSFeed) reconnect(delay time.Duration) {
	defer f.reconnecting.Store(false)

	if f.closed.Load() {
		return
	}

	select {
	case <-f.done:
		return
	case <-time.After(delay):
	}

	f.connMu.Lock()
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
	f.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := f.connect(ctx); err != nil {
		f.logger.Warn("feed reconnect failed", zap.Error(err))
		return
	}

	f.logger.Info("feed reconnected", zap.String("endpoint", f.endpoint))
	f.resubscribeAll()
}

// resubscribeAll renews every active subscription after a reconnect,
// keeping the caller's channel.
func (f *WSFeed) resubscribeAll() {
	f.activeFiltersMu.RLock()
	filters := make(map[int64][]string, len(f.activeFilters))
	for id, signalIDs := range f.activeFilters {
		filters[id] = signalIDs
	}
	f.activeFiltersMu.RUnlock()

	f.subsMu.RLock()
	channels := make(map[int64]chan domain.SignalUpdate, len(f.subs))
	for id, ch := range f.subs {
		channels[id] = ch
	}
	f.subsMu.RUnlock()

	for oldSubID, signalIDs := range filters {
		ch := channels[oldSubID]
		if ch == nil {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		newSubID, err := f.subscribeInternal(ctx, signalIDs)
		cancel()

		if err != nil {
			f.logger.Warn("resubscribe failed",
				zap.Int64("subscription", oldSubID),
				zap.Error(err),
			)
			continue
		}

		f.subsMu.Lock()
		delete(f.subs, oldSubID)
		f.subs[newSubID] = ch
		f.subsMu.Unlock()

		f.activeFiltersMu.Lock()
		delete(f.activeFilters, oldSubID)
		f.activeFilters[newSubID] = signalIDs
		f.activeFiltersMu.Unlock()
	}
}

// handleMessage dispatches one incoming message by shape.
func (f *WSFeed) handleMessage(message []byte) {
	// Subscription confirmation carries an integer result
	var subResp wsSubscribeResponse
	if err := json.Unmarshal(message, &subResp); err == nil && subResp.Result > 0 {
		f.handleSubscribeResponse(&subResp)
		return
	}

	// Signal notification
	var notif wsNotification
	if err := json.Unmarshal(message, &notif); err == nil && notif.Method == "signalNotification" {
		f.handleSignalNotification(&notif)
		return
	}

	// Snapshot response carries a values object
	var snapResp wsSnapshotResponse
	if err := json.Unmarshal(message, &snapResp); err == nil && snapResp.Result != nil && snapResp.Result.Values != nil {
		f.handleSnapshotResponse(&snapResp)
		return
	}

	var errResp struct {
		JSONRPC string `json:"jsonrpc"`
		ID      uint64 `json:"id"`
		Error   *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(message, &errResp); err == nil && errResp.Error != nil {
		// The waiting call times out; nothing to fail directly
		f.logger.Warn("feed error response",
			zap.Int("code", errResp.Error.Code),
			zap.String("message", errResp.Error.Message),
		)
	}
}

// handleSubscribeResponse resolves a pending subscription.
func (f *WSFeed) handleSubscribeResponse(resp *wsSubscribeResponse) {
	f.pendingSubsMu.Lock()
	ch, ok := f.pendingSubs[resp.ID]
	if ok {
		delete(f.pendingSubs, resp.ID)
	}
	f.pendingSubsMu.Unlock()

	if ok {
		select {
		case ch <- resp.Result:
		default:
		}
	}
}

// handleSnapshotResponse resolves a pending snapshot call.
func (f *WSFeed) handleSnapshotResponse(resp *wsSnapshotResponse) {
	f.pendingSnapsMu.Lock()
	ch, ok := f.pendingSnaps[resp.ID]
	if ok {
		delete(f.pendingSnaps, resp.ID)
	}
	f.pendingSnapsMu.Unlock()

	if ok {
		select {
		case ch <- resp.Result.Values:
		default:
		}
	}
}

// handleSignalNotification dispatches one update to its subscriber.
func (f *WSFeed) handleSignalNotification(notif *wsNotification) {
	if notif.Params == nil {
		return
	}

	value := notif.Params.Result.Value
	update := domain.SignalUpdate{
		SignalID:      value.SignalID,
		OldValue:      value.OldValue,
		NewValue:      value.NewValue,
		ChangePercent: value.ChangePercent,
		ObservedAt:    value.ObservedAt,
	}

	f.subsMu.RLock()
	ch, ok := f.subs[notif.Params.Subscription]
	f.subsMu.RUnlock()

	if ok {
		// Block until the subscriber drains; updates are never dropped
		select {
		case ch <- update:
		case <-f.done:
			return
		}
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (f *WSFeed) pingLoop() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			f.connMu.Lock()
			if f.conn != nil {
				f.conn.SetWriteDeadline(time.Now().Add(f.config.WriteTimeout))
				if err := f.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					f.logger.Debug("ping failed, reader will reconnect", zap.Error(err))
				}
			}
			f.connMu.Unlock()
		}
	}
}

// Compile-time interface check.
var _ Feed = (*WSFeed)(nil)

// WebSocket message types

type wsRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type wsSubscribeResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Result  int64  `json:"result"` // subscription ID
}

type wsSnapshotResponse struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      uint64            `json:"id"`
	Result  *wsSnapshotResult `json:"result"`
}

type wsSnapshotResult struct {
	Values map[string]float64 `json:"values"`
}

type wsNotification struct {
	JSONRPC string                `json:"jsonrpc"`
	Method  string                `json:"method"`
	Params  *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Value wsSignalValue `json:"value"`
}

type wsSignalValue struct {
	SignalID      string  `json:"signalId"`
	OldValue      float64 `json:"oldValue"`
	NewValue      float64 `json:"newValue"`
	ChangePercent float64 `json:"changePercent"`
	ObservedAt    int64   `json:"observedAt"`
}
