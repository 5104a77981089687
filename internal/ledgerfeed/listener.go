// Package ledgerfeed streams resolved trade outcomes from an upstream
// execution service over WebSocket and appends them to the outcome ledger.
// Every accepted event marks the derived snapshot stale so the next
// scheduled refresh picks the new rows up.
package ledgerfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"trade-intel-lab/internal/domain"
	"trade-intel-lab/internal/observability"
	"trade-intel-lab/internal/storage"
)

// Staler is notified when the ledger gains rows the current snapshot
// does not reflect.
type Staler interface {
	MarkStale()
}

// Config configures listener connection behavior.
type Config struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// BreakevenBandPct is the band used when validating incoming outcomes.
	BreakevenBandPct float64
}

// DefaultConfig returns default listener configuration.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		BreakevenBandPct:  0.25,
	}
}

// outcomeEvent is the upstream wire format. Only resolution events carry
// an outcome payload; other event types are ignored.
type outcomeEvent struct {
	Type    string               `json:"type"`
	Outcome *domain.TradeOutcome `json:"outcome"`
}

const eventTypeResolution = "outcome.resolved"

// Listener maintains a WebSocket subscription to the outcome feed.
type Listener struct {
	endpoint string
	config   Config
	store    storage.OutcomeStore
	staler   Staler
	log      zerolog.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	reconnecting atomic.Bool

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a listener and connects to the endpoint. The read and ping
// loops run until Close is called.
func New(ctx context.Context, endpoint string, store storage.OutcomeStore, staler Staler, cfg Config, log zerolog.Logger) (*Listener, error) {
	l := &Listener{
		endpoint: endpoint,
		config:   cfg,
		store:    store,
		staler:   staler,
		log:      log.With().Str("component", "ledgerfeed").Logger(),
		done:     make(chan struct{}),
	}

	if err := l.connect(ctx); err != nil {
		return nil, err
	}

	l.wg.Add(1)
	go l.readLoop()

	l.wg.Add(1)
	go l.pingLoop()

	l.log.Info().Str("endpoint", endpoint).Msg("outcome feed connected")
	return l, nil
}

// connect establishes the WebSocket connection.
func (l *Listener) connect(ctx context.Context) error {
	l.connMu.Lock()
	defer l.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, l.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	l.conn = conn
	return nil
}

// Close closes the WebSocket connection and stops the loops.
func (l *Listener) Close() error {
	if l.closed.Swap(true) {
		return nil // Already closed
	}

	close(l.done)

	l.connMu.Lock()
	if l.conn != nil {
		l.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		l.conn.Close()
	}
	l.connMu.Unlock()

	l.wg.Wait()
	return nil
}

// readLoop reads messages and appends accepted outcomes to the ledger.
func (l *Listener) readLoop() {
	defer l.wg.Done()

	reconnectDelay := l.config.ReconnectDelay

	for !l.closed.Load() {
		l.connMu.Lock()
		conn := l.conn
		l.connMu.Unlock()

		if conn == nil {
			select {
			case <-l.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(l.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if l.closed.Load() {
				return
			}

			// Connection error, reconnect with exponential backoff.
			if !l.reconnecting.Swap(true) {
				go l.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > l.config.MaxReconnectDelay {
				reconnectDelay = l.config.MaxReconnectDelay
			}

			select {
			case <-l.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		// Reset delay on successful read.
		reconnectDelay = l.config.ReconnectDelay

		l.handleMessage(message)
	}
}

// reconnect waits out the backoff delay and re-dials.
func (l *Listener) reconnect(delay time.Duration) {
	defer l.reconnecting.Store(false)

	if l.closed.Load() {
		return
	}

	select {
	case <-l.done:
		return
	case <-time.After(delay):
	}

	l.connMu.Lock()
	if l.conn != nil {
		l.conn.Close()
		l.conn = nil
	}
	l.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := l.connect(ctx); err != nil {
		l.log.Warn().Err(err).Msg("reconnect failed, will retry on next read error")
		return
	}

	l.log.Info().Msg("outcome feed reconnected")
}

// handleMessage parses and applies one incoming event.
func (l *Listener) handleMessage(message []byte) {
	var ev outcomeEvent
	if err := json.Unmarshal(message, &ev); err != nil {
		observability.RecordLedgerEvent("malformed")
		l.log.Warn().Err(err).Msg("unparseable feed event")
		return
	}

	if ev.Type != eventTypeResolution || ev.Outcome == nil {
		observability.RecordLedgerEvent("ignored")
		return
	}

	if err := ev.Outcome.Validate(l.config.BreakevenBandPct); err != nil {
		observability.RecordLedgerEvent("invalid")
		l.log.Warn().Err(err).Str("id", ev.Outcome.ID).Msg("rejected feed outcome")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := l.store.Insert(ctx, ev.Outcome); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			// Redelivery after reconnect, already in the ledger.
			observability.RecordLedgerEvent("duplicate")
			return
		}
		observability.RecordLedgerEvent("store_error")
		l.log.Error().Err(err).Str("id", ev.Outcome.ID).Msg("ledger append failed")
		return
	}

	observability.RecordLedgerEvent("accepted")
	l.staler.MarkStale()

	l.log.Debug().
		Str("id", ev.Outcome.ID).
		Str("symbol", ev.Outcome.Symbol).
		Str("resolution", string(ev.Outcome.Resolution)).
		Msg("outcome appended")
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (l *Listener) pingLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.connMu.Lock()
			if l.conn != nil {
				l.conn.SetWriteDeadline(time.Now().Add(l.config.WriteTimeout))
				if err := l.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead, reader will handle reconnect.
				}
			}
			l.connMu.Unlock()
		}
	}
}
