package ledgerfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"trade-intel-lab/internal/domain"
	"trade-intel-lab/internal/storage/memory"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type countingStaler struct {
	calls atomic.Int64
}

func (s *countingStaler) MarkStale() { s.calls.Add(1) }

// feedServer serves one WebSocket connection and pushes the given raw
// messages to the client, then holds the connection open.
func feedServer(t *testing.T, messages []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		for _, msg := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestListener_AppendsResolvedOutcomes(t *testing.T) {
	event := `{
		"type": "outcome.resolved",
		"outcome": {
			"id": "feed-1",
			"symbol": "TSLA",
			"engineId": "momentum",
			"direction": "long",
			"signals": ["breakout"],
			"confidence": 60,
			"realizedReturnPct": 4.5,
			"resolution": "win",
			"closedAt": "2026-05-01T16:00:00Z"
		}
	}`
	server := feedServer(t, []string{event})
	defer server.Close()

	store := memory.NewOutcomeStore()
	staler := &countingStaler{}

	l, err := New(context.Background(), wsURL(server), store, staler, DefaultConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("connecting listener: %v", err)
	}
	defer l.Close()

	ok := waitFor(t, 2*time.Second, func() bool {
		n, _ := store.Count(context.Background())
		return n == 1
	})
	if !ok {
		t.Fatal("outcome never landed in the ledger")
	}

	o, err := store.GetByID(context.Background(), "feed-1")
	if err != nil {
		t.Fatalf("reading appended outcome: %v", err)
	}
	if o.Symbol != "TSLA" || o.Resolution != domain.ResolutionWin {
		t.Errorf("unexpected outcome: %+v", o)
	}
	if staler.calls.Load() != 1 {
		t.Errorf("expected 1 stale notification, got %d", staler.calls.Load())
	}
}

func TestListener_IgnoresOtherEventTypes(t *testing.T) {
	messages := []string{
		`{"type": "heartbeat"}`,
		`{"type": "outcome.opened", "outcome": {"id": "open-1", "symbol": "X", "confidence": 50, "resolution": "win", "realizedReturnPct": 1}}`,
		`not json at all`,
		`{
			"type": "outcome.resolved",
			"outcome": {
				"id": "feed-2", "symbol": "NVDA", "direction": "long",
				"confidence": 55, "realizedReturnPct": 2.0, "resolution": "win",
				"closedAt": "2026-05-01T17:00:00Z"
			}
		}`,
	}
	server := feedServer(t, messages)
	defer server.Close()

	store := memory.NewOutcomeStore()
	staler := &countingStaler{}

	l, err := New(context.Background(), wsURL(server), store, staler, DefaultConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("connecting listener: %v", err)
	}
	defer l.Close()

	waitFor(t, 2*time.Second, func() bool {
		n, _ := store.Count(context.Background())
		return n == 1
	})

	n, _ := store.Count(context.Background())
	if n != 1 {
		t.Fatalf("only the resolution event should land, got %d rows", n)
	}
	if _, err := store.GetByID(context.Background(), "feed-2"); err != nil {
		t.Errorf("resolution event missing: %v", err)
	}
}

func TestListener_RejectsInvalidOutcome(t *testing.T) {
	// Resolution contradicts the realized return.
	messages := []string{
		`{"type": "outcome.resolved", "outcome": {"id": "bad-1", "symbol": "X", "confidence": 50, "realizedReturnPct": -5, "resolution": "win"}}`,
	}
	server := feedServer(t, messages)
	defer server.Close()

	store := memory.NewOutcomeStore()
	staler := &countingStaler{}

	l, err := New(context.Background(), wsURL(server), store, staler, DefaultConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("connecting listener: %v", err)
	}
	defer l.Close()

	time.Sleep(200 * time.Millisecond)

	if n, _ := store.Count(context.Background()); n != 0 {
		t.Errorf("invalid outcome must not reach the ledger, got %d rows", n)
	}
	if staler.calls.Load() != 0 {
		t.Error("rejected outcome must not mark the snapshot stale")
	}
}

func TestListener_DuplicateRedeliveryTolerated(t *testing.T) {
	event := `{"type": "outcome.resolved", "outcome": {"id": "dup-1", "symbol": "X", "confidence": 50, "realizedReturnPct": 3, "resolution": "win", "closedAt": "2026-05-01T16:00:00Z"}}`
	server := feedServer(t, []string{event, event})
	defer server.Close()

	store := memory.NewOutcomeStore()
	staler := &countingStaler{}

	l, err := New(context.Background(), wsURL(server), store, staler, DefaultConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("connecting listener: %v", err)
	}
	defer l.Close()

	waitFor(t, 2*time.Second, func() bool { return staler.calls.Load() == 1 })
	time.Sleep(100 * time.Millisecond)

	if n, _ := store.Count(context.Background()); n != 1 {
		t.Errorf("redelivered event should be deduplicated, got %d rows", n)
	}
	if staler.calls.Load() != 1 {
		t.Errorf("duplicate must not re-mark stale, got %d calls", staler.calls.Load())
	}
}

func TestListener_CloseIsIdempotent(t *testing.T) {
	server := feedServer(t, nil)
	defer server.Close()

	l, err := New(context.Background(), wsURL(server), memory.NewOutcomeStore(), &countingStaler{}, DefaultConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("connecting listener: %v", err)
	}

	if err := l.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}
