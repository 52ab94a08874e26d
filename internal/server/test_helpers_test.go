package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/hoopcast/hoopcast/internal/game"
	"github.com/hoopcast/hoopcast/internal/protocol"
	"github.com/hoopcast/hoopcast/internal/rooms"
	"github.com/hoopcast/hoopcast/internal/sim"
	"github.com/hoopcast/hoopcast/internal/stats"
)

// stubProvider serves a fixed roster and no stat lines.
type stubProvider struct {
	statsByDate map[string][]stats.StatRecord
}

func (p *stubProvider) FetchRosterBasic(ctx context.Context) ([]stats.Player, error) {
	return []stats.Player{
		{ID: "p1", Name: "Jordan Reeves", Team: "BOS", Position: "G"},
		{ID: "p2", Name: "Trey Lambert", Team: "LAL", Position: "F"},
	}, nil
}

func (p *stubProvider) FetchGameStatsByDate(ctx context.Context, date string) ([]stats.StatRecord, error) {
	return p.statsByDate[date], nil
}

type testStack struct {
	srv   *Server
	store *game.MemoryStore
	http  *httptest.Server
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	logger := log.New(io.Discard)
	clock := quartz.NewReal()
	store := game.NewMemoryStore()
	broadcaster := rooms.NewBroadcaster(store, logger, clock)
	store.SetInUseCheck(broadcaster.HasSubscribers)

	provider := &stubProvider{statsByDate: map[string][]stats.StatRecord{
		"2025-11-01": {{PlayerID: "p1", GameID: "g-1101", Points: 25}},
	}}
	cache := stats.NewCache(provider, logger, clock, stats.CacheConfig{})
	engine := sim.NewEngine(store, broadcaster, cache, logger, clock, 42)

	deps := &Deps{Store: store, Rooms: broadcaster, Engine: engine, Stats: cache, Clock: clock}
	srv := NewServer("127.0.0.1:0", logger, deps)
	go srv.run()

	ts := httptest.NewServer(srv.routes())
	t.Cleanup(func() {
		ts.Close()
		srv.cancel()
	})

	require.NoError(t, store.Create(&game.Game{
		ID:       "g1",
		Date:     time.Date(2025, 11, 1, 19, 0, 0, 0, time.UTC),
		HomeTeam: "Celtics",
		AwayTeam: "Lakers",
		Status:   game.StatusLive,
		Quarter:  1,
		Clock:    "12:00",
	}))

	return &testStack{srv: srv, store: store, http: ts}
}

// dial opens a WebSocket client against the stack and waits for welcome.
func (s *testStack) dial(t *testing.T) (*websocket.Conn, protocol.WelcomeData) {
	t.Helper()

	url := "ws" + strings.TrimPrefix(s.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	msg := readType(t, conn, protocol.TypeWelcome)
	var welcome protocol.WelcomeData
	require.NoError(t, json.Unmarshal(msg.Data, &welcome))
	return conn, welcome
}

// readType reads frames until one of the wanted type arrives.
func readType(t *testing.T, conn *websocket.Conn, want protocol.MessageType) *protocol.Message {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var msg protocol.Message
		require.NoError(t, conn.ReadJSON(&msg), "waiting for %s", want)
		if msg.Type == want {
			return &msg
		}
	}
}

// send writes one enveloped request.
func send(t *testing.T, conn *websocket.Conn, messageType protocol.MessageType, data interface{}) {
	t.Helper()
	msg, err := protocol.NewMessage(messageType, data, time.Now())
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(msg))
}

// expectSilence asserts that no frame of the given type arrives within d.
func expectSilence(t *testing.T, conn *websocket.Conn, unwanted protocol.MessageType, d time.Duration) {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(d))
	for {
		var msg protocol.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return // Timeout: nothing unwanted arrived.
		}
		require.NotEqual(t, unwanted, msg.Type, "received unwanted %s frame", unwanted)
	}
}
