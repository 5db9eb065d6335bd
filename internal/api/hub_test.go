package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"survivor-arena/internal/config"
	"survivor-arena/internal/game"
	"survivor-arena/internal/protocol"
)

type wsFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type testServer struct {
	engine *game.Engine
	hub    *Hub
	ts     *httptest.Server
}

func newTestServer(t *testing.T, cfg config.AppConfig) *testServer {
	t.Helper()
	engine := game.NewEngine(cfg, game.WithManualTicks(), game.WithSeed(7))
	hub := NewHub(engine, cfg)
	engine.SetDispatcher(hub)

	router := NewRouter(RouterConfig{
		Engine:          engine,
		Hub:             hub,
		RateLimitConfig: &RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000, CleanupInterval: time.Hour},
		DisableLogging:  true,
	})
	ts := httptest.NewServer(router)
	t.Cleanup(func() {
		ts.Close()
		engine.Close()
	})
	return &testServer{engine: engine, hub: hub, ts: ts}
}

func (s *testServer) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.ts.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads JSON frames until one named event arrives
func readUntil(t *testing.T, conn *websocket.Conn, event string) wsFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", event, err)
		}
		var f wsFrame
		if err := json.Unmarshal(data, &f); err != nil {
			t.Fatalf("bad frame %s: %v", data, err)
		}
		if f.Event == event {
			return f
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, msg string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubJoinSendsFullStateToJoiner(t *testing.T) {
	s := newTestServer(t, config.Default())

	a := s.dial(t, "")
	f := readUntil(t, a, "fullState")
	var state game.FullState
	if err := json.Unmarshal(f.Data, &state); err != nil {
		t.Fatalf("fullState: %v", err)
	}
	if state.SelfID == "" || len(state.Players) != 1 || state.Players[0].ID != state.SelfID {
		t.Fatalf("fullState = %+v", state)
	}

	b := s.dial(t, "")
	readUntil(t, b, "fullState")
	joined := readUntil(t, a, "playerJoined")
	if !strings.Contains(string(joined.Data), `"id"`) {
		t.Errorf("playerJoined data = %s", joined.Data)
	}

	if n := s.hub.SessionCount(); n != 2 {
		t.Errorf("sessions = %d, want 2", n)
	}
	if !s.engine.Running() {
		t.Error("engine not running after join")
	}
}

func TestHubRoutesMessagesToEngine(t *testing.T) {
	s := newTestServer(t, config.Default())

	a := s.dial(t, "")
	readUntil(t, a, "fullState")
	b := s.dial(t, "")
	readUntil(t, b, "fullState")

	send(t, b, `{"event":"setPlayerName","data":"Bea"}`)
	f := readUntil(t, a, "playerNameUpdated")
	if !strings.Contains(string(f.Data), `"Bea"`) {
		t.Errorf("playerNameUpdated = %s", f.Data)
	}

	send(t, b, `{"type":"move","data":{"x":400,"y":300}}`)
	moved := readUntil(t, a, "playerMoved")
	var pos struct{ X, Y float64 }
	json.Unmarshal(moved.Data, &pos)
	if pos.X != 400 || pos.Y != 300 {
		t.Errorf("playerMoved = %s", moved.Data)
	}
}

func TestHubReportsRejectedMessages(t *testing.T) {
	s := newTestServer(t, config.Default())

	a := s.dial(t, "")
	readUntil(t, a, "fullState")

	send(t, a, `{"type":"teleport","data":{}}`)
	f := readUntil(t, a, "error")
	if !strings.Contains(string(f.Data), `"unknown"`) {
		t.Errorf("error = %s", f.Data)
	}

	send(t, a, `{"type":"reportHit","data":{"enemyId":"e","damage":-1}}`)
	f = readUntil(t, a, "error")
	if !strings.Contains(string(f.Data), `"invalid"`) {
		t.Errorf("error = %s", f.Data)
	}
}

func TestHubDisconnectTearsDown(t *testing.T) {
	s := newTestServer(t, config.Default())

	a := s.dial(t, "")
	readUntil(t, a, "fullState")
	b := s.dial(t, "")
	readUntil(t, b, "fullState")

	b.Close()
	readUntil(t, a, "playerDisconnected")
	waitFor(t, "one session", func() bool { return s.hub.SessionCount() == 1 })

	send(t, a, `{"type":"disconnect"}`)
	waitFor(t, "engine stop", func() bool { return !s.engine.Running() })
	if n := s.engine.PlayerCount(); n != 0 {
		t.Errorf("players after last disconnect = %d", n)
	}
}

func TestHubRejectsWhenServerFull(t *testing.T) {
	cfg := config.Default()
	cfg.Limits.MaxPlayers = 1
	s := newTestServer(t, cfg)

	a := s.dial(t, "")
	readUntil(t, a, "fullState")

	b := s.dial(t, "")
	b.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := b.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseTryAgainLater) {
		t.Fatalf("second session read err = %v, want close 1013", err)
	}
	waitFor(t, "rejected session removed", func() bool { return s.hub.SessionCount() == 1 })
}

func TestHubPerIPLimit(t *testing.T) {
	cfg := config.Default()
	cfg.Limits.MaxWSConnectionsPerIP = 1
	s := newTestServer(t, cfg)

	a := s.dial(t, "")
	readUntil(t, a, "fullState")

	url := "ws" + strings.TrimPrefix(s.ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("second connection from the same IP accepted")
	}
	if resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("response = %v, want 429", resp)
	}
}

func TestHubMsgpackSession(t *testing.T) {
	s := newTestServer(t, config.Default())

	conn := s.dial(t, "?codec=msgpack")
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if kind != websocket.BinaryMessage {
		t.Fatalf("message type = %d, want binary", kind)
	}

	var f struct {
		Event string         `msgpack:"event"`
		Data  map[string]any `msgpack:"data"`
	}
	if err := msgpack.Unmarshal(data, &f); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if f.Event != "fullState" || f.Data["selfId"] == nil {
		t.Errorf("first frame = %+v", f)
	}
}

func TestHubUnknownCodec(t *testing.T) {
	s := newTestServer(t, config.Default())

	resp, err := http.Get(s.ts.URL + "/ws?codec=xml")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestDispatchTargetsAndExcludes(t *testing.T) {
	cfg := config.Default()
	h := NewHub(&recordingEngine{}, cfg)

	mk := func(id string) *session {
		return &session{id: id, codec: protocol.JSONCodec{}, send: make(chan []byte, 8), closed: make(chan struct{})}
	}
	a, b := mk("a"), mk("b")
	h.sessions["a"], h.sessions["b"] = a, b

	h.Dispatch([]game.Event{
		{Type: game.EventPlayerMoved, Exclude: "a", Payload: map[string]string{"id": "a"}},
		{Type: game.EventUpgradeChoicesOffered, Target: "a", Payload: map[string]int{"level": 2}},
		{Type: game.EventWaveStarted, Payload: map[string]int{"waveNumber": 1}},
	})

	if got := drain(a); strings.Join(got, ",") != "upgradeChoicesOffered,waveStarted" {
		t.Errorf("a received %v", got)
	}
	if got := drain(b); strings.Join(got, ",") != "playerMoved,waveStarted" {
		t.Errorf("b received %v", got)
	}
}

func TestDispatchDropsWhenSendBufferFull(t *testing.T) {
	h := NewHub(&recordingEngine{}, config.Default())
	s := &session{id: "slow", codec: protocol.JSONCodec{}, send: make(chan []byte, 1), closed: make(chan struct{})}
	h.sessions["slow"] = s

	ev := game.Event{Type: game.EventEnemyMoved, Payload: map[string]string{"id": "e"}}
	// Must not block even though only one frame fits
	h.Dispatch([]game.Event{ev, ev, ev})

	if n := len(s.send); n != 1 {
		t.Errorf("buffered = %d, want 1", n)
	}
}

func drain(s *session) []string {
	var names []string
	for {
		select {
		case frame := <-s.send:
			var f wsFrame
			json.Unmarshal(frame, &f)
			names = append(names, f.Event)
		default:
			return names
		}
	}
}
