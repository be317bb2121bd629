package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/qrave1/RoomRelay/internal/application/config"
	"github.com/qrave1/RoomRelay/internal/domain"
	"github.com/qrave1/RoomRelay/internal/domain/events"
	"github.com/qrave1/RoomRelay/internal/infra/adapters/memory"
	"github.com/qrave1/RoomRelay/internal/infra/ports/http/handlers"
	"github.com/qrave1/RoomRelay/internal/infra/ports/http/server"
	"github.com/qrave1/RoomRelay/internal/usecase"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{
		Debug:             true,
		StaticDir:         t.TempDir(),
		MaxRoomNameLength: domain.DefaultMaxRoomNameLength,
		WS: config.WSConfig{
			MaxMessageBytes:      64 * 1024,
			MaxMessagesPerSecond: 100,
			SendQueueSize:        64,
			WriteWait:            5 * time.Second,
			PongWait:             60 * time.Second,
		},
		ICE: config.ICEConfig{
			STUNURLs:   []string{"stun:stun.example.com:3478"},
			TurnHost:   "turn.example.com:3478",
			TurnTTL:    time.Hour,
			TurnSecret: "secret",
		},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()

	registry := memory.NewSessionRegistry(cfg.MaxRoomNameLength)
	wsRepo := memory.NewWSConnectionRepository(memory.WSConfig{
		WriteWait:  cfg.WS.WriteWait,
		PingPeriod: cfg.WS.PingPeriod(),
		QueueSize:  cfg.WS.SendQueueSize,
	})
	uc := usecase.NewSignalingUsecase(registry, wsRepo)

	e := server.New(
		cfg,
		handlers.NewRoomHandler(uc),
		handlers.NewIceHandler(cfg),
		handlers.NewWebSocketHandler(cfg, uc, wsRepo),
	)

	ts := httptest.NewServer(e)
	t.Cleanup(ts.Close)
	return ts
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
	id   string
}

func dial(t *testing.T, ts *httptest.Server) *wsClient {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	c := &wsClient{t: t, conn: conn}

	var hello events.PeerEvent
	c.decode(c.next(events.TypeConnected, nil), &hello)
	c.id = hello.ID
	if c.id == "" {
		t.Fatal("connected without id")
	}

	return c
}

func (c *wsClient) send(msgType string, data any) {
	c.t.Helper()

	msg, err := events.NewMessage(msgType, data)
	if err != nil {
		c.t.Fatalf("new message: %v", err)
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		c.t.Fatalf("write %s: %v", msgType, err)
	}
}

// next reads until a message of msgType satisfying match arrives.
func (c *wsClient) next(msgType string, match func(events.Message) bool) events.Message {
	c.t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for {
		_ = c.conn.SetReadDeadline(deadline)

		var msg events.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.t.Fatalf("waiting for %s: %v", msgType, err)
		}
		if msg.Type == msgType && (match == nil || match(msg)) {
			return msg
		}
	}
}

func (c *wsClient) decode(msg events.Message, v any) {
	c.t.Helper()

	if err := json.Unmarshal(msg.Data, v); err != nil {
		c.t.Fatalf("decode %s: %v", msg.Type, err)
	}
}

func roomHas(room string, n int) func(events.Message) bool {
	return func(msg events.Message) bool {
		var rooms domain.RoomListing
		if err := json.Unmarshal(msg.Data, &rooms); err != nil {
			return false
		}
		return len(rooms[room]) == n
	}
}

func TestWebSocket_SignalingFlow(t *testing.T) {
	ts := newTestServer(t, testConfig(t))

	a := dial(t, ts)
	b := dial(t, ts)

	a.send(events.TypeJoin, events.JoinEvent{RoomName: "r1"})
	a.next(events.TypeUpdateRooms, roomHas("r1", 1))

	// Plain string payload is accepted for join.
	b.send(events.TypeJoin, "r1")

	var peer events.PeerEvent
	a.decode(a.next(events.TypeNewPeer, nil), &peer)
	if peer.ID != b.id {
		t.Fatalf("new-peer=%s, want %s", peer.ID, b.id)
	}
	b.next(events.TypeUpdateRooms, roomHas("r1", 2))

	a.send(events.TypeOffer, events.SdpEvent{SDP: "x", TargetID: b.id, RoomName: "r1"})

	var offer events.RelayedSdpEvent
	b.decode(b.next(events.TypeOffer, nil), &offer)
	if offer.SDP != "x" || offer.FromID != a.id {
		t.Fatalf("offer=%+v", offer)
	}

	b.send(events.TypeIceCandidate, events.IceCandidateEvent{
		Candidate: json.RawMessage(`{"candidate":"candidate:0 1 UDP 1 10.0.0.2 9 typ host","sdpMid":"0"}`),
		TargetID:  a.id,
	})

	var cand events.RelayedIceCandidateEvent
	a.decode(a.next(events.TypeIceCandidate, nil), &cand)
	if cand.FromID != b.id || !strings.Contains(string(cand.Candidate), "10.0.0.2") {
		t.Fatalf("candidate=%+v", cand)
	}

	_ = b.conn.Close()

	a.decode(a.next(events.TypePeerLeft, nil), &peer)
	if peer.ID != b.id {
		t.Fatalf("peer-left=%s, want %s", peer.ID, b.id)
	}
	a.next(events.TypeUpdateRooms, roomHas("r1", 1))

	resp, err := http.Get(ts.URL + "/api/v1/rooms")
	if err != nil {
		t.Fatalf("get rooms: %v", err)
	}
	defer resp.Body.Close()

	var rooms domain.RoomListing
	if err := json.NewDecoder(resp.Body).Decode(&rooms); err != nil {
		t.Fatalf("decode rooms: %v", err)
	}
	if got := rooms["r1"]; len(got) != 1 || got[0] != a.id {
		t.Fatalf("rooms=%v", rooms)
	}
}

func TestWebSocket_InvalidInputGetsError(t *testing.T) {
	ts := newTestServer(t, testConfig(t))
	a := dial(t, ts)

	tests := []struct {
		name string
		send func()
		want string
	}{
		{
			name: "not json",
			send: func() { _ = a.conn.WriteMessage(websocket.TextMessage, []byte("hello")) },
			want: "malformed message",
		},
		{
			name: "unknown type",
			send: func() { a.send("create-room", "r1") },
			want: "unknown message type",
		},
		{
			name: "empty room",
			send: func() { a.send(events.TypeJoin, events.JoinEvent{RoomName: ""}) },
			want: "invalid room name",
		},
		{
			name: "bad target",
			send: func() { a.send(events.TypeAnswer, events.SdpEvent{SDP: "y", TargetID: "nobody"}) },
			want: domain.ErrInvalidTargetID.Error(),
		},
		{
			name: "join without data",
			send: func() { a.send(events.TypeJoin, nil) },
			want: "malformed join",
		},
	}

	// One connection, so cases run in order.
	for _, tt := range tests {
		tt.send()

		var ev events.ErrorEvent
		a.decode(a.next(events.TypeError, nil), &ev)
		if ev.Message != tt.want {
			t.Fatalf("%s: error=%q, want %q", tt.name, ev.Message, tt.want)
		}
	}

	a.send(events.TypePing, nil)
	a.next(events.TypePong, nil)
}

func TestWebSocket_RateLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.WS.MaxMessagesPerSecond = 1
	ts := newTestServer(t, cfg)
	a := dial(t, ts)

	a.send(events.TypePing, nil)
	a.send(events.TypePing, nil)

	var ev events.ErrorEvent
	a.decode(a.next(events.TypeError, nil), &ev)
	if ev.Message != "rate limit exceeded" {
		t.Fatalf("error=%q", ev.Message)
	}
}
