package events

import (
	"encoding/json"
	"testing"
)

func TestJoinEvent_AcceptsStringAndObject(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: `"r1"`, want: "r1"},
		{in: `{"roomName":"r1"}`, want: "r1"},
		{in: `{}`, want: ""},
	}

	for _, tt := range tests {
		var ev JoinEvent
		if err := json.Unmarshal([]byte(tt.in), &ev); err != nil {
			t.Fatalf("unmarshal %s: %v", tt.in, err)
		}
		if ev.RoomName != tt.want {
			t.Fatalf("unmarshal %s: RoomName=%q, want %q", tt.in, ev.RoomName, tt.want)
		}
	}

	var ev JoinEvent
	if err := json.Unmarshal([]byte(`[1]`), &ev); err == nil {
		t.Fatal("expected error for array payload")
	}
}

func TestNewMessage(t *testing.T) {
	msg, err := NewMessage(TypeNewPeer, PeerEvent{ID: "abc"})
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"type":"new-peer","data":{"id":"abc"}}` {
		t.Fatalf("wire=%s", raw)
	}

	pong, _ := NewMessage(TypePong, nil)
	raw, _ = json.Marshal(pong)
	if string(raw) != `{"type":"pong"}` {
		t.Fatalf("pong wire=%s", raw)
	}
}
