package events

import (
	"encoding/json"
	"fmt"
)

// Входящие типы сообщений
const (
	TypeJoin         = "join"
	TypeLeave        = "leave"
	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeIceCandidate = "ice-candidate"
	TypePing         = "ping"
)

// Исходящие типы сообщений
const (
	TypeConnected   = "connected"
	TypeUpdateRooms = "update-rooms"
	TypeNewPeer     = "new-peer"
	TypePeerLeft    = "peer-left"
	TypePong        = "pong"
	TypeError       = "error"
)

// Message - общее событие
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func NewMessage(msgType string, data any) (Message, error) {
	if data == nil {
		return Message{Type: msgType}, nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s data: %w", msgType, err)
	}

	return Message{Type: msgType, Data: raw}, nil
}

// JoinEvent - запрос на вход в комнату.
// Принимает как {"roomName": "..."}, так и просто строку.
type JoinEvent struct {
	RoomName string `json:"roomName"`
}

func (j *JoinEvent) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		j.RoomName = name
		return nil
	}

	type plain JoinEvent
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	*j = JoinEvent(p)
	return nil
}

// SdpEvent - offer или answer, адресованный конкретному участнику
type SdpEvent struct {
	SDP      string `json:"sdp"`
	TargetID string `json:"targetId"`
	RoomName string `json:"roomName,omitempty"`
}

// IceCandidateEvent - ICE кандидат, адресованный конкретному участнику.
// Candidate не разбирается и пересылается как есть.
type IceCandidateEvent struct {
	Candidate json.RawMessage `json:"candidate"`
	TargetID  string          `json:"targetId"`
	RoomName  string          `json:"roomName,omitempty"`
}

type RelayedSdpEvent struct {
	SDP    string `json:"sdp"`
	FromID string `json:"fromId"`
}

type RelayedIceCandidateEvent struct {
	Candidate json.RawMessage `json:"candidate"`
	FromID    string          `json:"fromId"`
}

// PeerEvent - new-peer, peer-left и connected
type PeerEvent struct {
	ID string `json:"id"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}
