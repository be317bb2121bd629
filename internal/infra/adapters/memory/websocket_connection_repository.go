package memory

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/qrave1/RoomRelay/internal/application/constant"
	"github.com/qrave1/RoomRelay/internal/application/metric"
)

// WebsocketConnectionRepository интерфейс для работы с активными соединениями в памяти
type WebsocketConnectionRepository interface {
	Add(uuid.UUID, *websocket.Conn)
	// Remove stops the write pump; false if the id was not registered.
	Remove(uuid.UUID) bool

	IsConnected(uuid.UUID) bool
	Count() int

	// Write enqueues payload for one client without blocking.
	Write(uuid.UUID, any) bool
	// Broadcast enqueues payload for every connected client and returns how many accepted it.
	Broadcast(any) int
}

type WSConfig struct {
	WriteWait  time.Duration
	PingPeriod time.Duration
	QueueSize  int
}

type wsConn struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan *websocket.PreparedMessage
	done chan struct{}
	once sync.Once
}

func (c *wsConn) enqueue(msg *websocket.PreparedMessage) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- msg:
		return true
	default:
		metric.IncRelayDropped(metric.DropReasonQueueFull)
		slog.Warn("outbound queue full, dropping message", slog.Any(constant.ClientID, c.id))
		return false
	}
}

func (c *wsConn) stop() {
	c.once.Do(func() { close(c.done) })
}

// writePump is the only writer on conn.
func (c *wsConn) writePump(cfg WSConfig) {
	ticker := time.NewTicker(cfg.PingPeriod)

	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.conn.WritePreparedMessage(msg); err != nil {
				slog.Error("write to websocket", slog.Any(constant.ClientID, c.id), slog.Any(constant.Error, err))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				slog.Debug("ping failed", slog.Any(constant.ClientID, c.id), slog.Any(constant.Error, err))
				return
			}

		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

type wsConnectionRepository struct {
	cfg WSConfig

	// wsConns хранит map[client_id]*wsConn
	wsConns map[uuid.UUID]*wsConn

	mu sync.RWMutex
}

func NewWSConnectionRepository(cfg WSConfig) WebsocketConnectionRepository {
	return &wsConnectionRepository{
		cfg:     cfg,
		wsConns: make(map[uuid.UUID]*wsConn, 10),
	}
}

func (w *wsConnectionRepository) Add(clientID uuid.UUID, conn *websocket.Conn) {
	c := &wsConn{
		id:   clientID,
		conn: conn,
		send: make(chan *websocket.PreparedMessage, w.cfg.QueueSize),
		done: make(chan struct{}),
	}

	w.mu.Lock()
	prev, ok := w.wsConns[clientID]
	w.wsConns[clientID] = c
	w.mu.Unlock()

	if ok {
		prev.stop()
	} else {
		metric.IncrementWSActiveConnections()
	}

	go c.writePump(w.cfg)
}

func (w *wsConnectionRepository) Remove(clientID uuid.UUID) bool {
	w.mu.Lock()
	c, ok := w.wsConns[clientID]
	delete(w.wsConns, clientID)
	w.mu.Unlock()

	if !ok {
		return false
	}

	c.stop()
	metric.DecrementWSActiveConnections()

	return true
}

func (w *wsConnectionRepository) IsConnected(clientID uuid.UUID) bool {
	_, ok := w.get(clientID)
	return ok
}

func (w *wsConnectionRepository) Count() int {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return len(w.wsConns)
}

func (w *wsConnectionRepository) Write(clientID uuid.UUID, payload any) bool {
	c, ok := w.get(clientID)
	if !ok {
		slog.Debug("websocket not found", slog.Any(constant.ClientID, clientID))
		return false
	}

	msg, err := prepare(payload)
	if err != nil {
		slog.Error("prepare websocket message", slog.Any(constant.ClientID, clientID), slog.Any(constant.Error, err))
		return false
	}

	return c.enqueue(msg)
}

func (w *wsConnectionRepository) Broadcast(payload any) int {
	msg, err := prepare(payload)
	if err != nil {
		slog.Error("prepare broadcast message", slog.Any(constant.Error, err))
		return 0
	}

	w.mu.RLock()
	conns := make([]*wsConn, 0, len(w.wsConns))
	for _, c := range w.wsConns {
		conns = append(conns, c)
	}
	w.mu.RUnlock()

	sent := 0
	for _, c := range conns {
		if c.enqueue(msg) {
			sent++
		}
	}

	return sent
}

func (w *wsConnectionRepository) get(clientID uuid.UUID) (*wsConn, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	c, ok := w.wsConns[clientID]
	return c, ok
}

func prepare(payload any) (*websocket.PreparedMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return websocket.NewPreparedMessage(websocket.TextMessage, data)
}
