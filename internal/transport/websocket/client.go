package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mehdidhammou/ai-connect-four/internal/domain"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 32
)

// rendererConn is one connected renderer. All writes go through writeMu
// because gorilla connections allow a single concurrent writer.
type rendererConn struct {
	id       string
	renderer string
	conn     *websocket.Conn
	send     chan domain.ServerMessage
	writeMu  sync.Mutex
	done     chan struct{}
	once     sync.Once
}

func (rc *rendererConn) write(messageType int, data []byte) error {
	rc.writeMu.Lock()
	defer rc.writeMu.Unlock()
	rc.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return rc.conn.WriteMessage(messageType, data)
}

func (rc *rendererConn) writeJSON(v interface{}) error {
	rc.writeMu.Lock()
	defer rc.writeMu.Unlock()
	rc.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return rc.conn.WriteJSON(v)
}

// writePump drains send in order so snapshots reach the renderer in the
// order the session produced them.
func (rc *rendererConn) writePump() {
	for {
		select {
		case msg := <-rc.send:
			if err := rc.writeJSON(msg); err != nil {
				log.Debug().Str("component", "ws").Str("conn", rc.id).Err(err).Msg("write failed")
				rc.close()
				return
			}
		case <-rc.done:
			return
		}
	}
}

func (rc *rendererConn) close() {
	rc.once.Do(func() {
		close(rc.done)
		rc.conn.Close()
	})
}

// ConnectionManager tracks the renderers attached to the bridge.
type ConnectionManager struct {
	connections map[string]*rendererConn
	mu          sync.RWMutex
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*rendererConn),
	}
}

// AddConnection registers conn under id and starts its writer.
func (cm *ConnectionManager) AddConnection(id string, conn *websocket.Conn, renderer string) {
	rc := &rendererConn{
		id:       id,
		renderer: renderer,
		conn:     conn,
		send:     make(chan domain.ServerMessage, sendBuffer),
		done:     make(chan struct{}),
	}

	cm.mu.Lock()
	if old, exists := cm.connections[id]; exists {
		old.close()
	}
	cm.connections[id] = rc
	cm.mu.Unlock()

	go rc.writePump()
}

func (cm *ConnectionManager) RemoveConnection(id string) {
	cm.mu.Lock()
	rc, exists := cm.connections[id]
	delete(cm.connections, id)
	cm.mu.Unlock()

	if exists {
		rc.close()
	}
}

// SendMessage queues message for one renderer. A renderer whose queue is full
// is disconnected rather than allowed to stall the session.
func (cm *ConnectionManager) SendMessage(id string, message domain.ServerMessage) {
	cm.mu.RLock()
	rc, exists := cm.connections[id]
	cm.mu.RUnlock()

	if !exists {
		return
	}
	cm.enqueue(rc, message)
}

// BroadcastMessage queues message for every renderer.
func (cm *ConnectionManager) BroadcastMessage(message domain.ServerMessage) {
	cm.mu.RLock()
	targets := make([]*rendererConn, 0, len(cm.connections))
	for _, rc := range cm.connections {
		targets = append(targets, rc)
	}
	cm.mu.RUnlock()

	for _, rc := range targets {
		cm.enqueue(rc, message)
	}
}

func (cm *ConnectionManager) enqueue(rc *rendererConn, message domain.ServerMessage) {
	select {
	case rc.send <- message:
	case <-rc.done:
	default:
		log.Warn().Str("component", "ws").Str("conn", rc.id).Str("renderer", rc.renderer).
			Msg("renderer too slow, disconnecting")
		cm.RemoveConnection(rc.id)
	}
}

// Ping sends a websocket ping to id.
func (cm *ConnectionManager) Ping(id string) error {
	cm.mu.RLock()
	rc, exists := cm.connections[id]
	cm.mu.RUnlock()

	if !exists {
		return websocket.ErrCloseSent
	}
	return rc.write(websocket.PingMessage, nil)
}

func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections)
}
