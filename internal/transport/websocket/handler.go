package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mehdidhammou/ai-connect-four/internal/domain"
	"github.com/mehdidhammou/ai-connect-four/internal/service/game"
	"github.com/mehdidhammou/ai-connect-four/internal/service/health"
	"github.com/mehdidhammou/ai-connect-four/pkg/auth"
	"github.com/mehdidhammou/ai-connect-four/pkg/uid"
	"github.com/mehdidhammou/ai-connect-four/pkg/useragent"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Handler streams the session to renderers and accepts their commands.
type Handler struct {
	ConnManager *ConnectionManager
	GameService *game.Service
	Health      *health.Monitor
	Upgrader    websocket.Upgrader

	secret      string
	unsubscribe func()
}

// NewHandler wires the handler to the game service and the health monitor.
// monitor may be nil. It must be called before monitor.Start.
func NewHandler(cm *ConnectionManager, gs *game.Service, monitor *health.Monitor, secret string, allowedOrigins []string) *Handler {
	h := &Handler{
		ConnManager: cm,
		GameService: gs,
		Health:      monitor,
		secret:      secret,
		Upgrader: websocket.Upgrader{
			CheckOrigin:     originChecker(allowedOrigins),
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	h.unsubscribe = gs.Subscribe(func(snap domain.Snapshot) {
		cm.BroadcastMessage(stateMessage(snap))
	})
	if monitor != nil {
		monitor.OnChange(func(connected bool) {
			cm.BroadcastMessage(healthMessage(connected))
		})
	}
	return h
}

// Close stops forwarding session changes.
func (h *Handler) Close() {
	if h.unsubscribe != nil {
		h.unsubscribe()
	}
}

// HandleWebSocket is the HTTP handler that upgrades the connection
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Str("component", "ws").Err(err).Msg("upgrade failed")
		return
	}

	h.handleConnection(conn, useragent.DescribeRenderer(r))
}

func (h *Handler) handleConnection(conn *websocket.Conn, client string) {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// 1. Wait for init carrying the bridge token
	_, data, err := conn.ReadMessage()
	if err != nil {
		log.Debug().Str("component", "ws").Err(err).Msg("read error during init")
		conn.Close()
		return
	}

	var message domain.ClientMessage
	if err := json.Unmarshal(data, &message); err != nil || message.Type != "init" || message.JWT == "" {
		log.Warn().Str("component", "ws").Str("client", client).Msg("missing init message or token")
		conn.WriteJSON(domain.ErrorMessage{Type: "error", Message: "first message must be init with a token"})
		conn.Close()
		return
	}

	claims, err := auth.ValidateBridgeToken(h.secret, message.JWT)
	if err != nil {
		log.Warn().Str("component", "ws").Str("client", client).Err(err).Msg("invalid token during init")
		conn.WriteJSON(domain.ErrorMessage{Type: "error", Message: "Invalid token"})
		conn.Close()
		return
	}

	connID := uid.GenerateConnectionID()
	h.ConnManager.AddConnection(connID, conn, claims.Renderer)
	log.Info().Str("component", "ws").Str("conn", connID).Str("renderer", claims.Renderer).
		Str("client", client).Msg("renderer connected")

	// 2. Catch the renderer up
	h.ConnManager.SendMessage(connID, stateMessage(h.GameService.Snapshot()))
	if h.Health != nil {
		h.ConnManager.SendMessage(connID, healthMessage(h.Health.Connected()))
	}

	stopPing := make(chan struct{})
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := h.ConnManager.Ping(connID); err != nil {
					return
				}
			case <-stopPing:
				return
			}
		}
	}()

	defer func() {
		close(stopPing)
		h.ConnManager.RemoveConnection(connID)
		log.Info().Str("component", "ws").Str("conn", connID).Msg("renderer disconnected")
	}()

	// 3. Main message loop
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Str("component", "ws").Str("conn", connID).Err(err).Msg("renderer dropped")
			}
			return
		}

		var msg domain.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.ConnManager.SendMessage(connID, errorMessage("invalid message format"))
			continue
		}

		h.processMessage(connID, msg)
	}
}

// processMessage routes renderer commands. Commands that reach the solver run
// in their own goroutine so the read loop keeps answering pings.
func (h *Handler) processMessage(connID string, msg domain.ClientMessage) {
	switch msg.Type {
	case "make_move":
		column := msg.Column
		go func() {
			if err := h.GameService.SubmitHumanMove(context.Background(), column); err != nil {
				h.ConnManager.SendMessage(connID, errorMessage(err.Error()))
			}
		}()

	case "start":
		player := msg.Player
		go func() {
			if err := h.GameService.Start(context.Background(), player); err != nil {
				h.ConnManager.SendMessage(connID, errorMessage(err.Error()))
			}
		}()

	case "select_solver":
		if msg.Solver == nil {
			h.ConnManager.SendMessage(connID, errorMessage("solver is required"))
			return
		}
		if err := h.GameService.SelectSolver(*msg.Solver); err != nil {
			h.ConnManager.SendMessage(connID, errorMessage(err.Error()))
		}

	case "reset":
		h.GameService.Reset()

	case "get_state":
		h.ConnManager.SendMessage(connID, stateMessage(h.GameService.Snapshot()))

	default:
		h.ConnManager.SendMessage(connID, errorMessage("unknown message type "+msg.Type))
	}
}

func stateMessage(snap domain.Snapshot) domain.ServerMessage {
	return domain.ServerMessage{Type: "state", State: &snap}
}

func healthMessage(connected bool) domain.ServerMessage {
	return domain.ServerMessage{Type: "health", Connected: &connected}
}

func errorMessage(text string) domain.ServerMessage {
	return domain.ServerMessage{Type: "error", Message: text}
}

func originChecker(allowedOrigins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, allowed := range allowedOrigins {
			if allowed == "*" || allowed == origin {
				return true
			}
		}
		log.Warn().Str("component", "ws").Str("origin", origin).Msg("origin not in allowed list")
		return false
	}
}
