package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/hoopcast/hoopcast/internal/game"
	"github.com/hoopcast/hoopcast/internal/protocol"
	"github.com/hoopcast/hoopcast/internal/sim"
	"github.com/hoopcast/hoopcast/internal/stats"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

var ErrConnectionClosed = websocket.ErrCloseSent

// Connection wraps one WebSocket client. It owns the session record and
// implements rooms.Subscriber, so the broadcaster only ever sees session
// identity, never the transport object.
type Connection struct {
	conn      *websocket.Conn
	send      chan *protocol.Message
	session   *Session
	deps      *Deps
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	closeOnce sync.Once
}

// NewConnection creates a connection wrapper with a fresh session.
func NewConnection(conn *websocket.Conn, logger *log.Logger, deps *Deps) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	session := NewSession()

	return &Connection{
		conn:    conn,
		send:    make(chan *protocol.Message, 256),
		session: session,
		deps:    deps,
		logger:  logger.WithPrefix("conn").With("socket", session.SocketID),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins handling the connection and greets the client.
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()

	welcome, err := protocol.NewMessage(protocol.TypeWelcome, protocol.WelcomeData{
		SocketID:   c.session.SocketID,
		UserID:     c.session.UserID,
		ServerTime: c.deps.Clock.Now(),
	}, c.deps.Clock.Now())
	if err != nil {
		c.logger.Error("Failed to build welcome message", "error", err)
		return
	}
	_ = c.Send(welcome) // Ignore send errors on a connection this young
}

// Close closes the connection exactly once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.send)
		err = c.conn.Close()
	})
	return err
}

// Done exposes the connection lifetime for the server's cleanup goroutine.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// ID implements rooms.Subscriber.
func (c *Connection) ID() string { return c.session.SocketID }

// UserID implements rooms.Subscriber.
func (c *Connection) UserID() string { return c.session.UserID }

// Send queues a message without blocking. A full buffer means the peer has
// stalled; the connection is closed rather than awaited.
func (c *Connection) Send(msg *protocol.Message) error {
	defer func() {
		if r := recover(); r != nil {
			// Channel was closed during shutdown; nothing to deliver to.
			c.logger.Debug("Attempted to send on closed connection", "error", r)
		}
	}()

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		c.logger.Warn("Connection send buffer full, closing connection")
		_ = c.Close() // Ignore close errors
		return ErrConnectionClosed
	}
}

// Username returns the last username the client identified with.
func (c *Connection) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.Username
}

func (c *Connection) setUsername(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.Username = name
}

// readPump handles incoming messages from the client.
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }() // Ignore close errors during cleanup

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg protocol.Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			break
		}

		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client.
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() // Ignore close errors during cleanup
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// handleMessage dispatches one inbound frame. Malformed payloads produce a
// scoped error event for this connection only.
func (c *Connection) handleMessage(msg *protocol.Message) {
	c.logger.Debug("Received message", "type", msg.Type)

	switch msg.Type {
	case protocol.TypeJoinGame:
		var data protocol.JoinGameData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("Failed to parse join-game request")
			return
		}
		c.handleJoinGame(data)

	case protocol.TypeLeaveGame:
		var data protocol.LeaveGameData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("Failed to parse leave-game request")
			return
		}
		c.deps.Rooms.Leave(c, data.GameID)

	case protocol.TypeGameAction:
		var data protocol.GameActionData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("Failed to parse game-action request")
			return
		}
		c.handleGameAction(data)

	case protocol.TypeSendMessage:
		var data protocol.SendMessageData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("Failed to parse send-message request")
			return
		}
		c.handleSendMessage(data)

	default:
		c.sendError("Unknown message type: " + msg.Type.String())
	}
}

func (c *Connection) handleJoinGame(data protocol.JoinGameData) {
	snapshot, err := c.deps.Rooms.Join(c, data.GameID)
	if err != nil {
		c.sendError(userMessage(err))
		return
	}

	response, err := protocol.NewMessage(protocol.TypeGameJoined, protocol.GameJoinedData{
		GameID: data.GameID,
		Game:   snapshot,
	}, c.deps.Clock.Now())
	if err != nil {
		c.logger.Error("Failed to build game-joined message", "error", err)
		return
	}
	_ = c.Send(response) // Ignore send errors
}

func (c *Connection) handleGameAction(data protocol.GameActionData) {
	switch data.ActionType {
	case protocol.ActionSimulateEvent:
		// The engine publishes the result to the room itself; nothing more
		// to send from here on success.
		if _, err := c.deps.Engine.SimulateEvent(c.ctx, data.GameID); err != nil {
			c.logger.Warn("Simulate request failed", "game", data.GameID, "error", err)
			c.sendError(userMessage(err))
		}

	case protocol.ActionRequestStats:
		c.handleRequestStats(data)

	default:
		c.sendError("Unknown game action: " + data.ActionType)
	}
}

func (c *Connection) handleRequestStats(data protocol.GameActionData) {
	var req struct {
		PlayerID string `json:"playerId"`
		Start    string `json:"start"`
		End      string `json:"end"`
	}
	if err := json.Unmarshal(data.Payload, &req); err != nil {
		c.sendError("Failed to parse stats request")
		return
	}

	start, err := time.Parse(stats.DayFormat, req.Start)
	if err != nil {
		c.sendError("Invalid start date, expected YYYY-MM-DD")
		return
	}
	end, err := time.Parse(stats.DayFormat, req.End)
	if err != nil {
		c.sendError("Invalid end date, expected YYYY-MM-DD")
		return
	}

	records, err := c.deps.Stats.GetPlayerGames(c.ctx, req.PlayerID, start, end)
	if err != nil {
		c.sendError(userMessage(err))
		return
	}

	response, err := protocol.NewMessage(protocol.TypeStatsResult, protocol.StatsResultData{
		PlayerID: req.PlayerID,
		Records:  records,
	}, c.deps.Clock.Now())
	if err != nil {
		c.logger.Error("Failed to build stats-result message", "error", err)
		return
	}
	_ = c.Send(response) // Ignore send errors
}

func (c *Connection) handleSendMessage(data protocol.SendMessageData) {
	if data.Message == "" {
		c.sendError("Message text is required")
		return
	}
	if data.Username != "" {
		c.setUsername(data.Username)
	}

	room, ok := c.deps.Rooms.Room(c)
	if !ok || room != data.GameID {
		c.sendError("Join the game before chatting")
		return
	}

	// Server-assigned timestamp; the sender is excluded from the fan-out.
	chat, err := protocol.NewMessage(protocol.TypeNewMessage, protocol.NewMessageData{
		Username:  data.Username,
		Message:   data.Message,
		Timestamp: c.deps.Clock.Now(),
		UserID:    c.session.UserID,
	}, c.deps.Clock.Now())
	if err != nil {
		c.logger.Error("Failed to build chat message", "error", err)
		return
	}
	c.deps.Rooms.PublishExcept(data.GameID, chat, c.ID())
}

// sendError sends a scoped error event to this connection only.
func (c *Connection) sendError(message string) {
	errorMsg, err := protocol.NewMessage(protocol.TypeError, protocol.ErrorData{
		Message: message,
	}, c.deps.Clock.Now())
	if err != nil {
		c.logger.Error("Failed to create error message", "error", err)
		return
	}

	_ = c.Send(errorMsg) // Ignore send errors during error handling
}

// userMessage maps internal errors onto human-readable text. Internal
// identifiers and wrapping detail never reach the client.
func userMessage(err error) string {
	switch {
	case errors.Is(err, game.ErrGameNotFound):
		return "Game not found"
	case errors.Is(err, game.ErrInvalidState):
		return "That game is no longer live"
	case errors.Is(err, sim.ErrNoPlayersAvailable):
		return "No players available to simulate"
	case errors.Is(err, stats.ErrNoData):
		return "No stats available for that range"
	case errors.Is(err, stats.ErrUpstreamUnavailable):
		return "Stats are temporarily unavailable"
	default:
		return "Something went wrong handling your request"
	}
}
