package protocol

import (
	"encoding/json"
	"time"
)

// MessageType identifies the type of message on the wire.
type MessageType string

const (
	// Client -> Server
	TypeJoinGame    MessageType = "join-game"
	TypeLeaveGame   MessageType = "leave-game"
	TypeGameAction  MessageType = "game-action"
	TypeSendMessage MessageType = "send-message"

	// Server -> Client
	TypeWelcome       MessageType = "welcome"
	TypeGameJoined    MessageType = "game-joined"
	TypeUserJoined    MessageType = "user-joined"
	TypeGameUpdate    MessageType = "game-update"
	TypeGameHighlight MessageType = "game-highlight"
	TypeNewMessage    MessageType = "new-message"
	TypeUserLeft      MessageType = "user-left"
	TypeStatsResult   MessageType = "stats-result"
	TypeError         MessageType = "error"
)

func (t MessageType) String() string { return string(t) }

// Action types accepted inside a game-action request.
const (
	ActionSimulateEvent = "simulate-event"
	ActionRequestStats  = "request-stats"
)

// Message is the envelope for every frame in both directions.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage wraps data in an envelope stamped with ts.
func NewMessage(messageType MessageType, data interface{}, ts time.Time) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: ts,
	}, nil
}

// Client -> Server payloads

type JoinGameData struct {
	GameID string `json:"gameId"`
}

type LeaveGameData struct {
	GameID string `json:"gameId"`
}

type GameActionData struct {
	GameID     string          `json:"gameId"`
	ActionType string          `json:"actionType"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

type SendMessageData struct {
	GameID   string `json:"gameId"`
	Message  string `json:"message"`
	Username string `json:"username"`
}

// Server -> Client payloads

type WelcomeData struct {
	SocketID   string    `json:"socketId"`
	UserID     string    `json:"userId"`
	ServerTime time.Time `json:"serverTime"`
}

type GameJoinedData struct {
	GameID string      `json:"gameId"`
	Game   interface{} `json:"game"`
}

type UserJoinedData struct {
	UserID string `json:"userId"`
}

type UserLeftData struct {
	UserID string `json:"userId"`
}

type GameUpdateData struct {
	Type      string      `json:"type"`
	Game      interface{} `json:"game"`
	Event     string      `json:"event,omitempty"`
	Highlight interface{} `json:"highlight,omitempty"`
}

type GameHighlightData struct {
	Type      string      `json:"type"`
	Highlight interface{} `json:"highlight"`
}

type NewMessageData struct {
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"userId"`
}

type StatsResultData struct {
	PlayerID string      `json:"playerId"`
	Records  interface{} `json:"records"`
}

type ErrorData struct {
	Message string `json:"message"`
}
