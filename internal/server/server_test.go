package server

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoopcast/hoopcast/internal/game"
	"github.com/hoopcast/hoopcast/internal/protocol"
)

func TestWelcomeOnConnect(t *testing.T) {
	stack := newTestStack(t)
	_, welcome := stack.dial(t)

	assert.NotEmpty(t, welcome.SocketID)
	assert.NotEmpty(t, welcome.UserID)
	assert.False(t, welcome.ServerTime.IsZero())
}

func TestJoinGameReturnsSnapshot(t *testing.T) {
	stack := newTestStack(t)
	conn, _ := stack.dial(t)

	send(t, conn, protocol.TypeJoinGame, protocol.JoinGameData{GameID: "g1"})
	msg := readType(t, conn, protocol.TypeGameJoined)

	var joined struct {
		GameID string     `json:"gameId"`
		Game   *game.Game `json:"game"`
	}
	require.NoError(t, json.Unmarshal(msg.Data, &joined))
	assert.Equal(t, "g1", joined.GameID)
	require.NotNil(t, joined.Game)
	assert.Equal(t, "Celtics", joined.Game.HomeTeam)
}

func TestJoinUnknownGameScopedError(t *testing.T) {
	stack := newTestStack(t)
	offender, _ := stack.dial(t)
	bystander, _ := stack.dial(t)
	send(t, bystander, protocol.TypeJoinGame, protocol.JoinGameData{GameID: "g1"})
	readType(t, bystander, protocol.TypeGameJoined)

	send(t, offender, protocol.TypeJoinGame, protocol.JoinGameData{GameID: "missing"})
	msg := readType(t, offender, protocol.TypeError)

	var errData protocol.ErrorData
	require.NoError(t, json.Unmarshal(msg.Data, &errData))
	assert.Equal(t, "Game not found", errData.Message)

	// The error never reaches other connections.
	expectSilence(t, bystander, protocol.TypeError, 150*time.Millisecond)
}

func TestMalformedPayloadScopedError(t *testing.T) {
	stack := newTestStack(t)
	conn, _ := stack.dial(t)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type": "join-game",
		"data": "not-an-object",
	}))

	msg := readType(t, conn, protocol.TypeError)
	var errData protocol.ErrorData
	require.NoError(t, json.Unmarshal(msg.Data, &errData))
	assert.Contains(t, errData.Message, "join-game")
}

func TestUnknownMessageTypeScopedError(t *testing.T) {
	stack := newTestStack(t)
	conn, _ := stack.dial(t)

	send(t, conn, protocol.MessageType("warp-speed"), map[string]string{})
	msg := readType(t, conn, protocol.TypeError)

	var errData protocol.ErrorData
	require.NoError(t, json.Unmarshal(msg.Data, &errData))
	assert.Contains(t, errData.Message, "warp-speed")
}

func TestSimulateEventBroadcastsToRoom(t *testing.T) {
	stack := newTestStack(t)
	viewer, _ := stack.dial(t)
	actor, _ := stack.dial(t)

	send(t, viewer, protocol.TypeJoinGame, protocol.JoinGameData{GameID: "g1"})
	readType(t, viewer, protocol.TypeGameJoined)
	send(t, actor, protocol.TypeJoinGame, protocol.JoinGameData{GameID: "g1"})
	readType(t, actor, protocol.TypeGameJoined)

	send(t, actor, protocol.TypeGameAction, protocol.GameActionData{
		GameID:     "g1",
		ActionType: protocol.ActionSimulateEvent,
	})

	// Both room members observe the update, including the requester.
	viewerMsg := readType(t, viewer, protocol.TypeGameUpdate)
	actorMsg := readType(t, actor, protocol.TypeGameUpdate)

	var update protocol.GameUpdateData
	require.NoError(t, json.Unmarshal(viewerMsg.Data, &update))
	assert.NotNil(t, update.Game)
	require.NoError(t, json.Unmarshal(actorMsg.Data, &update))

	// The store reflects exactly one appended highlight.
	g, err := stack.store.Get("g1")
	require.NoError(t, err)
	assert.Len(t, g.Highlights, 1)
}

func TestSimulateFinalGameFailsScoped(t *testing.T) {
	stack := newTestStack(t)
	require.NoError(t, stack.store.Create(&game.Game{
		ID:       "done",
		Date:     time.Now().UTC(),
		HomeTeam: "Bulls",
		AwayTeam: "Nets",
		Status:   game.StatusFinal,
		Quarter:  4,
		Clock:    "0:00",
	}))

	conn, _ := stack.dial(t)
	send(t, conn, protocol.TypeJoinGame, protocol.JoinGameData{GameID: "done"})
	readType(t, conn, protocol.TypeGameJoined)

	send(t, conn, protocol.TypeGameAction, protocol.GameActionData{
		GameID:     "done",
		ActionType: protocol.ActionSimulateEvent,
	})
	msg := readType(t, conn, protocol.TypeError)

	var errData protocol.ErrorData
	require.NoError(t, json.Unmarshal(msg.Data, &errData))
	assert.Equal(t, "That game is no longer live", errData.Message)
}

func TestChatExcludesSenderAndStampsTime(t *testing.T) {
	stack := newTestStack(t)
	sender, _ := stack.dial(t)
	peer, _ := stack.dial(t)

	send(t, sender, protocol.TypeJoinGame, protocol.JoinGameData{GameID: "g1"})
	readType(t, sender, protocol.TypeGameJoined)
	send(t, peer, protocol.TypeJoinGame, protocol.JoinGameData{GameID: "g1"})
	readType(t, peer, protocol.TypeGameJoined)

	before := time.Now().Add(-time.Second)
	send(t, sender, protocol.TypeSendMessage, protocol.SendMessageData{
		GameID:   "g1",
		Message:  "what a play!",
		Username: "courtside-fan",
	})

	msg := readType(t, peer, protocol.TypeNewMessage)
	var chat protocol.NewMessageData
	require.NoError(t, json.Unmarshal(msg.Data, &chat))
	assert.Equal(t, "courtside-fan", chat.Username)
	assert.Equal(t, "what a play!", chat.Message)
	assert.NotEmpty(t, chat.UserID)
	assert.True(t, chat.Timestamp.After(before), "timestamp must be server-assigned")

	expectSilence(t, sender, protocol.TypeNewMessage, 150*time.Millisecond)
}

func TestChatRequiresMembership(t *testing.T) {
	stack := newTestStack(t)
	conn, _ := stack.dial(t)

	send(t, conn, protocol.TypeSendMessage, protocol.SendMessageData{
		GameID:  "g1",
		Message: "hello?",
	})
	msg := readType(t, conn, protocol.TypeError)

	var errData protocol.ErrorData
	require.NoError(t, json.Unmarshal(msg.Data, &errData))
	assert.Contains(t, errData.Message, "Join the game")
}

func TestRequestStatsReturnsRecords(t *testing.T) {
	stack := newTestStack(t)
	conn, _ := stack.dial(t)

	payload, err := json.Marshal(map[string]string{
		"playerId": "p1",
		"start":    "2025-11-01",
		"end":      "2025-11-01",
	})
	require.NoError(t, err)

	send(t, conn, protocol.TypeGameAction, protocol.GameActionData{
		GameID:     "g1",
		ActionType: protocol.ActionRequestStats,
		Payload:    payload,
	})

	msg := readType(t, conn, protocol.TypeStatsResult)
	var result protocol.StatsResultData
	require.NoError(t, json.Unmarshal(msg.Data, &result))
	assert.Equal(t, "p1", result.PlayerID)
}

func TestDisconnectNotifiesPeers(t *testing.T) {
	stack := newTestStack(t)
	leaver, leaverWelcome := stack.dial(t)
	stayer, _ := stack.dial(t)

	send(t, leaver, protocol.TypeJoinGame, protocol.JoinGameData{GameID: "g1"})
	readType(t, leaver, protocol.TypeGameJoined)
	send(t, stayer, protocol.TypeJoinGame, protocol.JoinGameData{GameID: "g1"})
	readType(t, stayer, protocol.TypeGameJoined)

	require.NoError(t, leaver.Close())

	msg := readType(t, stayer, protocol.TypeUserLeft)
	var left protocol.UserLeftData
	require.NoError(t, json.Unmarshal(msg.Data, &left))
	assert.Equal(t, leaverWelcome.UserID, left.UserID)
}
