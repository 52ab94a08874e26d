package rooms

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoopcast/hoopcast/internal/game"
	"github.com/hoopcast/hoopcast/internal/protocol"
)

type fakeSub struct {
	id     string
	user   string
	mu     sync.Mutex
	msgs   []*protocol.Message
	fail   bool
	closed bool
}

func newFakeSub(id string) *fakeSub {
	return &fakeSub{id: id, user: "user-" + id}
}

func (f *fakeSub) ID() string     { return f.id }
func (f *fakeSub) UserID() string { return f.user }

func (f *fakeSub) Send(msg *protocol.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("send buffer full")
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeSub) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSub) received(messageType protocol.MessageType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, msg := range f.msgs {
		if msg.Type == messageType {
			count++
		}
	}
	return count
}

func newTestBroadcaster(t *testing.T, gameIDs ...string) (*Broadcaster, *game.MemoryStore) {
	t.Helper()

	store := game.NewMemoryStore()
	for _, id := range gameIDs {
		require.NoError(t, store.Create(&game.Game{
			ID:      id,
			Date:    time.Date(2025, 11, 1, 19, 0, 0, 0, time.UTC),
			Status:  game.StatusLive,
			Quarter: 1,
			Clock:   "12:00",
		}))
	}

	logger := log.New(io.Discard)
	return NewBroadcaster(store, logger, quartz.NewReal()), store
}

func TestJoinReturnsSnapshot(t *testing.T) {
	b, _ := newTestBroadcaster(t, "g1")
	sub := newFakeSub("s1")

	snapshot, err := b.Join(sub, "g1")
	require.NoError(t, err)
	assert.Equal(t, "g1", snapshot.ID)
	assert.Equal(t, 1, b.RoomSize("g1"))
}

func TestJoinUnknownGame(t *testing.T) {
	b, _ := newTestBroadcaster(t)
	sub := newFakeSub("s1")

	_, err := b.Join(sub, "missing")
	assert.ErrorIs(t, err, game.ErrGameNotFound)
	assert.Equal(t, 0, b.RoomSize("missing"))
}

func TestJoinEvictsPreviousRoom(t *testing.T) {
	b, _ := newTestBroadcaster(t, "g1", "g2")
	sub := newFakeSub("s1")

	_, err := b.Join(sub, "g1")
	require.NoError(t, err)
	_, err = b.Join(sub, "g2")
	require.NoError(t, err)

	assert.Equal(t, 0, b.RoomSize("g1"))
	assert.Equal(t, 1, b.RoomSize("g2"))

	room, ok := b.Room(sub)
	require.True(t, ok)
	assert.Equal(t, "g2", room)
}

func TestLeaveIsIdempotent(t *testing.T) {
	b, _ := newTestBroadcaster(t, "g1")
	sub := newFakeSub("s1")

	_, err := b.Join(sub, "g1")
	require.NoError(t, err)

	b.Leave(sub, "g1")
	b.Leave(sub, "g1")

	assert.Equal(t, 0, b.RoomSize("g1"))
	assert.False(t, b.HasSubscribers("g1"))
}

func TestLeaveWrongRoomIsNoOp(t *testing.T) {
	b, _ := newTestBroadcaster(t, "g1", "g2")
	sub := newFakeSub("s1")

	_, err := b.Join(sub, "g1")
	require.NoError(t, err)

	b.Leave(sub, "g2")
	assert.Equal(t, 1, b.RoomSize("g1"))
}

func TestPublishReachesOnlyRoomMembers(t *testing.T) {
	b, _ := newTestBroadcaster(t, "g1", "g2")
	inRoom := newFakeSub("s1")
	otherRoom := newFakeSub("s2")

	_, err := b.Join(inRoom, "g1")
	require.NoError(t, err)
	_, err = b.Join(otherRoom, "g2")
	require.NoError(t, err)

	msg, err := protocol.NewMessage(protocol.TypeGameUpdate, protocol.GameUpdateData{Type: "game-update"}, time.Now())
	require.NoError(t, err)
	b.Publish("g1", msg)

	assert.Equal(t, 1, inRoom.received(protocol.TypeGameUpdate))
	assert.Equal(t, 0, otherRoom.received(protocol.TypeGameUpdate))
}

func TestPublishExceptSkipsSender(t *testing.T) {
	b, _ := newTestBroadcaster(t, "g1")
	sender := newFakeSub("s1")
	peer := newFakeSub("s2")

	_, err := b.Join(sender, "g1")
	require.NoError(t, err)
	_, err = b.Join(peer, "g1")
	require.NoError(t, err)

	msg, err := protocol.NewMessage(protocol.TypeNewMessage, protocol.NewMessageData{Message: "hi"}, time.Now())
	require.NoError(t, err)
	b.PublishExcept("g1", msg, sender.ID())

	assert.Equal(t, 0, sender.received(protocol.TypeNewMessage))
	assert.Equal(t, 1, peer.received(protocol.TypeNewMessage))
}

func TestPublishDropsFailingSubscriberOnly(t *testing.T) {
	b, _ := newTestBroadcaster(t, "g1")
	broken := newFakeSub("s1")
	broken.fail = true
	healthy := newFakeSub("s2")

	_, err := b.Join(broken, "g1")
	require.NoError(t, err)
	_, err = b.Join(healthy, "g1")
	require.NoError(t, err)

	msg, err := protocol.NewMessage(protocol.TypeGameUpdate, protocol.GameUpdateData{Type: "game-update"}, time.Now())
	require.NoError(t, err)
	b.Publish("g1", msg)

	assert.Equal(t, 1, healthy.received(protocol.TypeGameUpdate))
	assert.True(t, broken.closed)
	assert.Equal(t, 1, b.RoomSize("g1"))
}

func TestDisconnectReleasesMembership(t *testing.T) {
	b, _ := newTestBroadcaster(t, "g1")
	sub := newFakeSub("s1")
	peer := newFakeSub("s2")

	_, err := b.Join(sub, "g1")
	require.NoError(t, err)
	_, err = b.Join(peer, "g1")
	require.NoError(t, err)

	b.Disconnect(sub)

	assert.Equal(t, 1, b.RoomSize("g1"))
	_, ok := b.Room(sub)
	assert.False(t, ok)
	assert.Equal(t, 1, peer.received(protocol.TypeUserLeft))
}

func TestPeerNotificationsOnJoinAndLeave(t *testing.T) {
	b, _ := newTestBroadcaster(t, "g1")
	first := newFakeSub("s1")
	second := newFakeSub("s2")

	_, err := b.Join(first, "g1")
	require.NoError(t, err)
	_, err = b.Join(second, "g1")
	require.NoError(t, err)

	assert.Equal(t, 1, first.received(protocol.TypeUserJoined))

	b.Leave(second, "g1")
	assert.Equal(t, 1, first.received(protocol.TypeUserLeft))
}

func TestMembershipMatchesJoinLeaveHistory(t *testing.T) {
	b, _ := newTestBroadcaster(t, "g1")

	subs := make([]*fakeSub, 20)
	var wg sync.WaitGroup
	for i := range subs {
		subs[i] = newFakeSub(fmt.Sprintf("s%d", i))
		wg.Add(1)
		go func(s *fakeSub, leave bool) {
			defer wg.Done()
			_, err := b.Join(s, "g1")
			assert.NoError(t, err)
			if leave {
				b.Leave(s, "g1")
			}
		}(subs[i], i%2 == 1)
	}
	wg.Wait()

	// Every even-indexed subscriber stayed, every odd-indexed one left.
	assert.Equal(t, 10, b.RoomSize("g1"))
	for i, s := range subs {
		_, member := b.Room(s)
		assert.Equal(t, i%2 == 0, member, "subscriber %d", i)
	}
}

func TestStoreDeleteGuardSeesRoomOccupancy(t *testing.T) {
	b, store := newTestBroadcaster(t, "g1")
	store.SetInUseCheck(b.HasSubscribers)

	sub := newFakeSub("s1")
	_, err := b.Join(sub, "g1")
	require.NoError(t, err)

	assert.ErrorIs(t, store.Delete("g1"), game.ErrRoomOccupied)

	b.Leave(sub, "g1")
	assert.NoError(t, store.Delete("g1"))
}
