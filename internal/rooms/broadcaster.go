// Package rooms implements the per-game subscription rooms and the fan-out
// of published messages to their members.
package rooms

import (
	"sync"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/hoopcast/hoopcast/internal/game"
	"github.com/hoopcast/hoopcast/internal/metrics"
	"github.com/hoopcast/hoopcast/internal/protocol"
)

// Subscriber is a room member. Send must never block: implementations queue
// into a bounded buffer and return an error when the buffer is full or the
// connection is gone, at which point the broadcaster drops them.
type Subscriber interface {
	ID() string
	UserID() string
	Send(msg *protocol.Message) error
	Close() error
}

// Broadcaster maintains the game-id -> subscriber-set mapping and delivers
// published messages to exactly that set. A subscriber belongs to at most
// one room; joining a new room evicts the previous membership.
type Broadcaster struct {
	store  game.Store
	logger *log.Logger
	clock  quartz.Clock

	mu         sync.RWMutex
	rooms      map[string]map[string]Subscriber // gameID -> subID -> sub
	membership map[string]string                // subID -> gameID
}

// NewBroadcaster creates an empty broadcaster backed by the given store.
func NewBroadcaster(store game.Store, logger *log.Logger, clock quartz.Clock) *Broadcaster {
	return &Broadcaster{
		store:      store,
		logger:     logger.WithPrefix("rooms"),
		clock:      clock,
		rooms:      make(map[string]map[string]Subscriber),
		membership: make(map[string]string),
	}
}

// Join adds sub to gameID's room, evicting any previous membership, and
// returns the current game snapshot for the caller to render immediately.
// Peers are notified best-effort that a viewer joined.
//
// The membership update and the snapshot read are two separate steps: a
// publish landing between them may be missed by the new member. That gap is
// deliberate; deliveries are at-most-once with no replay.
func (b *Broadcaster) Join(sub Subscriber, gameID string) (*game.Game, error) {
	snapshot, err := b.store.Get(gameID)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	if prev, ok := b.membership[sub.ID()]; ok && prev != gameID {
		b.removeLocked(sub, prev, true)
	}

	room, ok := b.rooms[gameID]
	if !ok {
		room = make(map[string]Subscriber)
		b.rooms[gameID] = room
	}
	room[sub.ID()] = sub
	b.membership[sub.ID()] = gameID
	peers := b.peersLocked(gameID, sub.ID())
	b.mu.Unlock()

	metrics.RoomMembers.WithLabelValues(gameID).Inc()
	b.logger.Debug("Subscriber joined room", "game", gameID, "sub", sub.ID())

	b.notify(peers, protocol.TypeUserJoined, protocol.UserJoinedData{UserID: sub.UserID()})
	return snapshot, nil
}

// Leave removes sub from gameID's room. It is idempotent: leaving a room
// the subscriber is not a member of is a no-op.
func (b *Broadcaster) Leave(sub Subscriber, gameID string) {
	b.mu.Lock()
	if b.membership[sub.ID()] != gameID {
		b.mu.Unlock()
		return
	}
	b.removeLocked(sub, gameID, false)
	peers := b.peersLocked(gameID, "")
	b.mu.Unlock()

	b.logger.Debug("Subscriber left room", "game", gameID, "sub", sub.ID())
	b.notify(peers, protocol.TypeUserLeft, protocol.UserLeftData{UserID: sub.UserID()})
}

// Disconnect removes sub from whatever room it belongs to, mirroring Leave.
func (b *Broadcaster) Disconnect(sub Subscriber) {
	b.mu.Lock()
	gameID, ok := b.membership[sub.ID()]
	if !ok {
		b.mu.Unlock()
		return
	}
	b.removeLocked(sub, gameID, false)
	peers := b.peersLocked(gameID, "")
	b.mu.Unlock()

	b.logger.Debug("Subscriber disconnected from room", "game", gameID, "sub", sub.ID())
	b.notify(peers, protocol.TypeUserLeft, protocol.UserLeftData{UserID: sub.UserID()})
}

// Publish delivers msg to every current member of gameID's room. Delivery
// is independent per subscriber: one failed or stalled recipient is dropped
// and closed without affecting the rest.
func (b *Broadcaster) Publish(gameID string, msg *protocol.Message) {
	b.PublishExcept(gameID, msg, "")
}

// PublishExcept is Publish minus one subscriber, used for chat re-broadcast
// excluding the sender.
func (b *Broadcaster) PublishExcept(gameID string, msg *protocol.Message, exceptID string) {
	b.mu.RLock()
	members := b.peersLocked(gameID, exceptID)
	b.mu.RUnlock()

	delivered := 0
	for _, member := range members {
		if err := member.Send(msg); err != nil {
			b.drop(member, err)
			continue
		}
		delivered++
	}

	metrics.BroadcastsTotal.WithLabelValues(msg.Type.String()).Add(float64(delivered))
	b.logger.Debug("Published to room", "game", gameID, "type", msg.Type, "recipients", delivered)
}

// HasSubscribers reports whether gameID's room currently has members. The
// store consults this before deleting a game.
func (b *Broadcaster) HasSubscribers(gameID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms[gameID]) > 0
}

// RoomSize returns the current member count of gameID's room.
func (b *Broadcaster) RoomSize(gameID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms[gameID])
}

// Room returns the game ID sub is currently subscribed to, if any.
func (b *Broadcaster) Room(sub Subscriber) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	gameID, ok := b.membership[sub.ID()]
	return gameID, ok
}

// removeLocked deletes sub from gameID's room and prunes the room when it
// empties. Caller holds b.mu. When notifyPeers is set the user-left event
// is sent to the remaining members before the lock is released; this is
// only used for evictions inside Join, where the caller cannot notify
// afterwards without racing the new membership.
func (b *Broadcaster) removeLocked(sub Subscriber, gameID string, notifyPeers bool) {
	room, ok := b.rooms[gameID]
	if !ok {
		return
	}
	if _, ok := room[sub.ID()]; !ok {
		return
	}

	delete(room, sub.ID())
	delete(b.membership, sub.ID())
	metrics.RoomMembers.WithLabelValues(gameID).Dec()
	if len(room) == 0 {
		delete(b.rooms, gameID)
	}

	if notifyPeers {
		peers := b.peersLocked(gameID, "")
		go b.notify(peers, protocol.TypeUserLeft, protocol.UserLeftData{UserID: sub.UserID()})
	}
}

// peersLocked returns the members of gameID's room except exceptID. Caller
// holds b.mu (read or write).
func (b *Broadcaster) peersLocked(gameID, exceptID string) []Subscriber {
	room := b.rooms[gameID]
	peers := make([]Subscriber, 0, len(room))
	for id, member := range room {
		if id == exceptID {
			continue
		}
		peers = append(peers, member)
	}
	return peers
}

// notify delivers a best-effort event to peers. Failures drop the peer the
// same way Publish does.
func (b *Broadcaster) notify(peers []Subscriber, messageType protocol.MessageType, data interface{}) {
	if len(peers) == 0 {
		return
	}

	msg, err := protocol.NewMessage(messageType, data, b.clock.Now())
	if err != nil {
		b.logger.Error("Failed to build room notification", "type", messageType, "error", err)
		return
	}

	for _, peer := range peers {
		if err := peer.Send(msg); err != nil {
			b.drop(peer, err)
		}
	}
}

// drop removes a subscriber whose delivery failed and closes it. A stuck
// recipient is never awaited.
func (b *Broadcaster) drop(sub Subscriber, cause error) {
	b.logger.Warn("Dropping subscriber after failed delivery", "sub", sub.ID(), "error", cause)
	metrics.DroppedSubscribersTotal.Inc()

	b.mu.Lock()
	if gameID, ok := b.membership[sub.ID()]; ok {
		b.removeLocked(sub, gameID, false)
	}
	b.mu.Unlock()

	_ = sub.Close() // Ignore close errors for already-broken connections
}
