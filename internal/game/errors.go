package game

import "errors"

var (
	// ErrGameNotFound is returned when the referenced game does not exist.
	ErrGameNotFound = errors.New("game not found")

	// ErrInvalidState is returned when an update would move a game's status
	// backwards or otherwise violate the forward-only lifecycle.
	ErrInvalidState = errors.New("operation not valid for current game state")

	// ErrRoomOccupied is returned when deleting a game that still has
	// subscribers; the room must be evicted first.
	ErrRoomOccupied = errors.New("game still has subscribers")

	// ErrGameExists is returned when creating a game whose ID is taken.
	ErrGameExists = errors.New("game already exists")
)
