package server

import "github.com/google/uuid"

// Session is the explicit per-connection record owned by the gateway.
// Identity lives here, never stapled onto the transport object.
type Session struct {
	SocketID string
	UserID   string
	Username string
}

// NewSession mints a session with fresh identifiers.
func NewSession() *Session {
	return &Session{
		SocketID: uuid.NewString(),
		UserID:   uuid.NewString(),
	}
}
