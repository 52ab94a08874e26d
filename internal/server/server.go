package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"github.com/hoopcast/hoopcast/internal/game"
	"github.com/hoopcast/hoopcast/internal/metrics"
	"github.com/hoopcast/hoopcast/internal/rooms"
	"github.com/hoopcast/hoopcast/internal/sim"
	"github.com/hoopcast/hoopcast/internal/stats"
)

// Deps bundles the collaborators every connection needs. Everything is
// constructed once in main and injected; nothing is reached through
// globals.
type Deps struct {
	Store  game.Store
	Rooms  *rooms.Broadcaster
	Engine *sim.Engine
	Stats  *stats.Cache
	Clock  quartz.Clock
}

// Server is the WebSocket/HTTP front of the dashboard.
type Server struct {
	addr        string
	upgrader    websocket.Upgrader
	connections map[*Connection]bool
	register    chan *Connection
	unregister  chan *Connection
	logger      *log.Logger
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	deps        *Deps
	httpServer  *http.Server
}

// NewServer creates a server listening on addr.
func NewServer(addr string, logger *log.Logger, deps *Deps) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr: addr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// For development, allow all origins
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		connections: make(map[*Connection]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		logger:      logger.WithPrefix("server"),
		ctx:         ctx,
		cancel:      cancel,
		deps:        deps,
	}
}

// Start runs the connection loop and serves HTTP until the listener fails
// or Stop is called.
func (s *Server) Start() error {
	go s.run()

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	}).Handler(s.routes())

	s.httpServer = &http.Server{Addr: s.addr, Handler: handler}
	s.logger.Info("Starting server", "addr", s.addr)
	return s.httpServer.ListenAndServe()
}

// Stop shuts the server down and closes every connection.
func (s *Server) Stop() error {
	s.cancel()

	s.mu.Lock()
	for conn := range s.connections {
		_ = conn.Close() // Ignore close errors during shutdown
	}
	s.mu.Unlock()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(context.Background())
	}
	return nil
}

// run handles connection lifecycle.
func (s *Server) run() {
	for {
		select {
		case conn := <-s.register:
			s.mu.Lock()
			s.connections[conn] = true
			total := len(s.connections)
			s.mu.Unlock()
			metrics.ConnectedClients.Inc()
			s.logger.Info("Client connected", "socket", conn.ID(), "total", total)

		case conn := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.connections[conn]; ok {
				delete(s.connections, conn)
				metrics.ConnectedClients.Dec()

				// Release room membership promptly and tell the peers.
				s.deps.Rooms.Disconnect(conn)
				_ = conn.Close() // Ignore close errors during unregistration
			}
			total := len(s.connections)
			s.mu.Unlock()
			s.logger.Info("Client disconnected", "socket", conn.ID(), "total", total)

		case <-s.ctx.Done():
			return
		}
	}
}

// handleWebSocket handles WebSocket upgrade requests.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := NewConnection(conn, s.logger, s.deps)
	s.register <- client
	client.Start()

	go func() {
		<-client.Done()
		select {
		case s.unregister <- client:
		case <-s.ctx.Done():
		}
	}()
}
