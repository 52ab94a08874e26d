package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hoopcast/hoopcast/internal/game"
	"github.com/hoopcast/hoopcast/internal/stats"
)

const defaultRecentGames = 20

// routes builds the HTTP surface: the WebSocket upgrade, health, metrics,
// and the read-only REST API that fronts the store and the stats cache.
func (s *Server) routes() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWebSocket)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/games", s.handleListGames).Methods(http.MethodGet)
	api.HandleFunc("/games/{id}", s.handleGetGame).Methods(http.MethodGet)
	api.HandleFunc("/players", s.handleRoster).Methods(http.MethodGet)
	api.HandleFunc("/players/{id}/games", s.handlePlayerGames).Methods(http.MethodGet)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK") // Ignore write errors for health check
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	games := s.deps.Store.ListRecent(defaultRecentGames)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"games": games})
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	g, err := s.deps.Store.Get(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleRoster(w http.ResponseWriter, r *http.Request) {
	roster, err := s.deps.Stats.Roster(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, roster)
}

func (s *Server) handlePlayerGames(w http.ResponseWriter, r *http.Request) {
	playerID := mux.Vars(r)["id"]

	start, err := time.Parse(stats.DayFormat, r.URL.Query().Get("start"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "start must be YYYY-MM-DD"})
		return
	}
	end, err := time.Parse(stats.DayFormat, r.URL.Query().Get("end"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "end must be YYYY-MM-DD"})
		return
	}

	records, err := s.deps.Stats.GetPlayerGames(r.Context(), playerID, start, end)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"playerId": playerID, "records": records})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}

// writeError maps internal errors onto HTTP statuses with human-readable
// messages only.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrGameNotFound):
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "game not found"})
	case errors.Is(err, stats.ErrNoData):
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no stats available for that range"})
	case errors.Is(err, stats.ErrUpstreamUnavailable):
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "stats temporarily unavailable"})
	default:
		s.logger.Error("Request failed", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
