package server

import (
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/scythe504/turing-backend/internal"
	"github.com/scythe504/turing-backend/internal/game"
	"github.com/scythe504/turing-backend/internal/utils"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := mux.NewRouter()

	// Apply CORS middleware
	r.Use(s.corsMiddleware)

	r.HandleFunc("/health", s.HealthHandler).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/badges/{sessionId}", s.BadgesHandler).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/leaderboard", s.LeaderboardHandler).Methods(http.MethodGet, http.MethodOptions)

	if s.cfg.Debug {
		r.HandleFunc("/debug/waiting", s.WaitingHandler).Methods(http.MethodGet, http.MethodOptions)
	}

	r.HandleFunc("/ws", s.coord.HandleWebSocket(game.NewUpgrader(s.cfg.AllowedOrigins)))

	return r
}

// CORS middleware
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	wildcard := slices.Contains(s.cfg.AllowedOrigins, "*")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case wildcard:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case slices.Contains(s.cfg.AllowedOrigins, origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type")

		// The upgrader does its own origin check.
		if strings.ToLower(r.Header.Get("Upgrade")) == "websocket" {
			next.ServeHTTP(w, r)
			return
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).Seconds(),
	})
}

func (s *Server) BadgesHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]
	if err := utils.ValidateSessionID(sessionID); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	badges, err := s.records.GetBadges(r.Context(), sessionID)
	if err != nil {
		log.Error().Err(err).Str("session", sessionID).Msg("[BadgesHandler] could not load badges")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not load badges"})
		return
	}
	if badges == nil {
		badges = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"badges": badges})
}

func (s *Server) LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	users, err := s.records.ListTopScores(r.Context(), internal.LeaderboardSize)
	if err != nil {
		log.Error().Err(err).Msg("[LeaderboardHandler] could not load scores")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not load leaderboard"})
		return
	}

	entries := make([]internal.LeaderboardEntry, 0, len(users))
	for i, u := range users {
		entries = append(entries, internal.LeaderboardEntry{
			Rank:   i + 1,
			Player: utils.ShortID(u.SessionID),
			Score:  u.Score,
		})
	}
	writeJSON(w, http.StatusOK, entries)
}

type waitingData struct {
	Count    int      `json:"count"`
	Sessions []string `json:"sessions"`
}

func (s *Server) WaitingHandler(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now().UnixMilli()

	var resp internal.Response
	snap, err := s.coord.Snapshot(r.Context())
	if err != nil {
		resp = internal.Response{
			StatusCode:    http.StatusServiceUnavailable,
			RespStartTime: startTime,
			Data:          err.Error(),
		}
	} else {
		waiting := snap.Waiting
		if waiting == nil {
			waiting = []string{}
		}
		resp = internal.Response{
			StatusCode:    http.StatusOK,
			RespStartTime: startTime,
			Data:          waitingData{Count: len(waiting), Sessions: waiting},
		}
	}

	// Calculate response times
	endTime := time.Now().UnixMilli()
	resp.RespEndTime = endTime
	resp.NetRespTime = endTime - startTime

	writeJSON(w, resp.StatusCode, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("[WriteJSON] error encoding response")
	}
}
