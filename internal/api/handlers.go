package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"survivor-arena/internal/game"
)

const (
	defaultLeaderboardSize = 10
	maxLeaderboardSize     = 100
)

func (h *routerHandlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":  "ok",
		"running": h.engine.Stats().Running,
	})
}

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.Snapshot())
}

// statsResponse is the /api/stats body
type statsResponse struct {
	game.EngineStats
	Sessions  int            `json:"sessions"`
	RateLimit RateLimitStats `json:"rateLimit"`
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{
		EngineStats: h.engine.Stats(),
		RateLimit:   h.rateLimiter.Stats(),
	}
	if h.hub != nil {
		resp.Sessions = h.hub.SessionCount()
	}
	writeJSON(w, resp)
}

func (h *routerHandlers) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	n := defaultLeaderboardSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		n = min(v, maxLeaderboardSize)
	}
	writeJSON(w, h.engine.Leaderboard(n))
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
