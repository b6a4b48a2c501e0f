package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/lumo-games/companion-gateway/internal/dialogue"
	"github.com/lumo-games/companion-gateway/internal/emotion"
	"github.com/lumo-games/companion-gateway/internal/gateway"
)

// statusResponse is the body of GET /v1/status.
type statusResponse struct {
	Emotion       gateway.Status `json:"emotion"`
	Dialogue      gateway.Status `json:"dialogue"`
	MemoryService string         `json:"memory_service"`
}

func (s *Server) handleEmotion(w http.ResponseWriter, r *http.Request) {
	var req emotion.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.emotion.Analyze(r.Context(), &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	AddLogField(r.Context(), "player_id", req.PlayerID)
	AddLogField(r.Context(), "method", string(res.Method))
	writeJSON(w, res)
}

func (s *Server) handleDialogue(w http.ResponseWriter, r *http.Request) {
	var req dialogue.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.dialogue.Generate(r.Context(), &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	AddLogField(r.Context(), "player_id", req.PlayerID)
	AddLogField(r.Context(), "method", string(res.Method))
	writeJSON(w, res)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Emotion:       s.emotion.Status(),
		Dialogue:      s.dialogue.Status(),
		MemoryService: "not_configured",
	}
	if s.memory != nil {
		if s.memory.Health(r.Context()) {
			resp.MemoryService = "up"
		} else {
			resp.MemoryService = "down"
		}
	}
	writeJSON(w, resp)
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	s.emotion.ClearCache(r.Context())
	s.dialogue.ClearCache(r.Context())
	s.logger.Info("caches cleared", "request_id", GetRequestID(r.Context()))
	writeJSON(w, map[string]bool{"cleared": true})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, "{\"error\":%q}\n", msg)
}
