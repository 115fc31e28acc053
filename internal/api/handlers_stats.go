package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	count, err := s.index.Count(r.Context())
	if err != nil {
		s.log.Error("count failed", "error", err)
		jsonError(w, "index unavailable", http.StatusServiceUnavailable)
		return
	}

	resp := map[string]any{
		"records":     count,
		"queue_depth": s.jobs.QueueDepth(),
	}
	if s.model != nil && s.model.Stats() != nil {
		resp["embedding"] = map[string]any{
			"model": s.model.Model(),
			"stats": s.model.Stats().Snapshot(),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
