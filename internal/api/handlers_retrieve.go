package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/dgallion1/ragest/internal/document"
	"github.com/dgallion1/ragest/internal/ingest"
)

const maxRetrieveK = 50

type passage struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata document.Metadata `json:"metadata"`
	Score    float32           `json:"score"`
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		jsonError(w, "q is required", http.StatusBadRequest)
		return
	}

	k := s.cfg.RetrievalK
	if v := r.URL.Query().Get("k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			jsonError(w, "k must be a positive integer", http.StatusBadRequest)
			return
		}
		k = min(n, maxRetrieveK)
	}

	recs, err := s.index.Retrieve(r.Context(), q, k)
	if err != nil {
		s.log.Error("retrieve failed", "error", err)
		status := http.StatusBadGateway
		var idxErr *ingest.IndexUnavailableError
		if errors.As(err, &idxErr) {
			status = http.StatusServiceUnavailable
		}
		jsonError(w, err.Error(), status)
		return
	}

	results := make([]passage, len(recs))
	for i, rec := range recs {
		results[i] = passage{ID: rec.ID, Content: rec.Content, Metadata: rec.Metadata, Score: rec.Score}
	}

	spoken := false
	if r.URL.Query().Get("speak") == "true" && s.speech != nil && len(results) > 0 {
		s.speech.Say(results[0].Content)
		spoken = true
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"query":   q,
		"k":       k,
		"results": results,
		"spoken":  spoken,
	})
}
