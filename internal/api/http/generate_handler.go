package http

import (
	"encoding/json"
	"net/http"

	"github.com/qcm-las/qcm-server/internal/gen"
	"github.com/qcm-las/qcm-server/internal/quiz"
)

// GenerateHandler asks the external producer for a batch and runs it
// through lenient validation; the caller gets back only questions that
// survived, in the same raw shape the import boundary accepts.
func GenerateHandler(client *gen.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if client == nil {
			http.Error(w, "question generation not configured", http.StatusServiceUnavailable)
			return
		}
		var req gen.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		raws, err := client.Generate(r.Context(), req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		kept, dropped := quiz.LoadLenient(raws)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"questions":     kept,
			"kept_count":    len(kept),
			"dropped_count": dropped,
		})
	}
}
