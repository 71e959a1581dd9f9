package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/qcm-las/qcm-server/internal/runs"

	"github.com/go-chi/chi/v5"
)

// ListRunsHandler pages the saved run history, newest first.
func ListRunsHandler(store runs.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))
		out, err := store.ListRuns(r.Context(), runs.ListOpts{
			Mode:   q.Get("mode"),
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}

func GetRunHandler(store runs.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "runID")
		run, err := store.GetRun(r.Context(), id)
		if err != nil {
			if errors.Is(err, runs.ErrNotFound) {
				http.Error(w, err.Error(), 404)
				return
			}
			http.Error(w, err.Error(), 500)
			return
		}
		_ = json.NewEncoder(w).Encode(run)
	}
}

func RunStatsHandler(store runs.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := store.Stats(r.Context())
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		_ = json.NewEncoder(w).Encode(st)
	}
}
