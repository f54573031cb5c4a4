// Package journal exposes the scheduling journal over HTTP.
package journal

import (
	"encoding/json"
	"net/http"
	"time"

	corejournal "github.com/kilianp07/crewplan/core/journal"
)

// NewHandler returns an HTTP handler exposing journal records via GET /api/journal.
// Supported filters are start and end (RFC 3339), worker_id and outcome.
// Requests must include an Authorization header with "Bearer <token>" when token is non-empty.
func NewHandler(store corejournal.Store, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if token != "" {
			auth := r.Header.Get("Authorization")
			if auth != "Bearer "+token {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		q := corejournal.Query{}
		for _, p := range []struct {
			name string
			dst  *time.Time
		}{{"start", &q.Start}, {"end", &q.End}} {
			s := r.URL.Query().Get(p.name)
			if s == "" {
				continue
			}
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				http.Error(w, "invalid "+p.name, http.StatusBadRequest)
				return
			}
			*p.dst = t
		}
		q.WorkerID = r.URL.Query().Get("worker_id")
		q.Outcome = corejournal.Outcome(r.URL.Query().Get("outcome"))
		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []corejournal.Record{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(records); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
