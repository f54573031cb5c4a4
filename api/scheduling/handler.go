// Package scheduling exposes planner sessions over HTTP.
package scheduling

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kilianp07/crewplan/core/booking"
	"github.com/kilianp07/crewplan/core/estimate"
	"github.com/kilianp07/crewplan/core/logger"
	"github.com/kilianp07/crewplan/core/model"
	"github.com/kilianp07/crewplan/core/planner"
	"github.com/kilianp07/crewplan/core/scheduler"
	"github.com/kilianp07/crewplan/core/store"
)

type catalogResponse struct {
	Items []model.WorkItem `json:"items"`
}

type durationRequest struct {
	WorkItemID string   `json:"work_item_id"`
	WorkerIDs  []string `json:"worker_ids"`
	Mode       string   `json:"mode,omitempty"`
}

type slotsRequest struct {
	WorkItemID string   `json:"work_item_id"`
	WorkerIDs  []string `json:"worker_ids"`
	Mode       string   `json:"mode,omitempty"`
}

type slotsResponse struct {
	planner.SearchResult
	NoFeasibleSlot bool `json:"no_feasible_slot"`
}

type commitRequest struct {
	WorkItemID string          `json:"work_item_id"`
	WorkerID   string          `json:"worker_id"`
	Candidate  model.Candidate `json:"candidate"`
}

type errorResponse struct {
	Error        string `json:"error"`
	OrphanTaskID string `json:"orphan_task_id,omitempty"`
}

type handler struct {
	sessions *Sessions
	log      logger.Logger
}

// NewHandler returns the scheduling API:
//
//	GET  /api/catalog
//	POST /api/duration
//	POST /api/slots
//	POST /api/commit
//
// The session id is returned in the X-Session-ID header and must be sent
// back so commits are checked against the session's latest search.
// Requests must include an Authorization header with "Bearer <token>" when
// token is non-empty.
func NewHandler(sessions *Sessions, token string, log logger.Logger) http.Handler {
	if log == nil {
		log = logger.Nop{}
	}
	h := &handler{sessions: sessions, log: log}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/catalog", h.catalog)
	mux.HandleFunc("POST /api/duration", h.duration)
	mux.HandleFunc("POST /api/slots", h.slots)
	mux.HandleFunc("POST /api/commit", h.commit)
	return RequireToken(token, mux)
}

// RequireToken rejects requests without the bearer token. An empty token
// disables the check.
func RequireToken(token string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *handler) session(w http.ResponseWriter, r *http.Request) *planner.Planner {
	id, p := h.sessions.Get(r.Header.Get(SessionHeader))
	w.Header().Set(SessionHeader, id)
	return p
}

func (h *handler) catalog(w http.ResponseWriter, r *http.Request) {
	p := h.session(w, r)
	cat := p.Catalog(r.Context())
	if cat.Err != nil {
		h.fail(w, cat.Err)
		return
	}
	writeJSON(w, http.StatusOK, catalogResponse{Items: cat.Items})
}

func (h *handler) duration(w http.ResponseWriter, r *http.Request) {
	var req durationRequest
	if !decode(w, r, &req) {
		return
	}
	p := h.session(w, r)
	mode, ok := parseMode(req.Mode, p.DefaultMode())
	if !ok {
		http.Error(w, "unknown mode", http.StatusBadRequest)
		return
	}
	d, err := p.Resolve(r.Context(), req.WorkItemID, req.WorkerIDs, mode)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *handler) slots(w http.ResponseWriter, r *http.Request) {
	var req slotsRequest
	if !decode(w, r, &req) {
		return
	}
	p := h.session(w, r)
	mode, ok := parseMode(req.Mode, p.DefaultMode())
	if !ok {
		http.Error(w, "unknown mode", http.StatusBadRequest)
		return
	}
	d, err := p.Resolve(r.Context(), req.WorkItemID, req.WorkerIDs, mode)
	if err != nil {
		h.fail(w, err)
		return
	}
	res, err := p.Search(r.Context(), req.WorkItemID, req.WorkerIDs, d)
	switch {
	case errors.Is(err, scheduler.ErrNoFeasibleSlot):
		writeJSON(w, http.StatusOK, slotsResponse{SearchResult: res, NoFeasibleSlot: true})
	case err != nil:
		h.fail(w, err)
	default:
		writeJSON(w, http.StatusOK, slotsResponse{SearchResult: res})
	}
}

func (h *handler) commit(w http.ResponseWriter, r *http.Request) {
	var req commitRequest
	if !decode(w, r, &req) {
		return
	}
	p := h.session(w, r)
	res, err := p.Commit(r.Context(), req.WorkItemID, req.WorkerID, req.Candidate)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *handler) fail(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	resp := errorResponse{Error: err.Error()}
	var pf *booking.PartialFailureError
	if errors.As(err, &pf) {
		resp.OrphanTaskID = pf.Task.ID
	}
	if status >= http.StatusInternalServerError {
		h.log.Errorf("scheduling request failed: %v", err)
	}
	writeJSON(w, status, resp)
}

// StatusFor maps scheduling errors to HTTP status codes. Errors asking the
// caller to search again map to 409.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, booking.ErrConflict),
		errors.Is(err, booking.ErrInvalidCandidate),
		errors.Is(err, planner.ErrStaleDuration):
		return http.StatusConflict
	case errors.Is(err, booking.ErrWorkerNotAuthorized),
		errors.Is(err, estimate.ErrNoWorkers),
		errors.Is(err, estimate.ErrInvalidHours):
		return http.StatusUnprocessableEntity
	case errors.Is(err, planner.ErrUnknownWorkItem),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func parseMode(s string, def model.ParallelizationMode) (model.ParallelizationMode, bool) {
	if s == "" {
		return def, true
	}
	return model.ParseParallelizationMode(s)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		http.Error(w, "invalid request: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
