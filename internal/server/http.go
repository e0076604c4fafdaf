package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/alfredjeanlab/chainreg/internal/model"
)

// maxRequestBytes bounds workflow request bodies: the largest upload plus
// base64 overhead and a licence document.
const maxRequestBytes = 24 << 20

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header.
func (s *Server) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /v1/assets", s.handleListAssets)
	mux.HandleFunc("GET /v1/events", s.handleListEvents)
	mux.HandleFunc("GET /v1/tickets", s.handleListTickets)
	mux.HandleFunc("POST /v1/refresh", s.handleRefresh)
	mux.HandleFunc("GET /v1/notifications", s.handleListNotifications)
	mux.HandleFunc("DELETE /v1/notifications/{id}", s.handleDismissNotification)
	mux.HandleFunc("GET /v1/notifications/stream", s.handleEventStream)
	mux.HandleFunc("POST /v1/workflows/register", s.handleRegister)
	mux.HandleFunc("POST /v1/workflows/events", s.handleCreateEvent)
	mux.HandleFunc("POST /v1/workflows/purchase", s.handlePurchase)
	mux.HandleFunc("GET /v1/runs", s.handleListRuns)
	return AuthMiddleware(authToken, mux)
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// StatusResponse is the body of GET /v1/status.
type StatusResponse struct {
	Network         string    `json:"network"`
	Contract        string    `json:"contract"`
	StartedAt       time.Time `json:"started_at"`
	RefreshedAt     time.Time `json:"refreshed_at,omitzero"`
	Height          uint64    `json:"height"`
	HeightEstimated bool      `json:"height_estimated"`
	Assets          int       `json:"assets"`
	Events          int       `json:"events"`
	Tickets         int       `json:"tickets"`
	Notifications   int       `json:"notifications"`
	LastError       string    `json:"last_error,omitempty"`
	WorkflowsReady  bool      `json:"workflows_ready"`
}

// handleStatus handles GET /v1/status. It never triggers a reconcile.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Network:        s.network,
		Contract:       s.contractAddress + "." + s.contractName,
		StartedAt:      s.started,
		WorkflowsReady: s.workflows != nil,
	}
	if s.snapshots != nil {
		if snap := s.snapshots.Snapshot(); snap != nil {
			resp.RefreshedAt = snap.RefreshedAt
			resp.Height = snap.Height
			resp.HeightEstimated = snap.HeightEstimated
			resp.Assets = len(snap.Assets)
			resp.Events = len(snap.Events)
			resp.Tickets = len(snap.Tickets)
		}
		if err := s.snapshots.LastError(); err != nil {
			resp.LastError = err.Error()
		}
	}
	if s.notifications != nil {
		resp.Notifications = len(s.notifications.List())
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleListAssets handles GET /v1/assets.
func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		writeError(w, http.StatusServiceUnavailable, "reconciliation disabled")
		return
	}
	q := r.URL.Query()
	filter := model.AssetFilter{
		Category: q.Get("category"),
		Search:   q.Get("search"),
		Sort:     model.AssetSort(q.Get("sort")),
	}
	if !filter.Sort.IsValid() {
		writeError(w, http.StatusBadRequest, "invalid sort: "+string(filter.Sort))
		return
	}
	snap, err := s.snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "reconcile: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"assets":       model.ApplyAssetFilter(snap.Assets, filter),
		"refreshed_at": snap.RefreshedAt,
	})
}

// handleListEvents handles GET /v1/events.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		writeError(w, http.StatusServiceUnavailable, "reconciliation disabled")
		return
	}
	q := r.URL.Query()
	upcoming := false
	if v := q.Get("upcoming"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid upcoming: "+v)
			return
		}
		upcoming = b
	}
	snap, err := s.snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "reconcile: "+err.Error())
		return
	}
	filter := model.EventFilter{
		Organizer: q.Get("organizer"),
		Category:  q.Get("category"),
	}
	if upcoming {
		filter.UpcomingAt = snap.Height
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events":           model.ApplyEventFilter(snap.Events, filter),
		"height":           snap.Height,
		"height_estimated": snap.HeightEstimated,
		"refreshed_at":     snap.RefreshedAt,
	})
}

// handleListTickets handles GET /v1/tickets. The snapshot owner is served
// from the snapshot; any other owner is read live.
func (s *Server) handleListTickets(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		owner = s.ticketOwner
	}
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner is required")
		return
	}
	if owner == s.ticketOwner && s.snapshots != nil {
		snap, err := s.snapshot(r.Context())
		if err != nil {
			writeError(w, http.StatusBadGateway, "reconcile: "+err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"owner": owner, "tickets": nonNil(snap.Tickets)})
		return
	}
	if s.tickets == nil {
		writeError(w, http.StatusServiceUnavailable, "ticket lookup disabled")
		return
	}
	tickets, err := s.tickets.ListTickets(r.Context(), owner)
	if err != nil {
		writeError(w, http.StatusBadGateway, "list tickets: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"owner": owner, "tickets": nonNil(tickets)})
}

// handleRefresh handles POST /v1/refresh.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		writeError(w, http.StatusServiceUnavailable, "reconciliation disabled")
		return
	}
	snap, err := s.snapshots.Refresh(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "reconcile: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleListNotifications handles GET /v1/notifications.
func (s *Server) handleListNotifications(w http.ResponseWriter, _ *http.Request) {
	if s.notifications == nil {
		writeError(w, http.StatusServiceUnavailable, "notifications disabled")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": nonNil(s.notifications.List())})
}

// handleDismissNotification handles DELETE /v1/notifications/{id}.
func (s *Server) handleDismissNotification(w http.ResponseWriter, r *http.Request) {
	if s.notifications == nil {
		writeError(w, http.StatusServiceUnavailable, "notifications disabled")
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid notification id")
		return
	}
	if !s.notifications.Dismiss(id) {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListRuns handles GET /v1/runs.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "journal disabled")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit: "+v)
			return
		}
		limit = n
	}
	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list runs: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": nonNil(runs)})
}

// decodeBody decodes a JSON request body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
