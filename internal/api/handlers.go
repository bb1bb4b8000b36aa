package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/shehryarbajwa/smiles-flights/internal/extract"
	"github.com/shehryarbajwa/smiles-flights/internal/lock"
	"github.com/shehryarbajwa/smiles-flights/internal/search"
	"github.com/shehryarbajwa/smiles-flights/pkg/models"
)

// Searcher runs search commands
type Searcher interface {
	Run(ctx context.Context, raw string, progress func(string)) (*models.SearchResult, error)
	Busy(ctx context.Context) bool
	RestartBrowser(ctx context.Context) error
}

// Sessions exposes the browser session to the API
type Sessions interface {
	Status() (*models.BrowserSession, bool)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	searcher Searcher
	sessions Sessions
}

// NewHandler creates a new HTTP handler
func NewHandler(searcher Searcher, sessions Sessions) *Handler {
	return &Handler{
		searcher: searcher,
		sessions: sessions,
	}
}

// SearchRequest is the body of POST /v1/searches
type SearchRequest struct {
	Query string `json:"query"`
}

// CreateSearch handles POST /v1/searches
func (h *Handler) CreateSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.searcher.Run(r.Context(), req.Query, nil)

	writeJSON(w, searchStatus(err), result)
}

// searchStatus maps a search failure onto an HTTP status
func searchStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, lock.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, search.ErrInvalidArgumentCount),
		errors.Is(err, search.ErrInvalidDateFormat),
		errors.Is(err, search.ErrRestrictedFeature):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, extract.ErrExtraction):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// GetSession handles GET /v1/session
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.sessions.Status()
	if !ok {
		writeError(w, http.StatusNotFound, "No browser session")
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// RestartSession handles POST /v1/session/restart
func (h *Handler) RestartSession(w http.ResponseWriter, r *http.Request) {
	if err := h.searcher.RestartBrowser(r.Context()); err != nil {
		if errors.Is(err, lock.ErrBusy) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		log.Printf("❌ Browser restart failed: %v", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Restart failed: %v", err))
		return
	}

	session, _ := h.sessions.Status()
	writeJSON(w, http.StatusOK, session)
}

// GetDebugURL handles GET /v1/session/debug
func (h *Handler) GetDebugURL(w http.ResponseWriter, r *http.Request) {
	session, ok := h.sessions.Status()
	if !ok {
		writeError(w, http.StatusNotFound, "No browser session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"debuggerUrl": fmt.Sprintf("ws://%s/v1/session/ws", r.Host),
		"sessionId":   session.ID,
		"status":      string(session.Status),
	})
}

// Health handles GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status": "ok",
		"busy":   h.searcher.Busy(r.Context()),
	}
	if session, ok := h.sessions.Status(); ok {
		status["browser"] = session.Status
	}

	writeJSON(w, http.StatusOK, status)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
