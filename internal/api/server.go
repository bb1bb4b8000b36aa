package api

import (
	"github.com/gorilla/mux"

	"github.com/shehryarbajwa/smiles-flights/internal/proxy"
	"github.com/shehryarbajwa/smiles-flights/internal/ratelimit"
)

// SetupRoutes configures all HTTP routes
func (h *Handler) SetupRoutes(proxyServer *proxy.Server, rateLimiter *ratelimit.Limiter) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", h.Health).Methods("GET")

	// API v1 routes
	api := r.PathPrefix("/v1").Subrouter()

	// Searches and session changes drive the browser, so they are rate limited
	rateLimitedAPI := api.PathPrefix("").Subrouter()
	rateLimitedAPI.Use(RateLimitMiddleware(rateLimiter))

	rateLimitedAPI.HandleFunc("/searches", h.CreateSearch).Methods("POST")
	rateLimitedAPI.HandleFunc("/session/restart", h.RestartSession).Methods("POST")

	// Read-only and debug endpoints (not rate limited)
	api.HandleFunc("/session", h.GetSession).Methods("GET")
	api.HandleFunc("/session/debug", h.GetDebugURL).Methods("GET")
	api.HandleFunc("/session/ws", proxyServer.HandleDebugConnection).Methods("GET")

	// CORS middleware
	r.Use(corsMiddleware)

	return r
}
