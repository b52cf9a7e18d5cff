package utils

import (
	"net/http"

	"github.com/gorilla/mux"

	"seriescomplete/api"
	"seriescomplete/handlers"
)

// CORS middleware for browsers on local/private origins.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && IsAllowedOrigin(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// NewRouter wires the full HTTP surface.
func NewRouter(h *handlers.MetadataHandler, limiter *api.ClientLimiter) *mux.Router {
	r := mux.NewRouter()

	r.Use(corsMiddleware)
	r.Use(api.RequestID())
	r.Use(api.Logging())

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)

	apiRouter := r.PathPrefix("/api").Subrouter()
	if limiter != nil {
		apiRouter.Use(api.RateLimit(limiter))
	}

	apiRouter.HandleFunc("/get-series", h.GetSeries).Methods(http.MethodPost, http.MethodOptions)
	apiRouter.HandleFunc("/resolve", h.Resolve).Methods(http.MethodGet, http.MethodOptions)
	apiRouter.HandleFunc("/provider-health", h.ProviderHealth).Methods(http.MethodGet, http.MethodOptions)
	apiRouter.HandleFunc("/cache/invalidate", h.InvalidateCache).Methods(http.MethodPost, http.MethodOptions)
	apiRouter.HandleFunc("/series", h.TrackSeries).Methods(http.MethodPost, http.MethodOptions)
	apiRouter.HandleFunc("/series", h.ListSeries).Methods(http.MethodGet)

	return r
}
