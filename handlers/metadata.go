package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"seriescomplete/models"
	"seriescomplete/services/library"
	"seriescomplete/services/resolver"
)

// resolverService is the slice of the resolver the HTTP layer consumes.
type resolverService interface {
	Resolve(ctx context.Context, name string, year int, opts resolver.Options) (*models.SeriesMetadata, error)
	ProviderHealth() map[string]models.ProviderHealth
	InvalidateCache(pattern string) int
}

var _ resolverService = (*resolver.Service)(nil)

// libraryService exposes the tracked inventory with completeness math.
type libraryService interface {
	Track(ctx context.Context, title string, year, episodeCount int) (*models.Series, error)
	Snapshot(ctx context.Context) ([]models.SeriesCompletion, models.LibrarySummary, error)
}

var _ libraryService = (*library.Service)(nil)

type MetadataHandler struct {
	Resolver resolverService
	Library  libraryService
}

func NewMetadataHandler(res resolverService, lib libraryService) *MetadataHandler {
	return &MetadataHandler{Resolver: res, Library: lib}
}

// GetSeries returns the completeness list consumed by the dashboard
// integration. The response is a bare JSON array; consumers aggregate it
// themselves.
func (h *MetadataHandler) GetSeries(w http.ResponseWriter, r *http.Request) {
	list, _, err := h.Library.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if list == nil {
		list = []models.SeriesCompletion{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

// Resolve answers GET /api/resolve?name=&year=&provider=&consensus=.
func (h *MetadataHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	year := 0
	if yearStr := r.URL.Query().Get("year"); yearStr != "" {
		parsed, err := strconv.Atoi(yearStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("year must be an integer"))
			return
		}
		year = parsed
	}
	opts := resolver.Options{
		PreferredProvider: strings.TrimSpace(r.URL.Query().Get("provider")),
		UseConsensus:      strings.EqualFold(r.URL.Query().Get("consensus"), "true"),
	}

	meta, err := h.Resolver.Resolve(r.Context(), name, year, opts)
	if errors.Is(err, resolver.ErrEmptyName) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	if meta == nil {
		writeError(w, http.StatusNotFound, errors.New("series not found on any provider"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(meta)
}

// TrackSeriesRequest is the POST /api/series payload: one locally observed
// series and how many episodes of it are on disk.
type TrackSeriesRequest struct {
	Title        string `json:"title"`
	Year         int    `json:"year"`
	EpisodeCount int    `json:"episode_count"`
}

func (h *MetadataHandler) TrackSeries(w http.ResponseWriter, r *http.Request) {
	var req TrackSeriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, errors.New("title must not be empty"))
		return
	}

	series, err := h.Library.Track(r.Context(), req.Title, req.Year, req.EpisodeCount)
	if errors.Is(err, resolver.ErrEmptyName) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		log.Printf("[handlers] track %q failed: %v", req.Title, err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(series)
}

// ListSeriesResponse pairs the per-series list with the library summary.
type ListSeriesResponse struct {
	Series  []models.SeriesCompletion `json:"series"`
	Summary models.LibrarySummary     `json:"summary"`
}

func (h *MetadataHandler) ListSeries(w http.ResponseWriter, r *http.Request) {
	list, summary, err := h.Library.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if list == nil {
		list = []models.SeriesCompletion{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ListSeriesResponse{Series: list, Summary: summary})
}

func (h *MetadataHandler) ProviderHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Resolver.ProviderHealth())
}

// InvalidateCacheRequest names a substring of cache keys to drop.
type InvalidateCacheRequest struct {
	Pattern string `json:"pattern"`
}

func (h *MetadataHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	var req InvalidateCacheRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Pattern == "" {
		writeError(w, http.StatusBadRequest, errors.New("pattern must not be empty"))
		return
	}
	n := h.Resolver.InvalidateCache(req.Pattern)
	log.Printf("[handlers] invalidated %d cache entries matching %q", n, req.Pattern)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"invalidated": n})
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
