package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seriescomplete/models"
	"seriescomplete/services/resolver"
)

type fakeResolverService struct {
	meta   *models.SeriesMetadata
	err    error
	health map[string]models.ProviderHealth

	lastName        string
	lastYear        int
	lastOpts        resolver.Options
	lastPattern     string
	invalidateCount int
}

func (f *fakeResolverService) Resolve(_ context.Context, name string, year int, opts resolver.Options) (*models.SeriesMetadata, error) {
	f.lastName = name
	f.lastYear = year
	f.lastOpts = opts
	if strings.TrimSpace(name) == "" {
		return nil, resolver.ErrEmptyName
	}
	return f.meta, f.err
}

func (f *fakeResolverService) ProviderHealth() map[string]models.ProviderHealth {
	return f.health
}

func (f *fakeResolverService) InvalidateCache(pattern string) int {
	f.lastPattern = pattern
	return f.invalidateCount
}

type fakeLibraryService struct {
	series  *models.Series
	list    []models.SeriesCompletion
	summary models.LibrarySummary
	err     error

	lastTitle string
	lastYear  int
	lastCount int
}

func (f *fakeLibraryService) Track(_ context.Context, title string, year, episodeCount int) (*models.Series, error) {
	f.lastTitle = title
	f.lastYear = year
	f.lastCount = episodeCount
	return f.series, f.err
}

func (f *fakeLibraryService) Snapshot(_ context.Context) ([]models.SeriesCompletion, models.LibrarySummary, error) {
	return f.list, f.summary, f.err
}

func TestResolveReturnsMetadata(t *testing.T) {
	res := &fakeResolverService{meta: &models.SeriesMetadata{
		Title: "Example Show", TotalSeasons: 3, TotalEpisodes: 24, Source: "tmdb",
	}}
	h := NewMetadataHandler(res, &fakeLibraryService{})

	req := httptest.NewRequest(http.MethodGet, "/api/resolve?name=Example+Show&year=2010&provider=tvdb&consensus=true", nil)
	rec := httptest.NewRecorder()
	h.Resolve(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Example Show", res.lastName)
	assert.Equal(t, 2010, res.lastYear)
	assert.Equal(t, "tvdb", res.lastOpts.PreferredProvider)
	assert.True(t, res.lastOpts.UseConsensus)

	var got models.SeriesMetadata
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, 24, got.TotalEpisodes)
}

func TestResolveMissingNameIsBadRequest(t *testing.T) {
	h := NewMetadataHandler(&fakeResolverService{}, &fakeLibraryService{})

	req := httptest.NewRequest(http.MethodGet, "/api/resolve", nil)
	rec := httptest.NewRecorder()
	h.Resolve(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResolveBadYearIsBadRequest(t *testing.T) {
	h := NewMetadataHandler(&fakeResolverService{}, &fakeLibraryService{})

	req := httptest.NewRequest(http.MethodGet, "/api/resolve?name=x&year=abc", nil)
	rec := httptest.NewRecorder()
	h.Resolve(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResolveNotFoundIs404(t *testing.T) {
	h := NewMetadataHandler(&fakeResolverService{meta: nil}, &fakeLibraryService{})

	req := httptest.NewRequest(http.MethodGet, "/api/resolve?name=Unknown+Show", nil)
	rec := httptest.NewRecorder()
	h.Resolve(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResolveProviderErrorIsBadGateway(t *testing.T) {
	h := NewMetadataHandler(&fakeResolverService{err: errors.New("upstream down")}, &fakeLibraryService{})

	req := httptest.NewRequest(http.MethodGet, "/api/resolve?name=Example", nil)
	rec := httptest.NewRecorder()
	h.Resolve(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestGetSeriesReturnsBareArray(t *testing.T) {
	lib := &fakeLibraryService{list: []models.SeriesCompletion{
		{
			Series:        models.Series{Title: "Done", EpisodeCount: 24, TotalEpisodes: 24},
			CompletionPct: 100,
			State:         models.CompletionComplete,
		},
	}}
	h := NewMetadataHandler(&fakeResolverService{}, lib)

	req := httptest.NewRequest(http.MethodPost, "/api/get-series", nil)
	rec := httptest.NewRecorder()
	h.GetSeries(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := strings.TrimSpace(rec.Body.String())
	assert.True(t, strings.HasPrefix(body, "["), "consumers expect a bare JSON array, got %s", body)

	var got []models.SeriesCompletion
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	require.Len(t, got, 1)
	assert.Equal(t, 24, got[0].TotalEpisodes)
	assert.Equal(t, 24, got[0].EpisodeCount)
}

func TestGetSeriesEmptyLibraryIsEmptyArray(t *testing.T) {
	h := NewMetadataHandler(&fakeResolverService{}, &fakeLibraryService{})

	req := httptest.NewRequest(http.MethodPost, "/api/get-series", nil)
	rec := httptest.NewRecorder()
	h.GetSeries(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestTrackSeries(t *testing.T) {
	lib := &fakeLibraryService{series: &models.Series{ID: 7, Title: "Example Show", EpisodeCount: 12}}
	h := NewMetadataHandler(&fakeResolverService{}, lib)

	body := strings.NewReader(`{"title":"Example Show","year":2010,"episode_count":12}`)
	req := httptest.NewRequest(http.MethodPost, "/api/series", body)
	rec := httptest.NewRecorder()
	h.TrackSeries(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Example Show", lib.lastTitle)
	assert.Equal(t, 2010, lib.lastYear)
	assert.Equal(t, 12, lib.lastCount)

	var got models.Series
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, int64(7), got.ID)
}

func TestTrackSeriesRejectsEmptyTitle(t *testing.T) {
	h := NewMetadataHandler(&fakeResolverService{}, &fakeLibraryService{})

	req := httptest.NewRequest(http.MethodPost, "/api/series", strings.NewReader(`{"title":"  "}`))
	rec := httptest.NewRecorder()
	h.TrackSeries(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListSeriesIncludesSummary(t *testing.T) {
	lib := &fakeLibraryService{
		list:    []models.SeriesCompletion{{Series: models.Series{Title: "Done"}}},
		summary: models.LibrarySummary{Total: 1, Complete: 1, CompletionPct: 100},
	}
	h := NewMetadataHandler(&fakeResolverService{}, lib)

	req := httptest.NewRequest(http.MethodGet, "/api/series", nil)
	rec := httptest.NewRecorder()
	h.ListSeries(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got ListSeriesResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, 1, got.Summary.Complete)
	require.Len(t, got.Series, 1)
}

func TestProviderHealth(t *testing.T) {
	res := &fakeResolverService{health: map[string]models.ProviderHealth{
		"tmdb": {CircuitOpen: false, TokensAvailable: 38},
		"tvdb": {CircuitOpen: true, ConsecutiveFailures: 5},
	}}
	h := NewMetadataHandler(res, &fakeLibraryService{})

	req := httptest.NewRequest(http.MethodGet, "/api/provider-health", nil)
	rec := httptest.NewRecorder()
	h.ProviderHealth(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]models.ProviderHealth
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.True(t, got["tvdb"].CircuitOpen)
}

func TestInvalidateCache(t *testing.T) {
	res := &fakeResolverService{invalidateCount: 3}
	h := NewMetadataHandler(res, &fakeLibraryService{})

	req := httptest.NewRequest(http.MethodPost, "/api/cache/invalidate", strings.NewReader(`{"pattern":"example"}`))
	rec := httptest.NewRecorder()
	h.InvalidateCache(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "example", res.lastPattern)
	assert.JSONEq(t, `{"invalidated":3}`, rec.Body.String())
}

func TestInvalidateCacheRequiresPattern(t *testing.T) {
	h := NewMetadataHandler(&fakeResolverService{}, &fakeLibraryService{})

	req := httptest.NewRequest(http.MethodPost, "/api/cache/invalidate", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.InvalidateCache(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
