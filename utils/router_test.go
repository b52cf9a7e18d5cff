package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"seriescomplete/handlers"
)

func TestHealthEndpoint(t *testing.T) {
	router := NewRouter(&handlers.MetadataHandler{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCORSPreflightFromPrivateOrigin(t *testing.T) {
	router := NewRouter(&handlers.MetadataHandler{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/resolve", nil)
	req.Header.Set("Origin", "http://192.168.1.20:3000")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://192.168.1.20:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSDeniedForPublicOrigin(t *testing.T) {
	router := NewRouter(&handlers.MetadataHandler{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/resolve", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
