package ui

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHandler_ServesIndex(t *testing.T) {
	h, err := Handler()
	require.NoError(t, err)

	rec := get(t, h, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<div id="remaining">`)
}

func TestHandler_ServesAssets(t *testing.T) {
	h, err := Handler()
	require.NoError(t, err)

	rec := get(t, h, "/app.js")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/timer/status")
}

func TestHandler_ClientRouteFallsBackToIndex(t *testing.T) {
	h, err := Handler()
	require.NoError(t, err)

	rec := get(t, h, "/progress")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<title>pomo</title>")
}

func TestHandler_MissingAssetIs404(t *testing.T) {
	h, err := Handler()
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/missing.css").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/nope").Code)
}

func TestHandler_RejectsWrites(t *testing.T) {
	h, err := Handler()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMount_RoutesAPI(t *testing.T) {
	api := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h, err := Mount(api)
	require.NoError(t, err)

	assert.Equal(t, http.StatusTeapot, get(t, h, "/api/timer/status").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/").Code)
}
