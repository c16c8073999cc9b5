package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/mailplane/internal/config"
)

func buildTestHandler(t *testing.T) http.Handler {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "storage:\n  driver: memory\nrate:\n  sync:\n    limit: 100\n"
	require.NoError(t, os.WriteFile(p, []byte(yaml), 0o600))

	cfg, err := config.Load(p)
	require.NoError(t, err)

	h, cleanup, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cleanup() })
	return h
}

func TestBuild_Healthz(t *testing.T) {
	h := buildTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestBuild_GetSeededTemplate(t *testing.T) {
	h := buildTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/templates/confirm_signup", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "confirm_signup", body["slug"])
}

func TestBuild_UnknownRoute(t *testing.T) {
	h := buildTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBuild_SyncDryRun(t *testing.T) {
	h := buildTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/templates/sync",
		strings.NewReader(`{"dry_run": true}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", "wiring-dry-run-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, true, body["success"])
	require.Equal(t, true, body["dry_run"])
	require.NotEmpty(t, body["patch_preview"])
	// el set por defecto completo traduce sin tokens sin soporte
	require.Len(t, body["synced_slugs"], 5)
}

func TestBuild_SyncRequiresIdempotencyKey(t *testing.T) {
	h := buildTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/templates/sync",
		strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBuild_Preview(t *testing.T) {
	h := buildTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/templates/welcome/preview",
		strings.NewReader(`{"variables":{"NAME":"Ada","SITE_URL":"https://x.test/a"}}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body["html"], "Ada")
	require.Equal(t, false, body["blocked"])
}

func TestBuild_UpdateLocalOnlyTemplate(t *testing.T) {
	h := buildTestHandler(t)

	// welcome no es sincronizable: el update aplica directo, sin
	// idempotency key y sin revert.
	req := httptest.NewRequest(http.MethodPut, "/v1/admin/templates/welcome",
		strings.NewReader(`{"subject":"Updated subject","html_body":"<p>Hello {{NAME}}</p>"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/templates/welcome", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "Updated subject", body["subject"])
	require.Contains(t, body["html_body"], "Hello {{NAME}}")
}
