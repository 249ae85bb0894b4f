package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRouter_SwaggerRoutes(t *testing.T) {
	enabled := newTestRouterWithConfig(t, RouterConfig{SwaggerEnabled: true, InternalToken: testToken})

	rec := httptest.NewRecorder()
	enabled.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Guildhall API Docs") {
		t.Fatalf("unexpected docs response %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "openapi.yaml") {
		t.Fatalf("docs page must point at the openapi document")
	}

	rec = httptest.NewRecorder()
	enabled.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, openAPIPath, nil))
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), "openapi:") {
		t.Fatalf("unexpected openapi response %d", rec.Code)
	}

	disabled := newTestRouter(t)
	rec = httptest.NewRecorder()
	disabled.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected docs hidden when disabled, got %d", rec.Code)
	}
}
