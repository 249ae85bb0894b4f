package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCORS(t *testing.T) {
	const dashboard = "https://guildhall-dashboard.example.com"

	cases := []struct {
		name        string
		allowed     []string
		method      string
		origin      string
		wantStatus  int
		wantOrigin  string
		wantHeaders bool
	}{
		{name: "configured origin", allowed: []string{dashboard}, method: http.MethodGet, origin: dashboard, wantStatus: http.StatusOK, wantOrigin: dashboard, wantHeaders: true},
		{name: "wildcard preflight", allowed: []string{"*"}, method: http.MethodOptions, origin: dashboard, wantStatus: http.StatusNoContent, wantOrigin: "*", wantHeaders: true},
		{name: "unconfigured origin", allowed: []string{"https://allowed.example.com"}, method: http.MethodGet, origin: dashboard, wantStatus: http.StatusOK},
		{name: "no origin header", allowed: []string{"*"}, method: http.MethodGet, wantStatus: http.StatusOK},
		{name: "blank entries ignored", allowed: []string{" ", ""}, method: http.MethodGet, origin: dashboard, wantStatus: http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
			req := httptest.NewRequest(tc.method, "/v1/guilds", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			rec := httptest.NewRecorder()

			CORS(tc.allowed, next).ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rec.Code)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tc.wantOrigin {
				t.Fatalf("unexpected Access-Control-Allow-Origin: %q", got)
			}
			allowHeaders := rec.Header().Get("Access-Control-Allow-Headers")
			if !tc.wantHeaders {
				if allowHeaders != "" {
					t.Fatalf("expected no allow headers, got %q", allowHeaders)
				}
				return
			}
			for _, h := range []string{headerInternalToken, headerTenantID, headerActorID, headerActorAdmin} {
				if !strings.Contains(allowHeaders, h) {
					t.Fatalf("expected %s in allow headers %q", h, allowHeaders)
				}
			}
		})
	}
}
