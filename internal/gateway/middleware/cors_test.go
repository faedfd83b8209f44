package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func serve(t *testing.T, allowed []string, method, origin string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	reached := false
	h := CORS(allowed)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(method, "/v1/sessions", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, reached
}

func TestCORSOpenByDefault(t *testing.T) {
	rec, reached := serve(t, nil, http.MethodGet, "")
	if !reached || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("no-origin request: reached=%v headers=%v", reached, rec.Header())
	}

	rec, reached = serve(t, nil, http.MethodOptions, "http://localhost:5173")
	if reached {
		t.Fatal("preflight reached the handler")
	}
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("preflight: code=%d headers=%v", rec.Code, rec.Header())
	}
	if rec.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Fatal("preflight without allowed methods")
	}
}

func TestCORSAllowList(t *testing.T) {
	allowed := []string{"https://crew.example.com"}

	rec, reached := serve(t, allowed, http.MethodGet, "https://CREW.example.com")
	if !reached || rec.Header().Get("Access-Control-Allow-Origin") != "https://CREW.example.com" {
		t.Fatalf("listed origin: reached=%v headers=%v", reached, rec.Header())
	}
	if rec.Header().Get("Access-Control-Expose-Headers") == "" {
		t.Fatal("export headers not exposed")
	}

	rec, reached = serve(t, allowed, http.MethodGet, "https://evil.example.com")
	if !reached || rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("unlisted origin: reached=%v headers=%v", reached, rec.Header())
	}

	rec, reached = serve(t, allowed, http.MethodOptions, "https://evil.example.com")
	if reached || rec.Code != http.StatusForbidden {
		t.Fatalf("unlisted preflight: reached=%v code=%d", reached, rec.Code)
	}

	rec, _ = serve(t, allowed, http.MethodGet, "")
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("closed list answered * : %v", rec.Header())
	}
}
