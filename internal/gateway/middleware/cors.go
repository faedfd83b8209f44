// Package middleware holds the HTTP wrappers shared by every route.
package middleware

import (
	"net/http"
	"slices"
	"strings"
)

const (
	allowMethods  = "GET, POST, DELETE, OPTIONS"
	allowHeaders  = "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization"
	exposeHeaders = "Content-Disposition, X-Export-Location, X-Export-Warning"
)

// CORS lets browsers from allowed origins call the session API and read the
// export headers. An empty list allows any origin. Preflights are answered
// here and never reach next; a preflight from an unlisted origin gets 403.
func CORS(allowed []string) func(http.Handler) http.Handler {
	open := len(allowed) == 0 || slices.Contains(allowed, "*")
	permits := func(origin string) bool {
		return open || slices.ContainsFunc(allowed, func(a string) bool { return strings.EqualFold(a, origin) })
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			switch {
			case origin == "":
				if open {
					h.Set("Access-Control-Allow-Origin", "*")
				}
			case permits(origin):
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Add("Vary", "Origin")
			case r.Method == http.MethodOptions:
				http.Error(w, "origin not allowed", http.StatusForbidden)
				return
			default:
				next.ServeHTTP(w, r)
				return
			}
			h.Set("Access-Control-Expose-Headers", exposeHeaders)
			if r.Method == http.MethodOptions {
				h.Set("Access-Control-Allow-Methods", allowMethods)
				h.Set("Access-Control-Allow-Headers", allowHeaders)
				h.Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
