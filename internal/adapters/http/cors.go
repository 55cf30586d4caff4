package httpadapter

import (
	"net/http"
	"strings"
)

// corsMiddleware applies an exact origin allow-list plus one wildcard shape
// for preview deployments (prefix + suffix match, e.g.
// https://ria-hunter-<branch>.vercel.app). Disallowed origins get responses
// without CORS headers rather than an error.
func corsMiddleware(next http.Handler, allowed []string, previewPrefix, previewSuffix string) http.Handler {
	exact := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			exact[origin] = struct{}{}
		}
	}

	originAllowed := func(origin string) bool {
		if origin == "" {
			return false
		}
		if _, ok := exact[origin]; ok {
			return true
		}
		return previewPrefix != "" && previewSuffix != "" &&
			strings.HasPrefix(origin, previewPrefix) &&
			strings.HasSuffix(origin, previewSuffix) &&
			len(origin) > len(previewPrefix)+len(previewSuffix)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Origin")

		origin := r.Header.Get("Origin")
		if originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
