package middleware

import (
	"net/http"
	"strconv"
)

const defaultCORSMaxAge = 86400

// CORSMiddleware allows any origin and answers preflight requests directly
func CORSMiddleware(maxAge int) func(http.Handler) http.Handler {
	if maxAge <= 0 {
		maxAge = defaultCORSMaxAge
	}
	maxAgeHeader := strconv.Itoa(maxAge)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
			w.Header().Set("Access-Control-Max-Age", maxAgeHeader)

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
