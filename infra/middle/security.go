package middle

import (
	"net/http"
	"strings"

	"github.com/paygate-sk/tatrapay/infra/response"
)

// SecurityHeadersMiddleware adds security headers to responses
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("X-XSS-Protection", "1; mode=block")
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			next.ServeHTTP(w, r)
		})
	}
}

// RequestValidationMiddleware validates common request properties
func RequestValidationMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
				contentType := r.Header.Get("Content-Type")

				// Webhook endpoint accepts whatever the gateway sends
				isGatewayEndpoint := strings.HasPrefix(r.URL.Path, "/api/payment/webhook")

				if contentType != "" && !isGatewayEndpoint {
					if !strings.Contains(contentType, "application/json") &&
						!strings.Contains(contentType, "application/x-www-form-urlencoded") {
						response.Error(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json or application/x-www-form-urlencoded", nil)
						return
					}
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
