package middle

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/paygate-sk/tatrapay/infra/logger"
	"github.com/paygate-sk/tatrapay/infra/response"
)

// PanicRecoveryMiddleware handles panics and converts them to HTTP 500 errors
func PanicRecoveryMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					stack := debug.Stack()

					requestID := r.Header.Get("X-Request-ID")
					if requestID == "" {
						requestID = "unknown"
					}

					logger.Error("Panic recovered", fmt.Errorf("%v", err), logger.LogContext{
						Provider: "tatrapay",
						Fields: map[string]any{
							"request_id": requestID,
							"method":     r.Method,
							"url":        r.URL.String(),
							"stack":      string(stack),
						},
					})

					w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
					response.Error(w, http.StatusInternalServerError, "Internal server error", fmt.Errorf("an unexpected error occurred"))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
