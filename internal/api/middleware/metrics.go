package middleware

import (
	"lending-backoffice/internal/infrastructure/monitoring"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

const unmatchedRoute = "unmatched"

// MetricsMiddleware records request counts and latencies labelled by the chi
// route pattern, so path parameters do not explode label cardinality.
func MetricsMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				route := routePattern(r)
				if route == "" {
					route = unmatchedRoute
				}
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				monitoring.RecordHTTPRequest(r.Method, route, strconv.Itoa(status), time.Since(start))
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
