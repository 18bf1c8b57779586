package middleware

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/demo_gateway/internal/app/metrics"
)

// MetricsMiddleware records HTTP metrics for each routed request, labelled
// with the matched route template.
func MetricsMiddleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return metrics.InstrumentHandler(next, routeTemplate)
	}
}

func routeTemplate(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return ""
	}
	pathTemplate, err := route.GetPathTemplate()
	if err != nil {
		return ""
	}
	return pathTemplate
}
