package tracing

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// GinMiddleware traces admin API calls. Health checks, metric scrapes and the
// swagger UI stay out of the trace backend.
func GinMiddleware(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName, otelgin.WithFilter(tracedRequest))
}

func tracedRequest(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/")
}
