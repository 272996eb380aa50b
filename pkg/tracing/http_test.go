package tracing

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestGinMiddleware_TracesOnlyAPIRoutes(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(GinMiddleware("logtrigger-test"))
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	router.GET("/health", ok)
	router.GET("/metrics", ok)
	router.GET("/api/v1/rules", ok)

	for _, path := range []string{"/health", "/metrics", "/api/v1/rules"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Contains(t, spans[0].Name(), "/api/v1/rules")
}

func TestTracedRequest(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{path: "/api/v1/stats", want: true},
		{path: "/api/v1/rules/tell/enabled", want: true},
		{path: "/health"},
		{path: "/metrics"},
		{path: "/swagger/index.html"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, tracedRequest(httptest.NewRequest(http.MethodGet, tt.path, nil)))
		})
	}
}
