package tracing

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func useSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(previous) })
	return recorder
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestGinMiddlewareRecordsRouteSpans(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := useSpanRecorder(t)

	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/holds/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/api/tickets/:code/redeem", func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	})

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/health", nil),
		httptest.NewRequest(http.MethodGet, "/api/holds/77", nil),
		httptest.NewRequest(http.MethodPost, "/api/tickets/01HZX/redeem", nil),
	} {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	hold := spans[0]
	assert.Equal(t, "GET /api/holds/:id", hold.Name())
	holdID, ok := spanAttr(hold, "boxoffice.hold_id")
	require.True(t, ok)
	assert.Equal(t, "77", holdID.AsString())

	redeem := spans[1]
	assert.Equal(t, "POST /api/tickets/:code/redeem", redeem.Name())
	assert.Equal(t, codes.Error, redeem.Status().Code)
	_, ok = spanAttr(redeem, "boxoffice.ticket_code")
	assert.False(t, ok)
}
