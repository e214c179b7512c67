package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewTracer_Disabled(t *testing.T) {
	t.Parallel()

	tracer, err := NewTracer(TracerConfig{ServiceName: "bizgw"})
	require.NoError(t, err)
	assert.Nil(t, tracer.provider)

	_, span := tracer.StartSpan(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
	assert.NoError(t, tracer.Shutdown(context.Background()))
}

func TestSamplerFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rate float64
		want string
	}{
		{rate: 1, want: "AlwaysOnSampler"},
		{rate: 2, want: "AlwaysOnSampler"},
		{rate: 0, want: "AlwaysOffSampler"},
		{rate: 0.5, want: "TraceIDRatioBased{0.5}"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, samplerFor(tt.rate).Description())
	}
}

// The middleware tests install a global provider, so they run serially.
func TestTracingMiddleware(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tracer, err := NewTracer(TracerConfig{
		ServiceName:  "bizgw",
		Enabled:      true,
		SamplingRate: 1,
		exporter:     exporter,
	})
	require.NoError(t, err)

	var (
		traceID  string
		injected string
	)
	handler := TracingMiddleware(tracer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = TraceIDFromContext(r.Context())

		out, _ := http.NewRequestWithContext(r.Context(), http.MethodGet, "http://upstream/", nil)
		InjectTraceContext(r.Context(), out)
		injected = out.Header.Get("traceparent")

		w.WriteHeader(http.StatusBadGateway)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/cdr/calls", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.NoError(t, tracer.Shutdown(context.Background()))

	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", traceID)
	assert.Contains(t, injected, "4bf92f3577b34da6a3ce929d0e0e4736")

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /api/cdr/calls", spans[0].Name)
	assert.Equal(t, "Error", spans[0].Status.Code.String())
}
