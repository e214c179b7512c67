// Package observability provides logging, metrics, and tracing
// functionality for the API Gateway.
//
// # Logging
//
// The Logger interface wraps zap with a small set of field helpers:
//
//	logger, err := observability.NewLogger(observability.LogConfig{
//	    Level:  "info",
//	    Format: "json",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("request proxied",
//	    observability.String("route", "identity"),
//	    observability.Int("status", 200),
//	)
//
// # Metrics
//
// Prometheus metrics live on a dedicated registry served by Handler:
//
//	metrics := observability.NewMetrics("gateway")
//	mux.Handle("/metrics", metrics.Handler())
//
// # Tracing
//
// OpenTelemetry tracing with optional OTLP gRPC export:
//
//	tracer, err := observability.NewTracer(observability.TracerConfig{
//	    ServiceName: "bizgw",
//	    Enabled:     true,
//	})
package observability
