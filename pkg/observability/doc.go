// Package observability provides structured logging, Prometheus metrics, OpenTelemetry
// tracing, and health probes for history backends.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stderr)
//	logger.WithField("subject", "orders-value").Info("check started")
//
// Context-aware logging:
//
//	ctx = observability.WithCheckID(ctx, id)
//	observability.FromContext(ctx).WithError(err).Error("history lookup failed")
//
// # Prometheus Metrics
//
// Metrics register against a caller-owned registry. Every Record helper accepts a
// nil *Metrics:
//
//	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
//	metrics.RecordCheck("BACKWARD", result.Compatible, result.Duration)
//
// # OpenTelemetry
//
// Initialize tracing:
//
//	tp, err := observability.InitTracing(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "schema-registry",
//	}, logger)
//	defer observability.ShutdownTracing(ctx, tp, logger)
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(version,
//		observability.DatabaseProbe("history_sql", db),
//		observability.RedisProbe("history_redis", client),
//	)
//	status := checker.Check(ctx)
package observability
