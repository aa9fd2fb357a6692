// Package app assembles the analysis API server: configuration, logging,
// tracing, metrics, the chi router and the HTTP server lifecycle.
//
// # Middleware
//
// Every request passes through, in order:
//
//	1. chi RequestID and the trace id bridge, so log lines carry the id
//	2. RealIP
//	3. the error middleware (access log and panic recovery)
//	4. OpenTelemetry instrumentation and the request counter
//	5. security headers
//
// Requests under /api/v1 are additionally rate limited when
// server.rate_limit.enabled is set.
//
// # Usage
//
//	application, err := app.NewApplication(cfg, paths,
//		app.WithLogger(logger),
//		app.WithMetrics(metrics),
//		app.WithOTel(providers),
//	)
//	if err != nil {
//		return err
//	}
//	return application.Run(ctx)
//
// # Graceful Shutdown
//
// Run returns after SIGINT, SIGTERM or context cancellation. In-flight
// requests are drained within server.shutdown_timeout, the metrics
// textfile is written and the tracer provider is flushed.
//
// The package never calls os.Exit; main decides the exit code.
package app
