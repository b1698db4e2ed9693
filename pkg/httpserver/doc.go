// Package httpserver wraps net/http with context-driven graceful shutdown,
// configurable timeouts and health-check handlers.
//
// Run blocks until its context is cancelled (typically one built with
// signal.NotifyContext) or Shutdown is called, then drains in-flight
// requests within the configured shutdown timeout:
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, router); err != nil {
//		log.Error("server stopped", logger.Error(err))
//	}
//
// LivenessHandler and HealthCheckHandler back /healthz and /readyz; the
// latter runs named Check probes and reports which ones failed.
//
// Listen errors are wrapped with ErrStart and shutdown errors with
// ErrShutdown.
package httpserver
