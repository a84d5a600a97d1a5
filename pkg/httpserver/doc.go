// Package httpserver runs the notification service's HTTP listener.
//
// Run blocks until the context is cancelled, SIGINT or SIGTERM arrives, or
// Shutdown is called. Shutdown stops the listener and then releases every
// drain registered with WithDrain (the digest scheduler, the engine, the
// live push hub) in order, all within Config.ShutdownTimeout.
//
// HealthCheckHandler reports named readiness checks as JSON:
//
//	checks := []httpserver.Check{{Name: "postgres", Fn: pg.Healthcheck(pool)}}
//	health := httpserver.HealthCheckHandler(log, 2*time.Second, checks...)
//
// Usage:
//
//	srv := httpserver.New(cfg,
//	    httpserver.WithLogger(log),
//	    httpserver.WithDrain("engine", engine.Close),
//	)
//	if err := srv.Run(ctx, router); err != nil {
//	    log.Error("server stopped", logger.Error(err))
//	}
package httpserver
