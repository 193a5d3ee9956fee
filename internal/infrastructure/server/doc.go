// Package server assembles the BlurGuard HTTP service.
//
// Lifecycle:
//  1. Load configuration (defaults, YAML file, environment)
//  2. Create metrics, tracer and the outbound HTTP client
//  3. Build the page host and scanner
//  4. Register middleware and routes
//  5. Serve until Shutdown
//
// Routes:
//   - GET  /                  banner
//   - GET  /health            liveness and circuit breaker state
//   - GET  /metrics           Prometheus exposition
//   - POST /v1/scan           scan a page, JSON report
//   - GET  /v1/scan/stream    scan a page, annotations over WebSocket
//
// Example Usage:
//
//	cfg, _ := config.LoadFile("blurguard.yaml")
//	srv, err := server.NewServer(cfg, logging.NewDefault())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go srv.Run()
//	defer srv.Shutdown(ctx)
package server
