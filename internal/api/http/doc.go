// Package http provides the REST handlers of the scan API.
//
// Routes:
//   - GET  /         service banner
//   - GET  /health   liveness and per-host circuit breaker state
//   - POST /v1/scan  {"url": "...", "threshold": 0.7, "includeHtml": false}
//
// Scan responses are the scanner.Report encoded with sonic. Upstream failures
// map to 502, open circuits to 503 and scan timeouts to 504.
package http
