/*
Package monitoring provides Prometheus metrics for the classifier pipeline.

# Overview

Metrics live on a private registry so several collectors can coexist in one
process (tests create many). The registry is exposed over HTTP via Handler.

# Features

- Analyzer outcomes, latency, cache hits/misses/evictions, CORS refetches
- Watcher throughput, NSFW annotations, running watchers
- Page host resource loads and scans
- HTTP request metrics through a Gin middleware

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

A nil *Metrics is accepted everywhere and records nothing.
*/
package monitoring
