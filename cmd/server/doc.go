// Package main is the entry point for the BlurGuard scan service.
//
// The server loads pages on request, classifies their images and reports
// which ones a client should blur.
//
// Configuration:
//   - Defaults
//   - YAML file (-config)
//   - Environment variables with the BLURGUARD_ prefix
//   - CLI flags (override everything)
//
// Usage:
//
//	# Production mode
//	./server -config blurguard.yaml -port 8080
//
//	# Development mode (console logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
