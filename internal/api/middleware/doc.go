// Package middleware provides the HTTP middleware of the scan API.
//
//   - CORS: cross-origin access for browser clients, via gin-contrib/cors
//   - RateLimit: per-IP token buckets with idle client eviction
//   - GlobalRateLimit: one bucket shared by every client
//   - BodyLimit: request body cap
//
// Example Usage:
//
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
