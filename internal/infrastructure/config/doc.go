// Package config provides 12-factor configuration management for BlurGuard.
//
// Values come from Default(), optionally overlaid by a YAML file, then by
// environment variables. Environment variables are namespaced with the
// BLURGUARD prefix and section name, and also accept the short tag name:
//
//	BLURGUARD_ANALYZER_THRESHOLD=0.8   or   THRESHOLD=0.8
//	BLURGUARD_SERVER_PORT=9000         or   PORT=9000
//
// Configuration Sections:
//   - Server: HTTP API listen address
//   - Logging: Log level and output format
//   - Analyzer: NSFW threshold, cache size, size and timeout limits
//   - Fetch: Outbound HTTP timeout, retries, rate limit, user agent
//   - Browser: Page script execution and resource loading
//   - Exclusion: Sites that are never scanned
//
// Example Usage:
//
//	cfg, err := config.LoadFile("blurguard.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
package config
