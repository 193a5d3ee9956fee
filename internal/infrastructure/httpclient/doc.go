// Package httpclient fetches pages and image resources over resty with a
// retrying transport, a rate limiter and per-host circuit breakers. It also
// performs the anonymous CORS refetch used when a cross-origin image taints
// the sampling canvas.
package httpclient
