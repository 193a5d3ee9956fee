package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/GriffinCanCode/blurguard/internal/infrastructure/httpclient"
	"github.com/GriffinCanCode/blurguard/internal/infrastructure/logging"
	"github.com/GriffinCanCode/blurguard/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/blurguard/internal/scanner"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Version is reported by the root endpoint
const Version = "1.0.0"

// ScanRequest is the body of POST /v1/scan
type ScanRequest struct {
	URL         string   `json:"url"`
	Threshold   *float64 `json:"threshold,omitempty"`
	IncludeHTML bool     `json:"includeHtml"`
}

// Handlers contains all HTTP handlers
type Handlers struct {
	scanner *scanner.Scanner
	client  *httpclient.Client
	timeout time.Duration
	log     *logging.Logger
}

// NewHandlers creates a new handler set. timeout bounds one scan.
func NewHandlers(s *scanner.Scanner, client *httpclient.Client, timeout time.Duration, log *logging.Logger) *Handlers {
	return &Handlers{
		scanner: s,
		client:  client,
		timeout: timeout,
		log:     log.OrNop().Component("api"),
	}
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "blurguard",
		"version": Version,
	})
}

// Health reports liveness and the state of upstream circuit breakers
func (h *Handlers) Health(c *gin.Context) {
	breakers := gin.H{}
	for host, state := range h.client.BreakerStates() {
		breakers[host] = state.String()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"breakers": breakers,
	})
}

// Scan classifies the images of one page and returns the report
func (h *Handlers) Scan(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		respondError(c, http.StatusBadRequest, "failed to read request body")
		return
	}
	var req ScanRequest
	if err := sonic.Unmarshal(raw, &req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := ValidatePageURL(req.URL); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := h.scanContext(c.Request.Context())
	defer cancel()

	report, err := h.scanner.Scan(ctx, req.URL, scanner.Options{
		Threshold:   req.Threshold,
		IncludeHTML: req.IncludeHTML,
	})
	if err != nil {
		h.log.Warn("Scan failed", zap.String("url", req.URL), zap.Error(err))
		respondError(c, StatusFor(err), err.Error())
		return
	}

	body, err := sonic.Marshal(report)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to encode report")
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

func (h *Handlers) scanContext(parent context.Context) (context.Context, context.CancelFunc) {
	if h.timeout > 0 {
		return context.WithTimeout(parent, h.timeout)
	}
	return context.WithCancel(parent)
}

// ValidatePageURL accepts absolute http(s) URLs only
func ValidatePageURL(raw string) error {
	if raw == "" {
		return errors.New("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New("url must be an absolute http(s) URL")
	}
	return nil
}

// StatusFor maps scan errors to HTTP status codes
func StatusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func respondError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
