package httpclient

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/blurguard/internal/canvas"
	"github.com/GriffinCanCode/blurguard/internal/infrastructure/logging"
	"github.com/GriffinCanCode/blurguard/internal/infrastructure/resilience"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	ErrStatus     = errors.New("unexpected response status")
	ErrCORSDenied = errors.New("response not shared with requesting origin")
)

// Config defines client behavior
type Config struct {
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	RateLimit    float64 // requests per second, <= 0 is unlimited
	UserAgent    string
}

// DefaultConfig returns settings suitable for fetching third-party pages
func DefaultConfig() Config {
	return Config{
		Timeout:      15 * time.Second,
		RetryMax:     2,
		RetryWaitMin: 250 * time.Millisecond,
		RetryWaitMax: 2 * time.Second,
		UserAgent:    "Mozilla/5.0 (BlurGuard/1.0)",
	}
}

// Client wraps resty with rate limiting and per-host circuit breakers
type Client struct {
	resty    *resty.Client
	breakers *resilience.Group
	log      *logging.Logger

	mu      sync.RWMutex
	limiter *rate.Limiter
}

// Response is a fully read HTTP response
type Response struct {
	URL         string // final URL after redirects
	StatusCode  int
	ContentType string
	Header      http.Header
	Body        []byte
}

// New creates a client. Retries happen in the retryablehttp transport;
// resty's own retry loop stays off.
func New(cfg Config, log *logging.Logger) *Client {
	log = log.OrNop().Component("httpclient")

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.RetryMax
	if cfg.RetryWaitMin > 0 {
		retryClient.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		retryClient.RetryWaitMax = cfg.RetryWaitMax
	}
	retryClient.Logger = leveledLogger{log.Sugar()}

	restyClient := resty.NewWithClient(retryClient.StandardClient())
	restyClient.
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent)

	c := &Client{
		resty: restyClient,
		breakers: resilience.NewGroup(resilience.Settings{
			FailureThreshold: 5,
			Cooldown:         30 * time.Second,
			OnStateChange: func(host string, from, to resilience.State) {
				log.Warn("Circuit breaker state changed",
					zap.String("host", host),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		}),
		log: log,
	}
	c.SetRateLimit(cfg.RateLimit)
	return c
}

// SetRateLimit configures rate limiting (requests per second)
func (c *Client) SetRateLimit(rps float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rps <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
	} else {
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}
}

// BreakerStates reports the circuit state per upstream host
func (c *Client) BreakerStates() map[string]resilience.State {
	return c.breakers.States()
}

// Get fetches target and returns the body for any 2xx response
func (c *Client) Get(ctx context.Context, target string) (*Response, error) {
	return c.do(ctx, target, nil)
}

// FetchImage downloads and decodes an image
func (c *Client) FetchImage(ctx context.Context, target string) (image.Image, error) {
	resp, err := c.Get(ctx, target)
	if err != nil {
		return nil, err
	}
	img, _, err := canvas.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", target, err)
	}
	return img, nil
}

// FetchImageCORS re-requests an image in anonymous CORS mode on behalf of
// origin: an Origin header is sent, credentials are not. The image is
// returned only if the response shares itself with origin via
// Access-Control-Allow-Origin.
func (c *Client) FetchImageCORS(ctx context.Context, target, origin string) (image.Image, error) {
	resp, err := c.do(ctx, target, func(r *resty.Request) {
		r.SetHeader("Origin", origin)
		r.Header.Del("Cookie")
		r.Header.Del("Authorization")
	})
	if err != nil {
		return nil, err
	}

	if !AllowsOrigin(resp.Header.Get("Access-Control-Allow-Origin"), origin) {
		return nil, fmt.Errorf("%w: %s", ErrCORSDenied, target)
	}

	img, _, err := canvas.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", target, err)
	}
	return img, nil
}

// AllowsOrigin reports whether an Access-Control-Allow-Origin value grants
// anonymous access to origin
func AllowsOrigin(allow, origin string) bool {
	allow = strings.TrimSpace(allow)
	if allow == "" {
		return false
	}
	return allow == "*" || strings.EqualFold(allow, origin)
}

func (c *Client) do(ctx context.Context, target string, prepare func(*resty.Request)) (*Response, error) {
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid fetch URL %q", target)
	}

	c.mu.RLock()
	limiter := c.limiter
	c.mu.RUnlock()
	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	resp, err := resilience.Do(c.breakers.Get(u.Host), func() (*resty.Response, error) {
		req := c.resty.R().SetContext(ctx)
		if prepare != nil {
			prepare(req)
		}
		resp, err := req.Get(target)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return resp, fmt.Errorf("%w: %s", ErrStatus, resp.Status())
		}
		return resp, nil
	})
	if err != nil {
		c.log.Debug("Fetch failed", zap.String("url", target), zap.Error(err))
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch %s: %w: %s", target, ErrStatus, resp.Status())
	}

	final := target
	if raw := resp.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		final = raw.Request.URL.String()
	}
	return &Response{
		URL:         final,
		StatusCode:  resp.StatusCode(),
		ContentType: resp.Header().Get("Content-Type"),
		Header:      resp.Header(),
		Body:        resp.Body(),
	}, nil
}
