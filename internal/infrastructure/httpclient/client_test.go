package httpclient

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GriffinCanCode/blurguard/internal/infrastructure/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 210, G: 160, B: 120, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testClient() *Client {
	cfg := DefaultConfig()
	cfg.RetryMax = 0
	cfg.Timeout = 2 * time.Second
	return New(cfg, nil)
}

func TestGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<html><body>hi</body></html>"))
		case "/moved":
			http.Redirect(w, r, "/page", http.StatusFound)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := testClient()

	resp, err := c.Get(context.Background(), srv.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.ContentType, "text/html")
	assert.Contains(t, string(resp.Body), "hi")

	resp, err = c.Get(context.Background(), srv.URL+"/moved")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/page", resp.URL)

	_, err = c.Get(context.Background(), srv.URL+"/missing")
	assert.ErrorIs(t, err, ErrStatus)

	_, err = c.Get(context.Background(), "ftp://example.com/x")
	assert.Error(t, err)
}

func TestFetchImageCORS(t *testing.T) {
	body := pngBytes(t, 8, 6)
	var sawCookie atomic.Bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Cookie") != "" {
			sawCookie.Store(true)
		}
		switch r.URL.Path {
		case "/star.png":
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case "/echo.png":
			w.Header().Set("Access-Control-Allow-Origin", r.Header.Get("Origin"))
		case "/other.png":
			w.Header().Set("Access-Control-Allow-Origin", "https://someone-else.example")
		case "/text":
			w.Header().Set("Access-Control-Allow-Origin", "*")
			_, _ = w.Write([]byte("plain text"))
			return
		}
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	c := testClient()
	const origin = "https://page.example"

	tests := []struct {
		name    string
		path    string
		wantErr bool
		denied  bool
	}{
		{name: "wildcard", path: "/star.png"},
		{name: "echoed origin", path: "/echo.png"},
		{name: "different origin", path: "/other.png", wantErr: true, denied: true},
		{name: "no header", path: "/plain.png", wantErr: true, denied: true},
		{name: "not an image", path: "/text", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := c.FetchImageCORS(context.Background(), srv.URL+tt.path, origin)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.denied, errors.Is(err, ErrCORSDenied))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, image.Rect(0, 0, 8, 6), img.Bounds())
		})
	}
	assert.False(t, sawCookie.Load())
}

func TestFetchImageCORSTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := testClient().FetchImageCORS(ctx, srv.URL+"/slow.png", "https://page.example")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestAllowsOrigin(t *testing.T) {
	assert.True(t, AllowsOrigin("*", "https://a.example"))
	assert.True(t, AllowsOrigin(" https://a.example ", "https://a.example"))
	assert.False(t, AllowsOrigin("", "https://a.example"))
	assert.False(t, AllowsOrigin("https://b.example", "https://a.example"))
}

func TestBreakerOpensPerHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := testClient()
	for i := 0; i < 5; i++ {
		_, err := c.Get(context.Background(), srv.URL)
		assert.Error(t, err)
	}

	_, err := c.Get(context.Background(), srv.URL)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)

	u, _ := url.Parse(srv.URL)
	assert.Equal(t, resilience.StateOpen, c.BreakerStates()[u.Host])
}

func TestRateLimit(t *testing.T) {
	c := testClient()
	c.SetRateLimit(1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	_, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = c.Get(ctx, srv.URL)
	assert.Error(t, err)
}
