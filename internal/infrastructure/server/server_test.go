package server

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/GriffinCanCode/blurguard/internal/api/ws"
	"github.com/GriffinCanCode/blurguard/internal/infrastructure/config"
	"github.com/GriffinCanCode/blurguard/internal/scanner"
	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skinPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 120, 120))
	for y := 0; y < 120; y++ {
		for x := 0; x < 120; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 200, G: 150, B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func pageServer(t *testing.T) *httptest.Server {
	t.Helper()
	pic := skinPNG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/nude.png" {
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(pic)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, `<html><body><div class="adult"><img src="/nude.png" alt="nude"></div></body></html>`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Logging.Development = true
	cfg.RateLimit.Enabled = false
	cfg.Fetch.RetryMax = 0
	cfg.Server.ScanTimeout = 10 * time.Second

	srv, err := NewServer(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func TestHealthAndMetrics(t *testing.T) {
	srv := testServer(t)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
	assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))

	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "blurguard_http_requests_total")
}

func TestScanEndpoint(t *testing.T) {
	page := pageServer(t)
	srv := testServer(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantFlags  int
	}{
		{
			name:       "flags the page image",
			body:       `{"url": "` + page.URL + `/"}`,
			wantStatus: http.StatusOK,
			wantFlags:  1,
		},
		{
			name:       "maximum threshold still flags full confidence",
			body:       `{"url": "` + page.URL + `/", "threshold": 1}`,
			wantStatus: http.StatusOK,
			wantFlags:  1,
		},
		{
			name:       "missing url",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "relative url",
			body:       `{"url": "/page"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad json",
			body:       `{"url":`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/scan", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, req)

			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus != http.StatusOK {
				return
			}
			var report scanner.Report
			require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &report))
			assert.Len(t, report.Flagged, tt.wantFlags)
			assert.NotEmpty(t, report.ID)
		})
	}
}

func TestScanEndpointUpstreamError(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	defer upstream.Close()
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/scan", strings.NewReader(`{"url": "`+upstream.URL+`/"}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestScanStream(t *testing.T) {
	page := pageServer(t)
	api := httptest.NewServer(testServer(t).Handler())
	defer api.Close()

	wsURL := "ws" + strings.TrimPrefix(api.URL, "http") + "/v1/scan/stream?url=" + page.URL + "/"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var types []string
	var final ws.Message
	_ = conn.SetReadDeadline(time.Now().Add(15 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var msg ws.Message
		require.NoError(t, sonic.Unmarshal(data, &msg))
		types = append(types, msg.Type)
		if msg.Type == "complete" || msg.Type == "error" {
			final = msg
			break
		}
	}

	assert.Equal(t, []string{"mark", "complete"}, types)
	require.NotNil(t, final.Report)
	assert.Len(t, final.Report.Flagged, 1)
}
