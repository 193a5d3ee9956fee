package scanner

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/blurguard/internal/browser"
	"github.com/GriffinCanCode/blurguard/internal/exclusion"
	"github.com/GriffinCanCode/blurguard/internal/infrastructure/httpclient"
	"github.com/GriffinCanCode/blurguard/internal/watcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidPNG(t *testing.T, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// imageHandler serves skin-toned images for suspicious paths and blue ones
// otherwise
func imageHandler(t *testing.T) http.HandlerFunc {
	skin := solidPNG(t, color.RGBA{R: 200, G: 150, B: 120, A: 255})
	blue := solidPNG(t, color.RGBA{R: 10, G: 20, B: 240, A: 255})
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		if strings.Contains(r.URL.Path, "nude") || strings.Contains(r.URL.Path, "nsfw") || strings.Contains(r.URL.Path, "porn") {
			_, _ = w.Write(skin)
			return
		}
		_, _ = w.Write(blue)
	}
}

type fixture struct {
	page  *httptest.Server
	other *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{}
	f.other = httptest.NewServer(imageHandler(t))
	t.Cleanup(f.other.Close)

	images := imageHandler(t)
	f.page = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/img/") {
			images(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<html><head><title>Feed</title></head><body>
			<div class="post"><img src="/img/nude.png" alt="nude"></div>
			<div class="post"><img src="/img/sky.png" alt="mountains"></div>
			<img src="%s/img/porn.png" alt="sexy">
			<script>
				var img = document.createElement("img");
				img.setAttribute("src", "/img/nsfw-late.png");
				img.setAttribute("alt", "naked");
				document.body.appendChild(img);
			</script>
		</body></html>`, f.other.URL)
	}))
	t.Cleanup(f.page.Close)
	return f
}

func newScanner(t *testing.T, exclude exclusion.Checker) *Scanner {
	t.Helper()
	cfg := httpclient.DefaultConfig()
	cfg.RetryMax = 0
	cfg.Timeout = 2 * time.Second

	host, err := browser.NewHost(httpclient.New(cfg, nil), browser.DefaultOptions(), nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = host.Close() })

	s := New(host, exclude, nil, nil)
	s.SetSettleTimeout(10 * time.Second)
	return s
}

func flaggedSources(r *Report) []string {
	var out []string
	for _, f := range r.Flagged {
		out = append(out, f.Src[strings.LastIndex(f.Src, "/")+1:])
	}
	return out
}

func TestScan(t *testing.T) {
	f := newFixture(t)
	s := newScanner(t, nil)

	var (
		mu     sync.Mutex
		events []watcher.Annotation
	)
	report, err := s.Scan(context.Background(), f.page.URL+"/", Options{
		IncludeHTML: true,
		OnMark: func(a watcher.Annotation) {
			mu.Lock()
			events = append(events, a)
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(report.ID, "scan_"), report.ID)
	assert.False(t, report.Excluded)
	assert.Equal(t, "Feed", report.Title)
	assert.InDelta(t, 0.7, report.Threshold, 1e-9)
	assert.Equal(t, browser.LoadStats{Requested: 4, Loaded: 4, CrossOrigin: 1}, report.Resources)
	assert.Empty(t, report.ScriptError)

	assert.ElementsMatch(t, []string{"nude.png", "porn.png", "nsfw-late.png"}, flaggedSources(report))
	for _, finding := range report.Flagged {
		assert.Equal(t, "img", finding.Tag)
		assert.GreaterOrEqual(t, finding.Confidence, 0.7)
		assert.NotEmpty(t, finding.Reason)
	}

	mu.Lock()
	assert.Len(t, events, 3)
	mu.Unlock()

	assert.Equal(t, 3, strings.Count(report.HTML, watcher.ClassNSFW))
	assert.NotContains(t, report.HTML, "<script")
}

func TestScanThresholdOverride(t *testing.T) {
	f := newFixture(t)
	s := newScanner(t, nil)

	threshold := 0.95
	report, err := s.Scan(context.Background(), f.page.URL+"/", Options{Threshold: &threshold})
	require.NoError(t, err)

	// The cross-origin image tops out at 0.9 without pixels.
	assert.ElementsMatch(t, []string{"nude.png", "nsfw-late.png"}, flaggedSources(report))
	assert.InDelta(t, 0.95, report.Threshold, 1e-9)
	assert.Empty(t, report.HTML)
}

func TestScanExcluded(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer srv.Close()

	s := newScanner(t, exclusion.NewList([]string{"127.0.0.1"}, false))
	report, err := s.Scan(context.Background(), srv.URL+"/", Options{})
	require.NoError(t, err)

	assert.True(t, report.Excluded)
	assert.Empty(t, report.Flagged)
	assert.Zero(t, hits)
}

func TestScanFetchError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	s := newScanner(t, nil)
	_, err := s.Scan(context.Background(), srv.URL+"/", Options{})
	assert.ErrorIs(t, err, httpclient.ErrStatus)
}

func TestReportJSON(t *testing.T) {
	r := &Report{
		ID:      "scan-1",
		URL:     "https://example.com/",
		Flagged: []Finding{{Tag: "img", Src: "https://example.com/a.png", Confidence: 0.8, Reason: "x", Reasons: []string{"x"}}},
	}
	out, err := r.JSON()
	require.NoError(t, err)
	assert.Contains(t, string(out), `"id": "scan-1"`)
	assert.Contains(t, string(out), `"flagged": [`)
	assert.NotContains(t, string(out), `"html"`)
}
