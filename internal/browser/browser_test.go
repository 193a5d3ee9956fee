package browser

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/GriffinCanCode/blurguard/internal/infrastructure/httpclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 150, B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newHost(t *testing.T, opts Options) *Host {
	t.Helper()
	cfg := httpclient.DefaultConfig()
	cfg.RetryMax = 0
	cfg.Timeout = 2 * time.Second
	h, err := NewHost(httpclient.New(cfg, nil), opts, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func imageServer(t *testing.T) *httptest.Server {
	t.Helper()
	body := pngBytes(t, 80, 60)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDecodeBody(t *testing.T) {
	tests := []struct {
		name        string
		body        []byte
		contentType string
		want        string
		wantCharset string
	}{
		{
			name:        "utf-8 passthrough",
			body:        []byte("<p>café</p>"),
			contentType: "text/html; charset=utf-8",
			want:        "<p>café</p>",
			wantCharset: "utf-8",
		},
		{
			name:        "declared windows-1252",
			body:        []byte("<p>caf\xe9</p>"),
			contentType: "text/html; charset=windows-1252",
			want:        "<p>café</p>",
			wantCharset: "windows-1252",
		},
		{
			name:        "meta declaration",
			body:        []byte(`<html><head><meta charset="iso-8859-1"></head><body>caf` + "\xe9" + `</body></html>`),
			contentType: "text/html",
			want:        "café",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, enc, err := decodeBody(tt.body, tt.contentType)
			require.NoError(t, err)
			assert.Contains(t, string(out), tt.want)
			if tt.wantCharset != "" {
				assert.Equal(t, tt.wantCharset, enc)
			}
		})
	}
}

func TestInlineScripts(t *testing.T) {
	markup := []byte(`<html><head>
		<script>var a = 1;</script>
		<script src="/ext.js"></script>
		<script type="application/json">{"x": 1}</script>
		<script type="text/javascript">var b = 2;</script>
	</head><body></body></html>`)

	scripts, err := inlineScripts(markup)
	require.NoError(t, err)
	require.Len(t, scripts, 2)
	assert.Contains(t, scripts[0], "var a = 1")
	assert.Contains(t, scripts[1], "var b = 2")
}

func TestLoadSanitizes(t *testing.T) {
	h := newHost(t, DefaultOptions())

	page, err := h.Load("https://example.com/", []byte(`<html><head><title>Gallery</title></head><body>
		<div class="gallery" data-kind="photos">
			<img id="a" src="/a.png" alt="beach" width="300" height="200" onerror="alert(1)">
		</div>
		<script>document.body.appendChild(document.createElement("img"));</script>
		<a href="javascript:alert(1)">x</a>
	</body></html>`), "text/html; charset=utf-8")
	require.NoError(t, err)

	assert.Equal(t, "Gallery", page.Title())
	assert.Len(t, page.Scripts(), 1)

	doc := page.Document()
	img := doc.GetElementByID("a")
	require.NotNil(t, img)
	assert.Equal(t, "https://example.com/a.png", img.Src())
	assert.Equal(t, "beach", img.Alt())
	assert.Equal(t, 300, img.Width())
	assert.False(t, img.HasAttribute("onerror"))
	require.NotNil(t, img.Parent())
	assert.True(t, img.Parent().HasClass("gallery"))
	assert.Equal(t, "photos", img.Parent().Dataset()["kind"])

	assert.Empty(t, doc.QuerySelectorAll("script"))
	for _, a := range doc.QuerySelectorAll("a") {
		assert.NotContains(t, a.GetAttribute("href"), "javascript:")
	}
}

func TestOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			http.Redirect(w, r, "/home", http.StatusFound)
		case "/home":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(`<html><body><img src="pic.png"></body></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	h := newHost(t, DefaultOptions())
	page, err := h.Open(context.Background(), srv.URL+"/")
	require.NoError(t, err)

	assert.Equal(t, srv.URL+"/home", page.URL())
	img := page.Document().QuerySelector("img")
	require.NotNil(t, img)
	assert.Equal(t, srv.URL+"/pic.png", img.Src())

	_, err = h.Open(context.Background(), srv.URL+"/nope")
	assert.Error(t, err)
}

func TestLoadResources(t *testing.T) {
	same := imageServer(t)
	other := imageServer(t)

	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t, 10, 10))
	markup := fmt.Sprintf(`<html><body>
		<img id="same" src="/one.png">
		<img id="cross" src="%s/two.png">
		<img id="data" src="%s">
		<img id="broken" src="/missing.png">
		<img id="empty">
	</body></html>`, other.URL, dataURL)

	h := newHost(t, DefaultOptions())
	page, err := h.Load(same.URL+"/page", []byte(markup), "text/html")
	require.NoError(t, err)

	doc := page.Document()
	assert.False(t, doc.GetElementByID("same").Complete())

	stats, err := page.LoadResources(context.Background())
	require.NoError(t, err)
	assert.Equal(t, LoadStats{Requested: 4, Loaded: 3, CrossOrigin: 1, Failed: 1}, stats)

	tests := []struct {
		id        string
		wantClean bool
		wantImage bool
		wantWidth int
	}{
		{id: "same", wantClean: true, wantImage: true, wantWidth: 80},
		{id: "cross", wantClean: false, wantImage: true, wantWidth: 80},
		{id: "data", wantClean: true, wantImage: true, wantWidth: 10},
		{id: "broken", wantClean: true, wantImage: false, wantWidth: 0},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			el := doc.GetElementByID(tt.id)
			require.NotNil(t, el)
			assert.True(t, el.Complete())
			res := el.Resource()
			require.NotNil(t, res)
			assert.Equal(t, tt.wantClean, res.OriginClean)
			assert.Equal(t, tt.wantImage, res.Image != nil)
			assert.Equal(t, tt.wantWidth, el.Width())
		})
	}

	// Nothing left to load on a second pass.
	stats, err = page.LoadResources(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Requested)
}

func TestDecodeDataURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "base64", raw: "data:text/plain;base64,aGVsbG8=", want: "hello"},
		{name: "base64 unpadded", raw: "data:text/plain;base64,aGVsbG8", want: "hello"},
		{name: "percent encoded", raw: "data:text/plain,hello%20world", want: "hello world"},
		{name: "no comma", raw: "data:text/plain", wantErr: true},
		{name: "bad base64", raw: "data:;base64,!!!", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeDataURL(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, errBadDataURL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestRunScripts(t *testing.T) {
	h := newHost(t, DefaultOptions())
	page, err := h.Load("https://example.com/", []byte(`<html><body><div id="feed"></div>
		<script>
			var img = document.createElement("img");
			img.setAttribute("src", "/late.png");
			document.getElementById("feed").appendChild(img);
		</script>
		<script>
			setTimeout(function () {
				var second = document.createElement("img");
				document.body.appendChild(second);
			}, 10);
		</script>
	</body></html>`), "text/html")
	require.NoError(t, err)

	require.NoError(t, page.RunScripts(context.Background()))

	imgs := page.Document().QuerySelectorAll("img")
	require.Len(t, imgs, 2)
	assert.Equal(t, "https://example.com/late.png", imgs[0].Src())
}

func TestRunScriptsErrorKeepsPage(t *testing.T) {
	h := newHost(t, DefaultOptions())
	page, err := h.Load("https://example.com/", []byte(`<html><body>
		<script>throw new Error("boom");</script>
		<script>document.body.appendChild(document.createElement("img"));</script>
	</body></html>`), "text/html")
	require.NoError(t, err)

	err = page.RunScripts(context.Background())
	assert.Error(t, err)
	assert.Len(t, page.Document().QuerySelectorAll("img"), 1)
}

func TestScriptsDisabled(t *testing.T) {
	opts := DefaultOptions()
	opts.EnableScripts = false
	h := newHost(t, opts)

	page, err := h.Load("https://example.com/", []byte(`<body><script>document.body.appendChild(document.createElement("img"));</script></body>`), "text/html")
	require.NoError(t, err)
	require.NoError(t, page.RunScripts(context.Background()))
	assert.Empty(t, page.Document().QuerySelectorAll("img"))
}

func TestInjectClassifierOnce(t *testing.T) {
	h := newHost(t, DefaultOptions())
	page, err := h.Load("https://example.com/", []byte(`<body></body>`), "text/html")
	require.NoError(t, err)

	first, loaded := page.InjectClassifier()
	require.NotNil(t, first)
	assert.False(t, loaded)

	second, loaded := page.InjectClassifier()
	assert.True(t, loaded)
	assert.Same(t, first, second)
	assert.Same(t, first.Watcher, second.Watcher)
}
