package browser

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

// decodeBody converts body to UTF-8. The declared charset wins, then a
// <meta> declaration or BOM, then statistical detection.
func decodeBody(body []byte, contentType string) ([]byte, string, error) {
	label := ""
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		label = params["charset"]
	}
	if label == "" {
		if _, name, certain := charset.DetermineEncoding(body, contentType); certain {
			label = name
		}
	}
	if label == "" {
		label = metaCharset(body)
	}
	if label == "" {
		if res, err := chardet.NewHtmlDetector().DetectBest(body); err == nil && res.Confidence >= 50 {
			label = res.Charset
		}
	}
	if label == "" || strings.EqualFold(label, "utf-8") || strings.EqualFold(label, "utf8") {
		return body, "utf-8", nil
	}

	r, err := charset.NewReaderLabel(label, bytes.NewReader(body))
	if err != nil {
		// Unknown label: keep the bytes as they are.
		return body, "utf-8", nil
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode %s body: %w", label, err)
	}
	return out, strings.ToLower(label), nil
}

// metaCharset returns the charset named by a <meta> declaration
func metaCharset(body []byte) string {
	root, err := htmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	if n := htmlquery.FindOne(root, "//meta[@charset]"); n != nil {
		return strings.TrimSpace(htmlquery.SelectAttr(n, "charset"))
	}
	for _, n := range htmlquery.Find(root, "//meta[@http-equiv][@content]") {
		if !strings.EqualFold(htmlquery.SelectAttr(n, "http-equiv"), "content-type") {
			continue
		}
		if _, params, err := mime.ParseMediaType(htmlquery.SelectAttr(n, "content")); err == nil {
			return params["charset"]
		}
	}
	return ""
}

// inlineScripts returns the text of inline classic scripts in document order
func inlineScripts(body []byte) ([]string, error) {
	root, err := htmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var scripts []string
	for _, n := range htmlquery.Find(root, "//script[not(@src)]") {
		switch strings.ToLower(strings.TrimSpace(htmlquery.SelectAttr(n, "type"))) {
		case "", "text/javascript", "application/javascript":
		default:
			continue
		}
		if text := strings.TrimSpace(htmlquery.InnerText(n)); text != "" {
			scripts = append(scripts, text)
		}
	}
	return scripts, nil
}

// title returns the page title, if any
func title(body []byte) string {
	root, err := htmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	if n := htmlquery.FindOne(root, "//title"); n != nil {
		return strings.TrimSpace(htmlquery.InnerText(n))
	}
	return ""
}

// sanitizer keeps structure and media and drops scripts, styles, inline
// handlers and unsafe URLs
func sanitizer() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("div", "span", "section", "article", "figure", "figcaption", "picture", "main", "header", "footer", "nav", "aside")
	p.AllowAttrs("class", "id", "title").Globally()
	p.AllowDataAttributes()
	p.AllowImages()
	p.AllowDataURIImages()
	p.AllowRelativeURLs(true)
	p.AllowAttrs("srcset").OnElements("img")
	p.AllowElements("video", "canvas")
	p.AllowAttrs("width", "height").OnElements("video", "canvas")
	p.AllowAttrs("src", "poster").OnElements("video")
	return p
}
