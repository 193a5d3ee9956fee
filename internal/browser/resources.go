package browser

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/GriffinCanCode/blurguard/internal/canvas"
	"github.com/GriffinCanCode/blurguard/internal/dom"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var errBadDataURL = errors.New("malformed data URL")

// LoadStats summarizes one LoadResources pass
type LoadStats struct {
	Requested   int `json:"requested"`
	Loaded      int `json:"loaded"`
	CrossOrigin int `json:"crossOrigin"`
	Failed      int `json:"failed"`
}

// LoadResources fetches every image that has a source but no resource yet.
// Each finished load, failed or not, completes the element and queues a load
// record; records are flushed once all loads are done. Images from another
// origin (data: URLs excepted) are attached as not origin-clean.
func (p *Page) LoadResources(ctx context.Context) (LoadStats, error) {
	var pending []*dom.Element
	for _, el := range p.doc.QuerySelectorAll("img") {
		if el.Src() != "" && el.Resource() == nil {
			pending = append(pending, el)
		}
	}

	var loaded, crossOrigin, failed atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.host.opts.LoadConcurrency)

	origin := p.doc.Origin()
	for _, el := range pending {
		src := el.Src()
		g.Go(func() error {
			img, clean, err := p.host.loadImage(gctx, src, origin)
			if err != nil {
				failed.Add(1)
				p.host.metrics.RecordResourceLoad("error")
				p.host.log.Debug("Image load failed", zap.String("src", src), zap.Error(err))
				// A broken image is still complete.
				el.SetResource(&dom.Resource{URL: src, OriginClean: clean})
				return nil
			}
			loaded.Add(1)
			if clean {
				p.host.metrics.RecordResourceLoad("ok")
			} else {
				crossOrigin.Add(1)
				p.host.metrics.RecordResourceLoad("cross_origin")
			}
			el.SetResource(&dom.Resource{URL: src, Image: img, OriginClean: clean})
			return nil
		})
	}
	err := g.Wait()
	p.doc.Flush()

	stats := LoadStats{
		Requested:   len(pending),
		Loaded:      int(loaded.Load()),
		CrossOrigin: int(crossOrigin.Load()),
		Failed:      int(failed.Load()),
	}
	if err == nil {
		err = ctx.Err()
	}
	return stats, err
}

func (h *Host) loadImage(ctx context.Context, src, origin string) (image.Image, bool, error) {
	if strings.HasPrefix(strings.ToLower(src), "data:") {
		data, err := decodeDataURL(src)
		if err != nil {
			return nil, true, err
		}
		img, _, err := canvas.Decode(data)
		return img, true, err
	}

	clean := dom.Origin(src) == origin
	img, err := h.client.FetchImage(ctx, src)
	return img, clean, err
}

// decodeDataURL returns the payload of a data: URL
func decodeDataURL(raw string) ([]byte, error) {
	rest := raw[len("data:"):]
	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return nil, errBadDataURL
	}
	meta, payload := rest[:comma], rest[comma+1:]

	if strings.HasSuffix(strings.ToLower(meta), ";base64") {
		payload = strings.Map(func(r rune) rune {
			if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
				return -1
			}
			return r
		}, payload)
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			if data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "=")); err != nil {
				return nil, fmt.Errorf("%w: %v", errBadDataURL, err)
			}
		}
		return data, nil
	}

	data, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadDataURL, err)
	}
	return []byte(data), nil
}
