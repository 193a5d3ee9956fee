package analyzer

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/GriffinCanCode/blurguard/internal/canvas"
	"github.com/GriffinCanCode/blurguard/internal/dom"
	"go.uber.org/zap"
)

var errNoImageData = errors.New("no decoded image data")

// ImageFetcher re-requests an image in anonymous CORS mode on behalf of origin
type ImageFetcher interface {
	FetchImageCORS(ctx context.Context, url, origin string) (image.Image, error)
}

// pixelSample is a down-scaled RGBA render. data is nil when the image could
// not be read back because of cross-origin taint.
type pixelSample struct {
	data   *canvas.ImageData
	width  int
	height int
}

func (s *pixelSample) crossOrigin() bool {
	return s.data == nil
}

// extract renders el onto a fresh canvas no larger than maxCanvasSide per
// side and reads the pixels back. A tainted read-back falls through to one
// anonymous CORS refetch, then to a cross-origin sample.
func (a *Analyzer) extract(ctx context.Context, el *dom.Element, w, h int) (*pixelSample, error) {
	res := el.Resource()
	if res == nil || res.Image == nil {
		return nil, errNoImageData
	}

	data, err := a.render(res.Image, w, h, res.OriginClean)
	if err == nil {
		return &pixelSample{data: data, width: data.Width, height: data.Height}, nil
	}
	if !errors.Is(err, canvas.ErrSecurity) {
		return nil, err
	}

	if data := a.retryCORS(ctx, el); data != nil {
		return &pixelSample{data: data, width: data.Width, height: data.Height}, nil
	}
	return &pixelSample{width: w, height: h}, nil
}

func (a *Analyzer) render(img image.Image, w, h int, originClean bool) (*canvas.ImageData, error) {
	c, err := canvas.New(min(w, a.maxCanvasSide), min(h, a.maxCanvasSide))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errNoImageData, err)
	}
	c.DrawImage(img, originClean)
	return c.GetImageData()
}

func (a *Analyzer) retryCORS(ctx context.Context, el *dom.Element) *canvas.ImageData {
	src := sourceOf(el)
	if a.fetcher == nil || src == "" {
		a.metrics.RecordCORSRetry("skipped")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, a.corsTimeout)
	defer cancel()

	img, err := a.fetcher.FetchImageCORS(ctx, src, el.Document().Origin())
	if err != nil {
		result := "error"
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			result = "timeout"
		}
		a.metrics.RecordCORSRetry(result)
		a.log.Debug("CORS retry failed, using cross-origin heuristics",
			zap.String("src", truncate(src, 80)),
			zap.Error(err))
		return nil
	}

	b := img.Bounds()
	data, err := a.render(img, b.Dx(), b.Dy(), true)
	if err != nil {
		a.metrics.RecordCORSRetry("error")
		return nil
	}
	a.metrics.RecordCORSRetry("ok")
	return data
}

func sourceOf(el *dom.Element) string {
	if src := el.Src(); src != "" {
		return src
	}
	return el.CurrentSrc()
}
