package canvas

import (
	"errors"
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

var (
	// ErrSecurity is returned when reading back pixels from a tainted canvas.
	ErrSecurity = errors.New("canvas: tainted by cross-origin data")
	// ErrInvalidSize is returned for a canvas with a non-positive side.
	ErrInvalidSize = errors.New("canvas: width and height must be positive")
)

// ImageData is non-premultiplied RGBA pixel data, four bytes per pixel
type ImageData struct {
	Width  int
	Height int
	Data   []byte
}

// Pixels returns the number of pixels in the sample
func (d *ImageData) Pixels() int {
	return len(d.Data) / 4
}

// Canvas is an off-screen raster surface. Drawing an image that is not
// origin-clean taints it, after which pixel read-back fails with ErrSecurity.
type Canvas struct {
	surface     *image.NRGBA
	originClean bool
}

// New allocates a width x height canvas
func New(width, height int) (*Canvas, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	return &Canvas{
		surface:     image.NewNRGBA(image.Rect(0, 0, width, height)),
		originClean: true,
	}, nil
}

// Width returns the canvas width
func (c *Canvas) Width() int {
	return c.surface.Rect.Dx()
}

// Height returns the canvas height
func (c *Canvas) Height() int {
	return c.surface.Rect.Dy()
}

// OriginClean reports whether pixels can still be read back
func (c *Canvas) OriginClean() bool {
	return c.originClean
}

// DrawImage scales src onto the whole canvas
func (c *Canvas) DrawImage(src image.Image, originClean bool) {
	if src == nil {
		return
	}
	if !originClean {
		c.originClean = false
	}
	draw.ApproxBiLinear.Scale(c.surface, c.surface.Rect, src, src.Bounds(), draw.Over, nil)
}

// GetImageData copies the canvas pixels
func (c *Canvas) GetImageData() (*ImageData, error) {
	if !c.originClean {
		return nil, ErrSecurity
	}
	data := make([]byte, len(c.surface.Pix))
	copy(data, c.surface.Pix)
	return &ImageData{
		Width:  c.Width(),
		Height: c.Height(),
		Data:   data,
	}, nil
}
