package canvas

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestCanvasReadBack(t *testing.T) {
	c, err := New(32, 16)
	require.NoError(t, err)

	c.DrawImage(solid(640, 480, color.RGBA{R: 200, G: 150, B: 120, A: 255}), true)

	data, err := c.GetImageData()
	require.NoError(t, err)
	assert.Equal(t, 32, data.Width)
	assert.Equal(t, 16, data.Height)
	assert.Equal(t, 32*16, data.Pixels())
	assert.Equal(t, []byte{200, 150, 120, 255}, data.Data[:4])
	assert.Equal(t, []byte{200, 150, 120, 255}, data.Data[len(data.Data)-4:])
}

func TestCanvasTaint(t *testing.T) {
	c, err := New(10, 10)
	require.NoError(t, err)

	c.DrawImage(solid(10, 10, color.White), true)
	assert.True(t, c.OriginClean())

	c.DrawImage(solid(10, 10, color.Black), false)
	assert.False(t, c.OriginClean())

	// Clean draws never untaint.
	c.DrawImage(solid(10, 10, color.White), true)
	_, err = c.GetImageData()
	assert.ErrorIs(t, err, ErrSecurity)
}

func TestCanvasInvalidSize(t *testing.T) {
	_, err := New(0, 10)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestDecode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(4, 3, color.White)))

	img, mime, err := Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, image.Rect(0, 0, 4, 3), img.Bounds())

	_, mime, err = Decode([]byte("<html><body>not an image</body></html>"))
	assert.ErrorIs(t, err, ErrNotImage)
	assert.Contains(t, mime, "text/html")

	_, _, err = Decode(nil)
	assert.ErrorIs(t, err, ErrNotImage)
}
