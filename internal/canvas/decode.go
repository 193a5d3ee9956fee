package canvas

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"strings"

	_ "image/gif"  // GIF decoder
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"  // BMP decoder
	_ "golang.org/x/image/webp" // WEBP decoder
)

var ErrNotImage = errors.New("canvas: content is not a decodable image")

// Decode sniffs the payload and decodes it. The returned string is the
// detected MIME type.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty payload", ErrNotImage)
	}

	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, mtype.String(), fmt.Errorf("%w: detected %s", ErrNotImage, mtype.String())
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, mtype.String(), fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	return img, mtype.String(), nil
}
