// Package imaging produces scaled variants of rendered page images.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"

	// Registered for image.Decode.
	_ "image/gif"
	_ "image/jpeg"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"

	"github.com/dharsanguruparan/ShelfView/internal/model"
)

// ContentType is the media type of every image produced by Rescale.
const ContentType = "image/png"

// Rescale decodes a page image and resamples it by scale, returning PNG bytes.
func Rescale(data []byte, scale model.Scale) ([]byte, error) {
	if !scale.Valid() {
		return nil, fmt.Errorf("unsupported scale %s", scale)
	}
	if mtype := mimetype.Detect(data); !strings.HasPrefix(mtype.String(), "image/") {
		return nil, fmt.Errorf("source is %s, not an image", mtype.String())
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode page image: %w", err)
	}

	bounds := src.Bounds()
	width := scaled(bounds.Dx(), scale)
	height := scaled(bounds.Dy(), scale)
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode page image: %w", err)
	}
	return buf.Bytes(), nil
}

func scaled(n int, scale model.Scale) int {
	v := int(float64(n)*float64(scale) + 0.5)
	if v < 1 {
		return 1
	}
	return v
}
