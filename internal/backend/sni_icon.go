//go:build linux

package backend

import (
	"bytes"
	"fmt"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// sniPixmap is one icon frame in the (iiay) wire format: width, height,
// then ARGB32 samples with each pixel's bytes in network order.
type sniPixmap struct {
	Width  int32
	Height int32
	Pixels []byte
}

// pixmapsFromImageData decodes raster image bytes into the pixmap list
// hosts read from the IconPixmap property.
func pixmapsFromImageData(data []byte) ([]sniPixmap, error) {
	if len(data) == 0 {
		return nil, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode icon image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	pixels := make([]byte, 0, w*h*4)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			pixels = append(pixels, byte(a>>8), byte(r>>8), byte(g>>8), byte(b>>8))
		}
	}

	return []sniPixmap{{Width: int32(w), Height: int32(h), Pixels: pixels}}, nil
}
