package pdf

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// minFaceSize keeps tiny runs drawable at low zoom levels
const minFaceSize = 1.0

// faceCache hands out font faces keyed by pixel size.
// Faces are not safe for concurrent use, so drawing holds the lock.
type faceCache struct {
	mu    sync.Mutex
	font  *sfnt.Font
	faces map[int]font.Face
}

func newFaceCache() (*faceCache, error) {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse raster font: %w", err)
	}
	return &faceCache{
		font:  f,
		faces: make(map[int]font.Face),
	}, nil
}

// face returns a face for size, quantized to quarter pixels. Callers hold mu.
func (c *faceCache) face(size float64) (font.Face, error) {
	size = math.Max(size, minFaceSize)
	key := int(math.Round(size * 4))
	if face, ok := c.faces[key]; ok {
		return face, nil
	}

	face, err := opentype.NewFace(c.font, &opentype.FaceOptions{
		Size:    float64(key) / 4,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, err
	}
	c.faces[key] = face
	return face, nil
}

// rasterize draws the text runs of a page onto a white surface of
// scale × page size pixels
func (c *faceCache) rasterize(runs []TextRun, size PageSize, scale float64) *image.RGBA {
	width := int(math.Ceil(size.Width * scale))
	height := int(math.Ceil(size.Height * scale))
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, run := range runs {
		face, err := c.face(run.FontSize * scale)
		if err != nil {
			continue
		}

		baseline := (run.Y + run.Height) * scale
		d := &font.Drawer{
			Dst:  img,
			Src:  image.Black,
			Face: face,
			Dot: fixed.Point26_6{
				X: fixed.Int26_6(run.X * scale * 64),
				Y: fixed.Int26_6(baseline * 64),
			},
		}
		d.DrawString(run.Text)
	}

	return img
}

// EncodePNG encodes a rendered page raster as PNG
func EncodePNG(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("no raster to encode")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode raster: %w", err)
	}
	return buf.Bytes(), nil
}
