package pdf

import (
	"image"
	"math"
)

// FirstPage is the only page templates are laid out on
const FirstPage = 1

// TextRun is one positioned span of text extracted from a page.
// Coordinates are PDF units at scale 1 with a top-left origin.
type TextRun struct {
	Text       string  `json:"text"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	FontSize   float64 `json:"fontSize"`
	FontFamily string  `json:"fontFamily"`
}

// Box returns the axis-aligned box covered by the run
func (r TextRun) Box() Box {
	return Box{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}

// Box is an axis-aligned rectangle in PDF space
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Right returns the x coordinate of the right edge
func (b Box) Right() float64 { return b.X + b.Width }

// Bottom returns the y coordinate of the bottom edge
func (b Box) Bottom() float64 { return b.Y + b.Height }

// Contains reports whether o lies entirely inside b
func (b Box) Contains(o Box) bool {
	return o.X >= b.X && o.Y >= b.Y && o.Right() <= b.Right() && o.Bottom() <= b.Bottom()
}

// UnionBox returns the minimal box covering every run.
// The second result is false when runs is empty.
func UnionBox(runs []TextRun) (Box, bool) {
	if len(runs) == 0 {
		return Box{}, false
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, run := range runs {
		minX = math.Min(minX, run.X)
		minY = math.Min(minY, run.Y)
		maxX = math.Max(maxX, run.X+run.Width)
		maxY = math.Max(maxY, run.Y+run.Height)
	}

	return Box{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}, true
}

// PageSize represents the dimensions of a page at scale 1
type PageSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Page is the result of rendering the first page of a document at a scale
type Page struct {
	Number    int           `json:"number"`
	Size      PageSize      `json:"size"`
	Scale     float64       `json:"scale"`
	Runs      []TextRun     `json:"runs"`
	TextLayer []OverlaySpan `json:"textLayer"`
	Raster    *image.RGBA   `json:"-"`
}

// OverlaySpan is one invisible, selectable span of the text layer drawn over the raster.
// Positions are screen pixels at the page scale.
type OverlaySpan struct {
	Index    int     `json:"index"`
	Text     string  `json:"text"`
	Left     float64 `json:"left"`
	Top      float64 `json:"top"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	FontSize float64 `json:"fontSize"`
	ScaleX   float64 `json:"scaleX"`
}

// Document is a PDF file loaded into memory
type Document struct {
	Name string `json:"name"`
	Path string `json:"path,omitempty"`
	Size int64  `json:"size"`
	Data []byte `json:"-"`
}
