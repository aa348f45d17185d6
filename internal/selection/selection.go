// Package selection maps operator-drawn screen rectangles onto extracted text runs.
package selection

import (
	"errors"
	"math"

	"github.com/a3tai/mcp-template-mapper/internal/pdf"
)

// ErrInvalidScale is returned when a rectangle cannot be mapped to PDF space
var ErrInvalidScale = errors.New("selection scale must be greater than zero")

// Rect is a rectangle between two drag corners, in any order
type Rect struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Normalize returns the rectangle with X0 ≤ X1 and Y0 ≤ Y1
func (r Rect) Normalize() Rect {
	return Rect{
		X0: math.Min(r.X0, r.X1),
		Y0: math.Min(r.Y0, r.Y1),
		X1: math.Max(r.X0, r.X1),
		Y1: math.Max(r.Y0, r.Y1),
	}
}

// ToPDF converts a screen rectangle at scale into PDF space
func (r Rect) ToPDF(scale float64) (Rect, error) {
	if !(scale > 0) || math.IsInf(scale, 0) {
		return Rect{}, ErrInvalidScale
	}
	n := r.Normalize()
	return Rect{X0: n.X0 / scale, Y0: n.Y0 / scale, X1: n.X1 / scale, Y1: n.Y1 / scale}, nil
}

// Overlaps reports whether the run box overlaps the rectangle on both axes.
// Intervals are open, so touching edges do not count while any partial
// overlap selects the whole run.
func Overlaps(run pdf.TextRun, r Rect) bool {
	return run.X < r.X1 && run.X+run.Width > r.X0 &&
		run.Y < r.Y1 && run.Y+run.Height > r.Y0
}

// Resolve returns the indices of runs intersecting the screen rectangle, in
// extraction order
func Resolve(screen Rect, scale float64, runs []pdf.TextRun) ([]int, error) {
	rect, err := screen.ToPDF(scale)
	if err != nil {
		return nil, err
	}

	indices := make([]int, 0)
	for i, run := range runs {
		if Overlaps(run, rect) {
			indices = append(indices, i)
		}
	}
	return indices, nil
}

// Runs returns the runs at the given indices, skipping any out of range
func Runs(runs []pdf.TextRun, indices []int) []pdf.TextRun {
	selected := make([]pdf.TextRun, 0, len(indices))
	for _, i := range indices {
		if i >= 0 && i < len(runs) {
			selected = append(selected, runs[i])
		}
	}
	return selected
}
