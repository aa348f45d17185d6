package pdf

import (
	"context"
)

// Renderer decodes the first page of a document into a raster and text runs
type Renderer struct {
	validator *Validator
	faces     *faceCache
}

// NewRenderer creates a renderer that rejects documents over maxFileSize bytes
func NewRenderer(maxFileSize int64) (*Renderer, error) {
	faces, err := newFaceCache()
	if err != nil {
		return nil, err
	}

	return &Renderer{
		validator: NewValidator(maxFileSize),
		faces:     faces,
	}, nil
}

// Render decodes page 1 of data at scale. Either the whole page is returned
// or an error; partial results are never published.
func (r *Renderer) Render(ctx context.Context, data []byte, scale float64) (*Page, error) {
	if err := ValidateScale(scale); err != nil {
		return nil, &Error{Op: "render", Err: err}
	}
	if err := r.validator.ValidateData(data); err != nil {
		return nil, err
	}

	size, err := readPageSize(data)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	glyphs, err := readGlyphs(data)
	if err != nil {
		return nil, err
	}
	runs := groupRuns(glyphs, size.Height)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raster := r.faces.rasterize(runs, size, scale)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &Page{
		Number:    FirstPage,
		Size:      size,
		Scale:     scale,
		Runs:      runs,
		TextLayer: BuildTextLayer(runs, scale),
		Raster:    raster,
	}, nil
}
