// Package template defines field mappings, the ordered mapping store and the
// payloads exchanged with the templates API.
package template

import (
	"fmt"
	"math"

	"github.com/a3tai/mcp-template-mapper/internal/pdf"
)

// Align is a horizontal alignment hint for text filled into a mapping box
type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// Valid reports whether a is one of the known alignments
func (a Align) Valid() bool {
	switch a {
	case AlignLeft, AlignCenter, AlignRight:
		return true
	}
	return false
}

// FieldMapping anchors a field formula to a rectangle on page 1, in PDF-space
// units at scale 1 with a top-left origin.
type FieldMapping struct {
	ID         string  `json:"id"`
	FieldName  string  `json:"fieldName"`
	FieldLabel string  `json:"fieldLabel"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Page       int     `json:"page"`
	FontSize   float64 `json:"fontSize,omitempty"`
	FontFamily string  `json:"fontFamily,omitempty"`
	Text       string  `json:"text,omitempty"`
	Align      Align   `json:"align,omitempty"`
	WordWrap   *bool   `json:"wordWrap,omitempty"`
}

// Box returns the mapping rectangle
func (m FieldMapping) Box() pdf.Box {
	return pdf.Box{X: m.X, Y: m.Y, Width: m.Width, Height: m.Height}
}

// Validate checks the structural constraints of a mapping
func (m FieldMapping) Validate() error {
	if m.ID == "" {
		return &ValidationError{Field: "id", Message: "mapping id is required"}
	}
	if m.FieldName == "" {
		return &ValidationError{Field: "fieldName", Message: "field name is required"}
	}
	coords := []struct {
		name string
		v    float64
	}{{"x", m.X}, {"y", m.Y}, {"width", m.Width}, {"height", m.Height}}
	for _, c := range coords {
		if math.IsNaN(c.v) || math.IsInf(c.v, 0) {
			return &ValidationError{Field: c.name, Message: "must be a finite number"}
		}
	}
	if m.Width < 0 || m.Height < 0 {
		return &ValidationError{Field: "width", Message: "box dimensions must not be negative"}
	}
	if m.Page != pdf.FirstPage {
		return &ValidationError{Field: "page", Message: fmt.Sprintf("only page %d is supported", pdf.FirstPage)}
	}
	if m.Align != "" && !m.Align.Valid() {
		return &ValidationError{Field: "align", Message: fmt.Sprintf("unknown alignment %q", m.Align)}
	}
	return nil
}

// Patch is a partial update to a mapping. Nil fields are left unchanged.
type Patch struct {
	FieldName  *string  `json:"fieldName,omitempty"`
	FieldLabel *string  `json:"fieldLabel,omitempty"`
	X          *float64 `json:"x,omitempty"`
	Y          *float64 `json:"y,omitempty"`
	Width      *float64 `json:"width,omitempty"`
	Height     *float64 `json:"height,omitempty"`
	FontSize   *float64 `json:"fontSize,omitempty"`
	FontFamily *string  `json:"fontFamily,omitempty"`
	Text       *string  `json:"text,omitempty"`
	Align      *Align   `json:"align,omitempty"`
	WordWrap   *bool    `json:"wordWrap,omitempty"`
}

// Empty reports whether the patch changes nothing
func (p Patch) Empty() bool {
	return p == Patch{}
}

// Apply returns m with the patch applied
func (p Patch) Apply(m FieldMapping) FieldMapping {
	if p.FieldName != nil {
		m.FieldName = *p.FieldName
	}
	if p.FieldLabel != nil {
		m.FieldLabel = *p.FieldLabel
	}
	if p.X != nil {
		m.X = *p.X
	}
	if p.Y != nil {
		m.Y = *p.Y
	}
	if p.Width != nil {
		m.Width = *p.Width
	}
	if p.Height != nil {
		m.Height = *p.Height
	}
	if p.FontSize != nil {
		m.FontSize = *p.FontSize
	}
	if p.FontFamily != nil {
		m.FontFamily = *p.FontFamily
	}
	if p.Text != nil {
		m.Text = *p.Text
	}
	if p.Align != nil {
		m.Align = *p.Align
	}
	if p.WordWrap != nil {
		wrap := *p.WordWrap
		m.WordWrap = &wrap
	}
	return m
}
