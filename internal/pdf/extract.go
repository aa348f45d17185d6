package pdf

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/font"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// DefaultFontFamily is reported for runs whose font has no base name
const DefaultFontFamily = "sans-serif"

// Run grouping tolerances, as fractions of the font size
const (
	baselineTolerance = 0.5
	kerningTolerance  = 0.25
	maxGlyphGap       = 1.0
	wordGap           = 0.15
	sizeTolerance     = 1.0
)

// readPageSize returns the size of the first page using pdfcpu
func readPageSize(data []byte) (PageSize, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	dims, err := api.PageDims(bytes.NewReader(data), conf)
	if err != nil {
		return PageSize{}, &Error{Op: "page_dims", Err: err}
	}
	if len(dims) == 0 {
		return PageSize{}, &Error{Op: "page_dims", Err: ErrNoPages}
	}

	return PageSize{Width: dims[0].Width, Height: dims[0].Height}, nil
}

// readGlyphs decodes the content stream of the first page into positioned glyphs
func readGlyphs(data []byte) (glyphs []pdf.Text, err error) {
	// ledongthuc/pdf panics on some malformed content streams
	defer func() {
		if r := recover(); r != nil {
			glyphs = nil
			err = &Error{Op: "extract_text", Err: fmt.Errorf("malformed content stream: %v", r)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &Error{Op: "open", Err: err}
	}

	if reader.NumPage() < FirstPage {
		return nil, &Error{Op: "open", Err: ErrNoPages}
	}

	page := reader.Page(FirstPage)
	if page.V.IsNull() {
		return nil, &Error{Op: "open", Err: ErrNoPages}
	}

	return page.Content().Text, nil
}

// glyph is a decoded glyph placed on the page with its resolved advance
type glyph struct {
	pdf.Text
	x       float64
	size    float64
	advance float64
}

// placeGlyphs resolves glyph positions and advances. The decoder reports a
// zero width for fonts without a Widths array and never moves the pen for
// them, so consecutive zero-width glyphs on one line are laid out from a
// synthetic pen that follows the font metrics.
func placeGlyphs(texts []pdf.Text) []glyph {
	placed := make([]glyph, 0, len(texts))
	var prev pdf.Text
	var pen float64
	hasPrev := false

	for _, t := range texts {
		size := math.Abs(t.FontSize)
		if t.S == "" || size == 0 {
			continue
		}

		x := t.X
		if hasPrev && t.W == 0 && prev.W == 0 && t.Font == prev.Font &&
			math.Abs(t.Y-prev.Y) <= size*baselineTolerance && math.Abs(t.X-prev.X) <= size {
			// Only kerning and character spacing moved the decoder's pen
			x = pen + (t.X - prev.X)
		}

		advance := glyphAdvance(t, size)
		placed = append(placed, glyph{Text: t, x: x, size: size, advance: advance})
		pen = x + advance
		prev = t
		hasPrev = true
	}

	return placed
}

// runBuilder accumulates consecutive glyphs that belong to the same run
type runBuilder struct {
	text     strings.Builder
	x        float64
	baseline float64
	right    float64
	inkRight float64
	size     float64
	font     string
}

func newRunBuilder(g glyph) *runBuilder {
	b := &runBuilder{
		x:        g.x,
		baseline: g.Y,
		right:    g.x,
		size:     g.size,
		font:     g.Font,
	}
	b.add(g)
	return b
}

func (b *runBuilder) accepts(g glyph) bool {
	if g.Font != b.font || math.Abs(g.size-b.size) > sizeTolerance {
		return false
	}
	if math.Abs(g.Y-b.baseline) > b.size*baselineTolerance {
		return false
	}
	gap := g.x - b.right
	return gap >= -b.size*kerningTolerance && gap <= b.size*maxGlyphGap
}

func (b *runBuilder) add(g glyph) {
	blank := strings.TrimSpace(g.S) == ""
	if blank {
		// Spaces and the line breaks emitted after TJ collapse to one space
		if b.text.Len() > 0 && !strings.HasSuffix(b.text.String(), " ") {
			b.text.WriteByte(' ')
		}
	} else {
		// Fonts may position words without emitting a space glyph
		if b.text.Len() > 0 && g.x-b.right > b.size*wordGap && !strings.HasSuffix(b.text.String(), " ") {
			b.text.WriteByte(' ')
		}
		b.text.WriteString(g.S)
		b.inkRight = math.Max(b.inkRight, g.x+g.advance)
	}
	b.right = math.Max(b.right, g.x+g.advance)
}

func (b *runBuilder) run(pageHeight float64) TextRun {
	family := b.font
	if family == "" {
		family = DefaultFontFamily
	}

	return TextRun{
		Text:       strings.TrimRightFunc(b.text.String(), unicode.IsSpace),
		X:          b.x,
		Y:          pageHeight - b.baseline - b.size,
		Width:      b.inkRight - b.x,
		Height:     b.size,
		FontSize:   b.size,
		FontFamily: family,
	}
}

// glyphAdvance returns the horizontal advance of a glyph. Without a width
// from the font dictionary the standard 14 font metrics are used, and the
// average glyph width for any other font.
func glyphAdvance(g pdf.Text, size float64) float64 {
	if w := math.Abs(g.W); w > 0 {
		return w
	}

	r, n := utf8.DecodeRuneInString(g.S)
	if n == 0 || unicode.IsControl(r) {
		return 0
	}
	if r <= 0xFF && font.IsCoreFont(g.Font) {
		return float64(font.CharWidth(g.Font, r)) * size / 1000
	}
	return size * GlyphWidthFactor
}

// groupRuns merges glyphs into text runs in content-stream order and flips
// the vertical axis so that y grows downwards from the top of the page
func groupRuns(texts []pdf.Text, pageHeight float64) []TextRun {
	runs := make([]TextRun, 0)
	var current *runBuilder

	flush := func() {
		if current != nil {
			runs = append(runs, current.run(pageHeight))
			current = nil
		}
	}

	for _, g := range placeGlyphs(texts) {
		if current != nil && current.accepts(g) {
			current.add(g)
			continue
		}

		flush()
		if strings.TrimSpace(g.S) == "" {
			continue
		}
		current = newRunBuilder(g)
	}
	flush()

	return runs
}
