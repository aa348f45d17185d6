package pdf

import "unicode/utf8"

// GlyphWidthFactor is the assumed average glyph advance as a fraction of the
// font size. The overlay stretches each span so that
// char_count × fontSize × GlyphWidthFactor × ScaleX equals the measured width.
// Selection geometry relies on runs being laid out with this same heuristic.
const GlyphWidthFactor = 0.5

// HorizontalScale returns the stretch applied to an overlay span so its
// invisible glyphs line up with the raster
func HorizontalScale(run TextRun) float64 {
	n := utf8.RuneCountInString(run.Text)
	if n == 0 || run.FontSize <= 0 || run.Width <= 0 {
		return 1
	}
	return run.Width / (float64(n) * run.FontSize * GlyphWidthFactor)
}

// BuildTextLayer lays out one selectable overlay span per run, in screen
// pixels at the given scale
func BuildTextLayer(runs []TextRun, scale float64) []OverlaySpan {
	spans := make([]OverlaySpan, 0, len(runs))
	for i, run := range runs {
		spans = append(spans, OverlaySpan{
			Index:    i,
			Text:     run.Text,
			Left:     run.X * scale,
			Top:      run.Y * scale,
			Width:    run.Width * scale,
			Height:   run.Height * scale,
			FontSize: run.FontSize * scale,
			ScaleX:   HorizontalScale(run),
		})
	}
	return spans
}
