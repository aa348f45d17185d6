// Package pdftest builds small single-font PDF documents for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"
)

// Text is one string drawn at a baseline position in PDF user space
type Text struct {
	X, Y float64
	Size float64
	S    string
}

// Page describes the single page of a generated document
type Page struct {
	Width, Height float64
	Texts         []Text
}

// GlyphWidth is the advance of every glyph in the generated font, in 1/1000 em
const GlyphWidth = 500

func withDefaults(page Page) Page {
	if page.Width == 0 {
		page.Width = 612
	}
	if page.Height == 0 {
		page.Height = 792
	}
	return page
}

// Build returns a valid PDF with one page using Helvetica with fixed glyph widths.
// Only printable ASCII is supported.
func Build(page Page) []byte {
	page = withDefaults(page)

	var content strings.Builder
	for _, t := range page.Texts {
		fmt.Fprintf(&content, "BT\n/F1 %s Tf\n%s %s Td\n(%s) Tj\nET\n",
			num(t.Size), num(t.X), num(t.Y), escape(t.S))
	}

	widths := make([]string, 0, 95)
	for c := 32; c <= 126; c++ {
		widths = append(widths, fmt.Sprint(GlyphWidth))
	}

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %s %s] "+
			"/Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>", num(page.Width), num(page.Height)),
		fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", content.Len(), content.String()),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding " +
			"/FirstChar 32 /LastChar 126 /Widths [" + strings.Join(widths, " ") + "] >>",
	}

	return assemble(objects)
}

// BuildCore renders page with gofpdf using the standard Helvetica font. The font
// dictionary carries no Widths array, so readers must fall back to the
// standard font metrics.
func BuildCore(tb testing.TB, page Page) []byte {
	tb.Helper()
	page = withDefaults(page)

	doc := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: page.Width, Ht: page.Height},
	})
	doc.SetCompression(false)
	doc.AddPage()
	for _, t := range page.Texts {
		doc.SetFont("Helvetica", "", t.Size)
		// gofpdf measures y from the top of the page
		doc.Text(t.X, page.Height-t.Y, t.S)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		tb.Fatalf("failed to build core font PDF: %v", err)
	}
	return buf.Bytes()
}

// Blank returns a valid single page PDF without any text
func Blank() []byte {
	return Build(Page{})
}

func assemble(objects []string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	return buf.Bytes()
}

func num(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.3f", v), "0"), ".")
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
