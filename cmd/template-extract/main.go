package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"

	"github.com/a3tai/mcp-template-mapper/internal/config"
	"github.com/a3tai/mcp-template-mapper/internal/pdf"
)

// ExtractionResult is the JSON output of the tool
type ExtractionResult struct {
	FilePath       string            `json:"file_path"`
	Scale          float64           `json:"scale"`
	PageSize       pdf.PageSize      `json:"page_size"`
	RunCount       int               `json:"run_count"`
	Runs           []pdf.TextRun     `json:"runs"`
	TextLayer      []pdf.OverlaySpan `json:"text_layer,omitempty"`
	RasterPath     string            `json:"raster_path,omitempty"`
	ExtractionTime string            `json:"extraction_time"`
}

type options struct {
	format      string
	scale       float64
	layer       bool
	pngPath     string
	maxFileSize int64
	timeout     time.Duration
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("template-extract", pflag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.StringVar(&opts.format, "format", "text", "Output format: text, json")
	fs.Float64Var(&opts.scale, "scale", 1, "Zoom scale for the text layer and raster")
	fs.BoolVar(&opts.layer, "layer", false, "Include the text layer spans")
	fs.StringVar(&opts.pngPath, "png", "", "Write the page preview to this PNG file")
	fs.Int64Var(&opts.maxFileSize, "maxfilesize", config.DefaultMaxFileSize, "Maximum PDF file size in bytes")
	fs.DurationVar(&opts.timeout, "timeout", config.DefaultRenderTimeout, "Render timeout")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Template Extract - dump the text runs of page 1 of a PDF form")
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "USAGE:")
		fmt.Fprintln(stderr, "  template-extract [OPTIONS] <pdf_file>")
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "OPTIONS:")
		fs.PrintDefaults()
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "EXAMPLES:")
		fmt.Fprintln(stderr, "  template-extract contract.pdf")
		fmt.Fprintln(stderr, "  template-extract --format json --layer --scale 1.5 forms/act.pdf")
		fmt.Fprintln(stderr, "  template-extract --png preview.png contract.pdf")
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(stderr, "Error: exactly one PDF file path required\n\n")
		fs.Usage()
		return 2
	}
	if opts.format != "text" && opts.format != "json" {
		fmt.Fprintf(stderr, "Error: unknown format %q\n", opts.format)
		return 2
	}

	result, err := extract(fs.Arg(0), opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error extracting text runs: %v\n", err)
		return 1
	}

	if err := outputResult(stdout, result, opts.format); err != nil {
		fmt.Fprintf(stderr, "Error outputting results: %v\n", err)
		return 1
	}
	return 0
}

func extract(path string, opts options) (*ExtractionResult, error) {
	started := time.Now()

	doc, err := pdf.NewReader(opts.maxFileSize).ReadFile(path)
	if err != nil {
		return nil, err
	}
	renderer, err := pdf.NewRenderer(opts.maxFileSize)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()
	page, err := renderer.Render(ctx, doc.Data, opts.scale)
	if err != nil {
		return nil, err
	}

	result := &ExtractionResult{
		FilePath: path,
		Scale:    page.Scale,
		PageSize: page.Size,
		RunCount: len(page.Runs),
		Runs:     page.Runs,
	}
	if result.Runs == nil {
		result.Runs = []pdf.TextRun{}
	}
	if opts.layer {
		result.TextLayer = page.TextLayer
	}

	if opts.pngPath != "" {
		data, err := pdf.EncodePNG(page.Raster)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(opts.pngPath, data, 0o600); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", opts.pngPath, err)
		}
		result.RasterPath = opts.pngPath
	}

	result.ExtractionTime = time.Since(started).String()
	return result, nil
}

func outputResult(w io.Writer, result *ExtractionResult, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintf(w, "File: %s\n", filepath.Base(result.FilePath))
	fmt.Fprintf(w, "Page 1: %.2f x %.2f pt, scale %.2f\n", result.PageSize.Width, result.PageSize.Height, result.Scale)
	fmt.Fprintf(w, "Text runs: %d\n", result.RunCount)
	for i, run := range result.Runs {
		fmt.Fprintf(w, "%4d  %q  x=%.2f y=%.2f w=%.2f h=%.2f  %s %.1f\n",
			i, run.Text, run.X, run.Y, run.Width, run.Height, run.FontFamily, run.FontSize)
	}
	for _, span := range result.TextLayer {
		fmt.Fprintf(w, "span %d  left=%.1f top=%.1f scaleX=%.3f\n", span.Index, span.Left, span.Top, span.ScaleX)
	}
	if result.RasterPath != "" {
		fmt.Fprintf(w, "Preview: %s\n", result.RasterPath)
	}
	fmt.Fprintf(w, "Extraction time: %s\n", result.ExtractionTime)
	return nil
}
