package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-template-mapper/internal/pdf/pdftest"
)

func writeForm(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "form.pdf")
	data := pdftest.Build(pdftest.Page{
		Texts: []pdftest.Text{{X: 100, Y: 572, Size: 20, S: "Ivanov"}},
	})
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestRun_JSON(t *testing.T) {
	path := writeForm(t)
	pngPath := filepath.Join(t.TempDir(), "preview.png")

	var stdout, stderr bytes.Buffer
	code := run([]string{"--format", "json", "--layer", "--scale", "2", "--png", pngPath, path}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	var result ExtractionResult
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &result))
	assert.Equal(t, 2.0, result.Scale)
	assert.Equal(t, 1, result.RunCount)
	require.Len(t, result.Runs, 1)
	assert.Equal(t, "Ivanov", result.Runs[0].Text)
	assert.InDelta(t, 200, result.Runs[0].Y, 0.01)
	require.Len(t, result.TextLayer, 1)
	assert.InDelta(t, 200, result.TextLayer[0].Left, 0.01)
	assert.Equal(t, pngPath, result.RasterPath)

	png, err := os.ReadFile(pngPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png[:4])
}

func TestRun_Text(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{writeForm(t)}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "File: form.pdf")
	assert.Contains(t, stdout.String(), "Text runs: 1")
	assert.Contains(t, stdout.String(), `"Ivanov"`)
}

func TestRun_Errors(t *testing.T) {
	broken := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(broken, []byte("hello"), 0o600))

	tests := []struct {
		name string
		args []string
		want int
	}{
		{name: "help", args: []string{"--help"}, want: 0},
		{name: "no file", args: nil, want: 2},
		{name: "two files", args: []string{"a.pdf", "b.pdf"}, want: 2},
		{name: "unknown format", args: []string{"--format", "xml", "a.pdf"}, want: 2},
		{name: "unknown flag", args: []string{"--bogus", "a.pdf"}, want: 2},
		{name: "missing file", args: []string{filepath.Join(t.TempDir(), "absent.pdf")}, want: 1},
		{name: "not a pdf", args: []string{broken}, want: 1},
		{name: "invalid scale", args: []string{"--scale", "0", writeForm(t)}, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			assert.Equal(t, tt.want, run(tt.args, &stdout, &stderr))
		})
	}
}
