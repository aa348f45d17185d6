package mcp

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-template-mapper/internal/apiserver"
	"github.com/a3tai/mcp-template-mapper/internal/config"
	"github.com/a3tai/mcp-template-mapper/internal/editor"
	"github.com/a3tai/mcp-template-mapper/internal/pdf/pdftest"
	"github.com/a3tai/mcp-template-mapper/internal/templateapi"
)

type handlerFunc func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig(dir string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.TemplateDirectory = dir
	cfg.Scale = 1
	cfg.ServerName = "test-server"
	cfg.MaxFileSize = 10 * 1024 * 1024
	return cfg
}

// newTestServer starts a templates API and returns a server over a directory
// holding form.pdf with one run "Ivanov" at (100, 200) 60x20.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	dir := t.TempDir()
	data := pdftest.Build(pdftest.Page{
		Texts: []pdftest.Text{
			{X: 100, Y: 572, Size: 20, S: "Ivanov"},
			{X: 100, Y: 472, Size: 12, S: "Moscow"},
		},
	})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "form.pdf"), data, 0o600))

	store, err := apiserver.OpenStore(context.Background(), apiserver.StoreConfig{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	api := httptest.NewServer(apiserver.NewServer(store, 10*1024*1024).Handler())
	t.Cleanup(api.Close)

	client, err := templateapi.NewClient(api.URL + "/api")
	require.NoError(t, err)

	s, err := NewServer(testConfig(dir), client)
	require.NoError(t, err)
	return s
}

func call(t *testing.T, handler handlerFunc, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	if args == nil {
		args = map[string]any{}
	}
	result, err := handler(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Arguments: args},
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func callOK(t *testing.T, handler handlerFunc, args map[string]any) string {
	t.Helper()
	result := call(t, handler, args)
	text := textOf(result)
	require.False(t, result.IsError, text)
	return text
}

func callErr(t *testing.T, handler handlerFunc, args map[string]any) string {
	t.Helper()
	result := call(t, handler, args)
	text := textOf(result)
	require.True(t, result.IsError, text)
	return text
}

func textOf(result *mcp.CallToolResult) string {
	for _, content := range result.Content {
		if text, ok := content.(mcp.TextContent); ok {
			return text.Text
		}
		if text, ok := content.(*mcp.TextContent); ok {
			return text.Text
		}
	}
	return ""
}

// payload decodes the JSON part of a jsonResult
func payload(t *testing.T, text string, v any) {
	t.Helper()
	_, body, ok := strings.Cut(text, "\n\n")
	require.True(t, ok, text)
	require.NoError(t, json.Unmarshal([]byte(body), v))
}

func TestNewServer(t *testing.T) {
	client, err := templateapi.NewClient("http://127.0.0.1:1/api")
	require.NoError(t, err)

	_, err = NewServer(nil, client)
	assert.Error(t, err)

	_, err = NewServer(testConfig(t.TempDir()), nil)
	assert.Error(t, err)

	cfg := testConfig(t.TempDir())
	cfg.CatalogFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = NewServer(cfg, client)
	assert.Error(t, err)

	s, err := NewServer(testConfig(t.TempDir()), client)
	require.NoError(t, err)
	assert.NotNil(t, s.mcpServer)
	assert.Equal(t, editor.StateEmpty.String(), s.Session().Snapshot().State)
}

func TestServer_Tools(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, []string{
		"template_files",
		"template_open",
		"template_scale",
		"template_text_layer",
		"template_select",
		"template_select_runs",
		"template_clear_selection",
		"template_assign",
		"template_update",
		"template_remove",
		"template_list",
		"template_catalog",
		"template_preview",
		"template_render",
		"template_save",
		"template_stored",
		"template_load",
		"template_cancel",
	}, s.Tools())
}

func TestServer_Files(t *testing.T) {
	s := newTestServer(t)

	text := callOK(t, s.handleFiles, nil)
	assert.Contains(t, text, "Found 1 PDF file(s)")
	assert.Contains(t, text, "form.pdf")

	text = callOK(t, s.handleFiles, map[string]any{"query": "contract"})
	assert.Contains(t, text, "No PDF files found")
}

func TestServer_EditorWorkflow(t *testing.T) {
	s := newTestServer(t)

	text := callOK(t, s.handleOpen, map[string]any{"path": "form.pdf"})
	assert.Contains(t, text, "Opened form.pdf: 2 text runs")

	var layer textLayerResult
	payload(t, callOK(t, s.handleTextLayer, nil), &layer)
	require.Len(t, layer.Spans, 2)
	assert.Equal(t, "Ivanov", layer.Spans[0].Text)
	assert.InDelta(t, 100, layer.Spans[0].Left, 0.01)

	var sel selectionResult
	payload(t, callOK(t, s.handleSelect, map[string]any{"x0": 190.0, "y0": 225.0, "x1": 90.0, "y1": 190.0}), &sel)
	assert.Equal(t, []int{0}, sel.Indices)
	assert.True(t, sel.CanAssign)

	var assigned assignResult
	payload(t, callOK(t, s.handleAssign, map[string]any{"formula": "<Фамилия> <Нет такого>"}), &assigned)
	assert.Equal(t, "<Фамилия> <Нет такого>", assigned.Mapping.FieldLabel)
	assert.Equal(t, "lastName", assigned.Mapping.FieldName)
	assert.Equal(t, []string{"Нет такого"}, assigned.Unresolved)
	assert.InDelta(t, 100, assigned.Mapping.X, 0.01)
	assert.InDelta(t, 200, assigned.Mapping.Y, 0.01)
	assert.InDelta(t, 60, assigned.Mapping.Width, 0.01)
	assert.InDelta(t, 20, assigned.Mapping.Height, 0.01)
	id := assigned.Mapping.ID

	text = callOK(t, s.handleUpdate, map[string]any{"id": id, "align": "center", "wordWrap": true, "width": 120.0})
	assert.Contains(t, text, `"align": "center"`)
	assert.Contains(t, text, `"width": 120`)

	var view editor.View
	payload(t, callOK(t, s.handleList, nil), &view)
	assert.Equal(t, "loaded", view.State)
	require.Len(t, view.Mappings, 1)
	assert.InDelta(t, 120, view.Mappings[0].Width, 0.01)

	var preview []previewItem
	text = callOK(t, s.handlePreview, map[string]any{"values": map[string]any{"firstName": "Ivan"}})
	assert.Contains(t, text, "No value for: lastName")
	payload(t, text, &preview)
	require.Len(t, preview, 1)
	assert.Equal(t, "<Фамилия> <Нет такого>", preview[0].Value)

	payload(t, callOK(t, s.handlePreview, map[string]any{"values": map[string]any{"lastName": "Petrov"}}), &preview)
	assert.Equal(t, "Petrov <Нет такого>", preview[0].Value)

	result := call(t, s.handleRender, nil)
	require.False(t, result.IsError)
	var image *mcp.ImageContent
	for _, content := range result.Content {
		if img, ok := content.(mcp.ImageContent); ok {
			image = &img
		}
	}
	require.NotNil(t, image, "render returns an image")
	assert.Equal(t, "image/png", image.MIMEType)
	assert.NotEmpty(t, image.Data)

	text = callOK(t, s.handleSave, map[string]any{"name": "Водительское"})
	assert.Contains(t, text, "Created template")
	text = callOK(t, s.handleSave, nil)
	assert.Contains(t, text, "Updated template")

	text = callOK(t, s.handleStored, nil)
	assert.Contains(t, text, "Found 1 stored template(s)")
	assert.Contains(t, text, "Водительское")
	assert.Contains(t, text, "Fields: 1")

	assert.Contains(t, callOK(t, s.handleRemove, map[string]any{"id": id}), "0 mapping(s) left")
	callErr(t, s.handleRemove, map[string]any{"id": id})

	callOK(t, s.handleCancel, nil)
	assert.Equal(t, "empty", s.Session().Snapshot().State)

	payload(t, callOK(t, s.handleLoad, map[string]any{"id": 1.0, "scale": 2.0}), &view)
	assert.Equal(t, editor.ModeEdit, view.Mode)
	assert.Equal(t, int64(1), view.TemplateID)
	assert.Equal(t, "Водительское", view.Name)
	assert.Equal(t, 2.0, view.Scale)
	require.Len(t, view.Mappings, 1)
	assert.Equal(t, id, view.Mappings[0].ID)
}

func TestServer_ScaleKeepsMappings(t *testing.T) {
	s := newTestServer(t)
	callOK(t, s.handleOpen, map[string]any{"path": "form.pdf"})
	callOK(t, s.handleSelectRuns, map[string]any{"indices": []any{0.0}})
	callOK(t, s.handleAssign, map[string]any{"formula": "<Фамилия>"})

	var view editor.View
	payload(t, callOK(t, s.handleScale, map[string]any{"scale": 3.0}), &view)
	assert.Equal(t, 3.0, view.Scale)
	assert.Empty(t, view.Selection)
	require.Len(t, view.Mappings, 1)
	assert.InDelta(t, 100, view.Mappings[0].X, 0.01)

	// The same run at three times the zoom.
	var sel selectionResult
	payload(t, callOK(t, s.handleSelect, map[string]any{"x0": 290.0, "y0": 590.0, "x1": 400.0, "y1": 640.0}), &sel)
	assert.Equal(t, []int{0}, sel.Indices)

	callErr(t, s.handleScale, map[string]any{"scale": 0.0})
	callErr(t, s.handleScale, map[string]any{"scale": "big"})
	callErr(t, s.handleScale, nil)
}

func TestServer_RejectedSaveKeepsName(t *testing.T) {
	s := newTestServer(t)
	callOK(t, s.handleOpen, map[string]any{"path": "form.pdf"})

	assert.Contains(t, callErr(t, s.handleSave, map[string]any{"name": "Договор"}), "no fields have been assigned")
	assert.Equal(t, "form.pdf", s.Session().Snapshot().Name)

	callOK(t, s.handleSelectRuns, map[string]any{"indices": []any{0.0}})
	callOK(t, s.handleAssign, map[string]any{"formula": "<Фамилия>"})
	callOK(t, s.handleSave, map[string]any{"name": "Договор"})
	assert.Equal(t, "Договор", s.Session().Snapshot().Name)
}

func TestServer_SelectRunsAndClear(t *testing.T) {
	s := newTestServer(t)
	callOK(t, s.handleOpen, map[string]any{"path": "form.pdf"})

	var sel selectionResult
	payload(t, callOK(t, s.handleSelectRuns, map[string]any{"indices": []any{1.0, 0.0, 1.0}}), &sel)
	assert.Equal(t, []int{0, 1}, sel.Indices)
	require.Len(t, sel.Runs, 2)
	assert.Equal(t, "Moscow", sel.Runs[1].Text)

	callErr(t, s.handleSelectRuns, map[string]any{"indices": []any{7.0}})
	callErr(t, s.handleSelectRuns, map[string]any{"indices": []any{0.5}})
	callErr(t, s.handleSelectRuns, map[string]any{"indices": "0"})
	callErr(t, s.handleSelectRuns, nil)

	assert.Equal(t, "Selection cleared", callOK(t, s.handleClearSelection, nil))
	assert.False(t, s.Session().Snapshot().CanAssign)
	callErr(t, s.handleAssign, map[string]any{"formula": "<Фамилия>"})

	text := callOK(t, s.handleSelect, map[string]any{"x0": 500.0, "y0": 500.0, "x1": 510.0, "y1": 510.0})
	assert.Contains(t, text, "No text runs selected")
}

func TestServer_ToolsWithoutDocument(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name    string
		handler handlerFunc
		args    map[string]any
	}{
		{name: "text layer", handler: s.handleTextLayer},
		{name: "render", handler: s.handleRender},
		{name: "scale", handler: s.handleScale, args: map[string]any{"scale": 2.0}},
		{name: "select", handler: s.handleSelect, args: map[string]any{"x0": 0.0, "y0": 0.0, "x1": 10.0, "y1": 10.0}},
		{name: "select runs", handler: s.handleSelectRuns, args: map[string]any{"indices": []any{0.0}}},
		{name: "assign", handler: s.handleAssign, args: map[string]any{"formula": "<Фамилия>"}},
		{name: "save", handler: s.handleSave, args: map[string]any{"name": "Договор"}},
		{name: "load unknown", handler: s.handleLoad, args: map[string]any{"id": 42.0}},
		{name: "load invalid id", handler: s.handleLoad, args: map[string]any{"id": -1.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			callErr(t, tt.handler, tt.args)
		})
	}

	text := callOK(t, s.handleList, nil)
	assert.Contains(t, text, "State: empty, mode: create, 0 mapping(s)")
	assert.Contains(t, callOK(t, s.handleStored, nil), "No stored templates")
}

func TestServer_OpenErrors(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.dir.Root(), "broken.pdf"), []byte("not a pdf"), 0o600))

	callErr(t, s.handleOpen, nil)
	assert.Contains(t, callErr(t, s.handleOpen, map[string]any{"path": "../outside.pdf"}), "outside")
	callErr(t, s.handleOpen, map[string]any{"path": "missing.pdf"})
	callErr(t, s.handleOpen, map[string]any{"path": "broken.pdf"})
	callErr(t, s.handleOpen, map[string]any{"path": "form.pdf", "scale": -1.0})

	assert.Equal(t, "empty", s.Session().Snapshot().State)
}

func TestServer_UpdateErrors(t *testing.T) {
	s := newTestServer(t)
	callOK(t, s.handleOpen, map[string]any{"path": "form.pdf"})
	callOK(t, s.handleSelectRuns, map[string]any{"indices": []any{0.0}})

	var assigned assignResult
	payload(t, callOK(t, s.handleAssign, map[string]any{"formula": "<Фамилия>"}), &assigned)
	id := assigned.Mapping.ID

	assert.Contains(t, callErr(t, s.handleUpdate, map[string]any{"id": id}), "nothing to update")
	callErr(t, s.handleUpdate, map[string]any{"id": id, "align": "justify"})
	callErr(t, s.handleUpdate, map[string]any{"id": id, "width": -5.0})
	callErr(t, s.handleUpdate, map[string]any{"id": id, "wordWrap": "maybe"})
	callErr(t, s.handleUpdate, map[string]any{"id": "field_missing", "x": 1.0})
	callErr(t, s.handleUpdate, map[string]any{"x": 1.0})

	var view editor.View
	payload(t, callOK(t, s.handleList, nil), &view)
	require.Len(t, view.Mappings, 1)
	assert.Equal(t, assigned.Mapping, view.Mappings[0])
}

func TestServer_Catalog(t *testing.T) {
	s := newTestServer(t)

	var groups []map[string]any
	text := callOK(t, s.handleCatalog, nil)
	assert.Contains(t, text, "87 field(s) in 4 group(s)")
	payload(t, text, &groups)
	require.Len(t, groups, 4)
	assert.Equal(t, "contracts", groups[0]["value"])

	var fields []map[string]any
	payload(t, callOK(t, s.handleCatalog, map[string]any{"group": "drivers"}), &fields)
	assert.Len(t, fields, 13)

	callErr(t, s.handleCatalog, map[string]any{"group": "planets"})
}

func TestServer_RunStdioMode(t *testing.T) {
	s := newTestServer(t)

	err := s.runStdioMode(context.Background(), strings.NewReader(""), &strings.Builder{})
	assert.NoError(t, err, "end of input stops the server")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reader, writer := io.Pipe()
	defer writer.Close()

	err = s.runStdioMode(ctx, reader, &strings.Builder{})
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestServer_RunServerMode(t *testing.T) {
	s := newTestServer(t)
	s.config.Mode = config.ModeServer
	s.config.Port = 0

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Run(ctx)
	if err != nil && !strings.Contains(err.Error(), "context") {
		t.Errorf("Run() error = %v, expected context-related error", err)
	}
}
