package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/mcp-template-mapper/internal/catalog"
	"github.com/a3tai/mcp-template-mapper/internal/config"
	"github.com/a3tai/mcp-template-mapper/internal/editor"
	"github.com/a3tai/mcp-template-mapper/internal/formula"
	"github.com/a3tai/mcp-template-mapper/internal/pdf"
	"github.com/a3tai/mcp-template-mapper/internal/template"
	"github.com/a3tai/mcp-template-mapper/internal/workspace"
)

// TemplateAPI is the part of the templates API the tools use
type TemplateAPI interface {
	editor.Persister
	Get(ctx context.Context, id int64) (*template.Record, error)
	List(ctx context.Context) (*template.ListResponse, error)
}

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	session   *editor.Session
	dir       *workspace.Dir
	reader    *pdf.Reader
	api       TemplateAPI
	mcpServer *server.MCPServer
	tools     []string
}

// NewServer wires one editor session behind the template_* tools
func NewServer(cfg *config.Config, api TemplateAPI) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if api == nil {
		return nil, errors.New("templates API cannot be nil")
	}

	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	renderer, err := pdf.NewRenderer(cfg.MaxFileSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	dir, err := workspace.New(cfg.TemplateDirectory)
	if err != nil {
		return nil, err
	}

	timeout := cfg.RenderTimeout
	if timeout <= 0 {
		timeout = editor.DefaultRenderTimeout
	}
	session := editor.NewSession(renderer, formula.NewBuilder(cat),
		editor.WithRenderTimeout(timeout),
		editor.WithLogger(log.Default(), cfg.IsDebug()),
	)

	s := &Server{
		config:  cfg,
		session: session,
		dir:     dir,
		reader:  pdf.NewReader(cfg.MaxFileSize),
		api:     api,
		mcpServer: server.NewMCPServer(
			cfg.ServerName,
			cfg.Version,
			server.WithToolCapabilities(false),
		),
	}
	s.registerTools()

	return s, nil
}

// Session returns the editor session driven by the tools
func (s *Server) Session() *editor.Session {
	return s.session
}

// Tools returns the names of the registered tools in registration order
func (s *Server) Tools() []string {
	return append([]string(nil), s.tools...)
}

func (s *Server) addTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcpServer.AddTool(tool, s.logCall(tool.Name, handler))
	s.tools = append(s.tools, tool.Name)
}

func (s *Server) logCall(name string, handler server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if !s.config.IsDebug() {
			return handler(ctx, request)
		}
		started := time.Now()
		result, err := handler(ctx, request)
		failed := err != nil || (result != nil && result.IsError)
		log.Printf("tool %s finished in %v (error: %t)", name, time.Since(started), failed)
		return result, err
	}
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	s.addTool(mcp.NewTool(
		"template_files",
		mcp.WithDescription("List PDF files in the template directory"),
		mcp.WithString("query",
			mcp.Description("Optional case-insensitive file name filter"),
		),
	), s.handleFiles)

	s.addTool(mcp.NewTool(
		"template_open",
		mcp.WithDescription("Open a PDF form as a new template. Renders page 1 and extracts its text runs; "+
			"replaces the current document and its field mappings"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("File name or path inside the template directory"),
		),
		mcp.WithNumber("scale",
			mcp.Description("Zoom scale (defaults to the configured scale)"),
		),
	), s.handleOpen)

	s.addTool(mcp.NewTool(
		"template_scale",
		mcp.WithDescription("Re-render the current document at a new zoom scale. Mappings are kept, the selection is cleared"),
		mcp.WithNumber("scale",
			mcp.Required(),
			mcp.Description("Zoom scale, greater than 0"),
		),
	), s.handleScale)

	s.addTool(mcp.NewTool(
		"template_text_layer",
		mcp.WithDescription("Show the selectable text layer: one span per text run in screen pixels at the current scale"),
	), s.handleTextLayer)

	s.addTool(mcp.NewTool(
		"template_select",
		mcp.WithDescription("Select the text runs overlapping a rectangle drawn in screen pixels at the current scale"),
		mcp.WithNumber("x0", mcp.Required(), mcp.Description("First corner x")),
		mcp.WithNumber("y0", mcp.Required(), mcp.Description("First corner y")),
		mcp.WithNumber("x1", mcp.Required(), mcp.Description("Opposite corner x")),
		mcp.WithNumber("y1", mcp.Required(), mcp.Description("Opposite corner y")),
	), s.handleSelect)

	s.addTool(mcp.NewTool(
		"template_select_runs",
		mcp.WithDescription("Select text runs by their text layer index"),
		mcp.WithArray("indices",
			mcp.Required(),
			mcp.Description("Run indices as shown by template_text_layer"),
			mcp.Items(map[string]any{"type": "integer"}),
		),
	), s.handleSelectRuns)

	s.addTool(mcp.NewTool(
		"template_clear_selection",
		mcp.WithDescription("Clear the current selection"),
	), s.handleClearSelection)

	s.addTool(mcp.NewTool(
		"template_assign",
		mcp.WithDescription("Bind a field formula to the selected runs. Placeholders like <Фамилия> are resolved "+
			"against the field catalog; the mapping box is the union of the selected runs"),
		mcp.WithString("formula",
			mcp.Required(),
			mcp.Description("Literal text with <Label> placeholders"),
		),
	), s.handleAssign)

	s.addTool(mcp.NewTool(
		"template_update",
		mcp.WithDescription("Edit fields of an existing mapping. Only the given properties change"),
		mcp.WithString("id", mcp.Required(), mcp.Description("Mapping id")),
		mcp.WithString("fieldName", mcp.Description("Catalog key or composite key")),
		mcp.WithString("fieldLabel", mcp.Description("Formula shown to the operator")),
		mcp.WithString("text", mcp.Description("Formula used at fill time")),
		mcp.WithNumber("x", mcp.Description("Left edge in PDF units")),
		mcp.WithNumber("y", mcp.Description("Top edge in PDF units")),
		mcp.WithNumber("width", mcp.Description("Width in PDF units")),
		mcp.WithNumber("height", mcp.Description("Height in PDF units")),
		mcp.WithNumber("fontSize", mcp.Description("Font size in points")),
		mcp.WithString("fontFamily", mcp.Description("Font family")),
		mcp.WithString("align", mcp.Description("Text alignment"), mcp.Enum("left", "center", "right")),
		mcp.WithBoolean("wordWrap", mcp.Description("Wrap long values inside the box")),
	), s.handleUpdate)

	s.addTool(mcp.NewTool(
		"template_remove",
		mcp.WithDescription("Remove a mapping"),
		mcp.WithString("id", mcp.Required(), mcp.Description("Mapping id")),
	), s.handleRemove)

	s.addTool(mcp.NewTool(
		"template_list",
		mcp.WithDescription("Show the editor state: document, scale, selection and the field mappings"),
	), s.handleList)

	s.addTool(mcp.NewTool(
		"template_catalog",
		mcp.WithDescription("List catalog groups, or the fields of one group"),
		mcp.WithString("group",
			mcp.Description("Group to list (contracts, drivers, vehicles, contractors)"),
		),
	), s.handleCatalog)

	s.addTool(mcp.NewTool(
		"template_preview",
		mcp.WithDescription("Fill every mapping formula with sample values keyed by catalog key"),
		mcp.WithObject("values",
			mcp.Description("Map of catalog key to value, e.g. {\"lastName\": \"Иванов\"}"),
		),
	), s.handlePreview)

	s.addTool(mcp.NewTool(
		"template_render",
		mcp.WithDescription("Return the page preview as a PNG image at the current scale"),
	), s.handleRender)

	s.addTool(mcp.NewTool(
		"template_save",
		mcp.WithDescription("Save the template to the templates API. The first save creates it, later saves update it"),
		mcp.WithString("name", mcp.Description("Template name (keeps the current name if empty)")),
	), s.handleSave)

	s.addTool(mcp.NewTool(
		"template_stored",
		mcp.WithDescription("List templates stored in the templates API"),
	), s.handleStored)

	s.addTool(mcp.NewTool(
		"template_load",
		mcp.WithDescription("Load a stored template for editing"),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Template id")),
		mcp.WithNumber("scale", mcp.Description("Zoom scale (defaults to the configured scale)")),
	), s.handleLoad)

	s.addTool(mcp.NewTool(
		"template_cancel",
		mcp.WithDescription("Discard the document, its mappings and any render in progress"),
	), s.handleCancel)
}

// Run starts the MCP server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	if s.config.IsServerMode() {
		return s.runServerMode(ctx)
	}
	return s.runStdioMode(ctx, os.Stdin, os.Stdout)
}

// runStdioMode serves MCP over the given streams until ctx is done or input ends
func (s *Server) runStdioMode(ctx context.Context, in io.Reader, out io.Writer) error {
	if s.config.IsDebug() {
		log.Printf("Starting template mapper in stdio mode")
		log.Printf("Template directory: %s", s.dir.Root())
	}

	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(log.Default())

	err := stdio.Listen(ctx, in, out)
	s.session.Cancel()
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode serves MCP over SSE until ctx is done
func (s *Server) runServerMode(ctx context.Context) error {
	addr := s.config.Address()
	sse := server.NewSSEServer(s.mcpServer, server.WithBaseURL("http://"+addr))

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Template mapper SSE server listening on %s", addr)
		errCh <- sse.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve sse: %w", err)
	case <-ctx.Done():
		s.session.Cancel()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := sse.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down sse server: %w", err)
		}
		return ctx.Err()
	}
}
