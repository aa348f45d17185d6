package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/a3tai/mcp-template-mapper/internal/catalog"
	"github.com/a3tai/mcp-template-mapper/internal/editor"
	"github.com/a3tai/mcp-template-mapper/internal/pdf"
	"github.com/a3tai/mcp-template-mapper/internal/selection"
	"github.com/a3tai/mcp-template-mapper/internal/template"
)

// jsonResult renders a summary line followed by v as indented JSON
func jsonResult(summary string, v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(summary + "\n\n" + string(data)), nil
}

func toolError(err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(err.Error()), nil
}

// numberArg reads an optional numeric argument
func numberArg(args map[string]any, name string) (float64, bool, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return 0, false, nil
	}

	var v float64
	switch n := raw.(type) {
	case float64:
		v = n
	case float32:
		v = float64(n)
	case int:
		v = float64(n)
	case int64:
		v = float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false, fmt.Errorf("%s must be a number", name)
		}
		v = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false, fmt.Errorf("%s must be a number", name)
		}
		v = f
	default:
		return 0, false, fmt.Errorf("%s must be a number", name)
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, fmt.Errorf("%s must be finite", name)
	}
	return v, true, nil
}

func requireNumber(args map[string]any, name string) (float64, error) {
	v, ok, err := numberArg(args, name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("required argument %q not found", name)
	}
	return v, nil
}

func stringArg(args map[string]any, name string) (string, bool, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return "", false, nil
	}
	v, ok := raw.(string)
	if !ok {
		return "", false, fmt.Errorf("%s must be a string", name)
	}
	return v, true, nil
}

func boolArg(args map[string]any, name string) (bool, bool, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return false, false, nil
	}
	switch v := raw.(type) {
	case bool:
		return v, true, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, false, fmt.Errorf("%s must be a boolean", name)
		}
		return b, true, nil
	}
	return false, false, fmt.Errorf("%s must be a boolean", name)
}

// indicesArg reads a list of non-negative integer indices
func indicesArg(args map[string]any, name string) ([]int, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return nil, fmt.Errorf("required argument %q not found", name)
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%s must be an array of integers", name)
	}

	out := make([]int, 0, len(items))
	for i, item := range items {
		v, _, err := numberArg(map[string]any{name: item}, name)
		if err != nil || v != math.Trunc(v) {
			return nil, fmt.Errorf("%s[%d] must be an integer", name, i)
		}
		out = append(out, int(v))
	}
	return out, nil
}

// scaleArg reads an optional scale, falling back to the configured one
func (s *Server) scaleArg(args map[string]any) (float64, error) {
	scale, ok, err := numberArg(args, "scale")
	if err != nil {
		return 0, err
	}
	if !ok {
		return s.config.Scale, nil
	}
	return scale, nil
}

func (s *Server) handleFiles(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, _, err := stringArg(request.GetArguments(), "query")
	if err != nil {
		return toolError(err)
	}

	files, err := s.dir.List(query)
	if err != nil {
		return toolError(err)
	}
	if len(files) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No PDF files found in directory: %s", s.dir.Root())), nil
	}
	return jsonResult(fmt.Sprintf("Found %d PDF file(s) in directory: %s", len(files), s.dir.Root()), files)
}

func (s *Server) handleOpen(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return toolError(err)
	}
	scale, err := s.scaleArg(request.GetArguments())
	if err != nil {
		return toolError(err)
	}

	resolved, err := s.dir.Resolve(path)
	if err != nil {
		return toolError(err)
	}
	doc, err := s.reader.ReadFile(resolved)
	if err != nil {
		return toolError(err)
	}

	view, err := s.session.Open(ctx, doc.Name, doc.Data, scale)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(fmt.Sprintf("Opened %s: %d text runs on page 1 (%.0fx%.0f pt) at scale %.2f",
		doc.Name, view.RunCount, view.PageSize.Width, view.PageSize.Height, view.Scale), view)
}

func (s *Server) handleScale(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scale, err := requireNumber(request.GetArguments(), "scale")
	if err != nil {
		return toolError(err)
	}

	view, err := s.session.SetScale(ctx, scale)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(fmt.Sprintf("Rendered at scale %.2f", view.Scale), view)
}

// textLayerResult is the template_text_layer payload
type textLayerResult struct {
	Scale    float64           `json:"scale"`
	PageSize pdf.PageSize      `json:"pageSize"`
	Spans    []pdf.OverlaySpan `json:"spans"`
}

func (s *Server) handleTextLayer(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page, err := s.session.Page()
	if err != nil {
		return toolError(err)
	}

	result := textLayerResult{Scale: page.Scale, PageSize: page.Size, Spans: page.TextLayer}
	if result.Spans == nil {
		result.Spans = []pdf.OverlaySpan{}
	}
	return jsonResult(fmt.Sprintf("%d text span(s) at scale %.2f", len(result.Spans), page.Scale), result)
}

// selectionResult is returned by the selection tools
type selectionResult struct {
	Indices   []int         `json:"indices"`
	Runs      []pdf.TextRun `json:"runs"`
	CanAssign bool          `json:"canAssign"`
}

func (s *Server) selectionResult(indices []int) (*mcp.CallToolResult, error) {
	result := selectionResult{
		Indices:   indices,
		Runs:      s.session.SelectedRuns(),
		CanAssign: len(indices) > 0,
	}
	if result.Runs == nil {
		result.Runs = []pdf.TextRun{}
	}
	if len(indices) == 0 {
		return jsonResult("No text runs selected", result)
	}

	texts := make([]string, len(result.Runs))
	for i, run := range result.Runs {
		texts[i] = run.Text
	}
	return jsonResult(fmt.Sprintf("Selected %d run(s): %s", len(indices), strings.Join(texts, " | ")), result)
}

func (s *Server) handleSelect(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	var coords [4]float64
	for i, name := range []string{"x0", "y0", "x1", "y1"} {
		v, err := requireNumber(args, name)
		if err != nil {
			return toolError(err)
		}
		coords[i] = v
	}

	indices, err := s.session.Select(selection.Rect{X0: coords[0], Y0: coords[1], X1: coords[2], Y1: coords[3]})
	if err != nil {
		return toolError(err)
	}
	return s.selectionResult(indices)
}

func (s *Server) handleSelectRuns(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	indices, err := indicesArg(request.GetArguments(), "indices")
	if err != nil {
		return toolError(err)
	}

	selected, err := s.session.SelectRuns(indices)
	if err != nil {
		return toolError(err)
	}
	return s.selectionResult(selected)
}

func (s *Server) handleClearSelection(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.session.ClearSelection()
	return mcp.NewToolResultText("Selection cleared"), nil
}

// assignResult is the template_assign payload
type assignResult struct {
	Mapping    template.FieldMapping `json:"mapping"`
	Keys       []string              `json:"keys"`
	Unresolved []string              `json:"unresolved,omitempty"`
}

func (s *Server) handleAssign(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("formula")
	if err != nil {
		return toolError(err)
	}

	mapping, res, err := s.session.Assign(text)
	if err != nil {
		return toolError(err)
	}

	summary := fmt.Sprintf("Assigned %s to %s at (%.1f, %.1f) %.1fx%.1f",
		mapping.FieldName, mapping.ID, mapping.X, mapping.Y, mapping.Width, mapping.Height)
	if len(res.Unresolved) > 0 {
		summary += fmt.Sprintf("\nUnknown placeholders: <%s>", strings.Join(res.Unresolved, ">, <"))
	}
	keys := res.Keys
	if keys == nil {
		keys = []string{}
	}
	return jsonResult(summary, assignResult{Mapping: mapping, Keys: keys, Unresolved: res.Unresolved})
}

// patchFromArgs collects the optional update arguments
func patchFromArgs(args map[string]any) (template.Patch, error) {
	var patch template.Patch

	strs := []struct {
		name string
		dst  **string
	}{
		{"fieldName", &patch.FieldName},
		{"fieldLabel", &patch.FieldLabel},
		{"text", &patch.Text},
		{"fontFamily", &patch.FontFamily},
	}
	for _, f := range strs {
		v, ok, err := stringArg(args, f.name)
		if err != nil {
			return patch, err
		}
		if ok {
			*f.dst = &v
		}
	}

	nums := []struct {
		name string
		dst  **float64
	}{
		{"x", &patch.X},
		{"y", &patch.Y},
		{"width", &patch.Width},
		{"height", &patch.Height},
		{"fontSize", &patch.FontSize},
	}
	for _, f := range nums {
		v, ok, err := numberArg(args, f.name)
		if err != nil {
			return patch, err
		}
		if ok {
			*f.dst = &v
		}
	}

	if v, ok, err := stringArg(args, "align"); err != nil {
		return patch, err
	} else if ok {
		align := template.Align(v)
		patch.Align = &align
	}

	if v, ok, err := boolArg(args, "wordWrap"); err != nil {
		return patch, err
	} else if ok {
		patch.WordWrap = &v
	}

	return patch, nil
}

func (s *Server) handleUpdate(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return toolError(err)
	}
	patch, err := patchFromArgs(request.GetArguments())
	if err != nil {
		return toolError(err)
	}
	if patch.Empty() {
		return mcp.NewToolResultError("nothing to update: pass at least one mapping property"), nil
	}

	mapping, err := s.session.Update(id, patch)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(fmt.Sprintf("Updated %s", id), mapping)
}

func (s *Server) handleRemove(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return toolError(err)
	}
	if err := s.session.Remove(id); err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("Removed %s, %d mapping(s) left", id, len(s.session.Snapshot().Mappings))), nil
}

func (s *Server) handleList(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	view := s.session.Snapshot()
	if view.Mappings == nil {
		view.Mappings = []template.FieldMapping{}
	}

	summary := fmt.Sprintf("State: %s, mode: %s, %d mapping(s)", view.State, view.Mode, len(view.Mappings))
	if view.FileName != "" {
		summary += fmt.Sprintf(", document: %s", view.FileName)
	}
	return jsonResult(summary, view)
}

func (s *Server) handleCatalog(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	group, _, err := stringArg(request.GetArguments(), "group")
	if err != nil {
		return toolError(err)
	}
	cat := s.session.Builder().Catalog()

	if strings.TrimSpace(group) == "" {
		groups := cat.Groups()
		return jsonResult(fmt.Sprintf("%d field(s) in %d group(s)", cat.Len(), len(groups)), groups)
	}

	fields := cat.Group(catalog.Group(strings.TrimSpace(group)))
	if len(fields) == 0 {
		return mcp.NewToolResultError(fmt.Sprintf("unknown or empty group: %s", group)), nil
	}
	return jsonResult(fmt.Sprintf("%d field(s) in group %s", len(fields), group), fields)
}

// previewItem is one filled mapping of template_preview
type previewItem struct {
	ID        string `json:"id"`
	FieldName string `json:"fieldName"`
	Formula   string `json:"formula"`
	Value     string `json:"value"`
}

func (s *Server) handlePreview(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	values := map[string]string{}
	if raw, ok := request.GetArguments()["values"]; ok && raw != nil {
		obj, ok := raw.(map[string]any)
		if !ok {
			return mcp.NewToolResultError("values must be an object of catalog key to value"), nil
		}
		for k, v := range obj {
			values[k] = fmt.Sprint(v)
		}
	}

	view := s.session.Snapshot()
	builder := s.session.Builder()
	items := make([]previewItem, 0, len(view.Mappings))
	for _, m := range view.Mappings {
		text := m.Text
		if text == "" {
			text = m.FieldLabel
		}
		items = append(items, previewItem{
			ID:        m.ID,
			FieldName: m.FieldName,
			Formula:   text,
			Value:     builder.Expand(text, values),
		})
	}

	missing := s.missingKeys(view.Mappings, values)
	summary := fmt.Sprintf("Preview of %d mapping(s)", len(items))
	if len(missing) > 0 {
		summary += fmt.Sprintf("\nNo value for: %s", strings.Join(missing, ", "))
	}
	return jsonResult(summary, items)
}

// missingKeys lists resolved catalog keys of the mappings that have no value
func (s *Server) missingKeys(mappings []template.FieldMapping, values map[string]string) []string {
	builder := s.session.Builder()
	seen := map[string]bool{}
	var missing []string
	for _, m := range mappings {
		text := m.Text
		if text == "" {
			text = m.FieldLabel
		}
		for _, key := range builder.Resolve(text).UniqueKeys() {
			if _, ok := values[key]; !ok && !seen[key] {
				seen[key] = true
				missing = append(missing, key)
			}
		}
	}
	sort.Strings(missing)
	return missing
}

func (s *Server) handleRender(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page, err := s.session.Page()
	if err != nil {
		return toolError(err)
	}
	if page.Raster == nil {
		return mcp.NewToolResultError("page has no raster"), nil
	}

	data, err := pdf.EncodePNG(page.Raster)
	if err != nil {
		return toolError(err)
	}
	bounds := page.Raster.Bounds()
	return mcp.NewToolResultImage(
		fmt.Sprintf("Page 1 at scale %.2f (%dx%d px)", page.Scale, bounds.Dx(), bounds.Dy()),
		base64.StdEncoding.EncodeToString(data),
		"image/png",
	), nil
}

func (s *Server) handleSave(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, _, err := stringArg(request.GetArguments(), "name")
	if err != nil {
		return toolError(err)
	}
	wasEdit := s.session.Snapshot().Mode == editor.ModeEdit
	resp, err := s.session.SaveAs(ctx, s.api, name)
	if err != nil {
		return toolError(err)
	}

	verb := "Created"
	if wasEdit {
		verb = "Updated"
	}
	return jsonResult(fmt.Sprintf("%s template %d", verb, resp.ID), resp)
}

func (s *Server) handleStored(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.api.List(ctx)
	if err != nil {
		return toolError(fmt.Errorf("failed to list templates: %w", err))
	}
	if list.Total == 0 {
		return mcp.NewToolResultText("No stored templates"), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d stored template(s)\n", list.Total)
	for _, t := range list.Templates {
		fmt.Fprintf(&b, "\n%d. %s\n", t.ID, t.Name)
		fmt.Fprintf(&b, "   File: %s\n", t.FileName)
		fmt.Fprintf(&b, "   Fields: %d\n", len(t.FieldMappings))
		fmt.Fprintf(&b, "   Created: %s\n", t.CreatedAt)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleLoad(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	rawID, err := requireNumber(args, "id")
	if err != nil {
		return toolError(err)
	}
	if rawID <= 0 || rawID != math.Trunc(rawID) {
		return mcp.NewToolResultError("id must be a positive integer"), nil
	}
	scale, err := s.scaleArg(args)
	if err != nil {
		return toolError(err)
	}

	rec, err := s.api.Get(ctx, int64(rawID))
	if err != nil {
		return toolError(fmt.Errorf("failed to load template %d: %w", int64(rawID), err))
	}

	view, err := s.session.OpenExisting(ctx, rec, scale)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(fmt.Sprintf("Loaded template %d (%s) with %d mapping(s)",
		rec.ID, rec.Name, len(view.Mappings)), view)
}

func (s *Server) handleCancel(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.session.Cancel()
	return mcp.NewToolResultText("Editor reset"), nil
}
