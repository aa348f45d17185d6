// Package editor holds the editor session: the bound document, its text runs,
// the current selection and the ordered mapping list of the template being edited.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/a3tai/mcp-template-mapper/internal/formula"
	"github.com/a3tai/mcp-template-mapper/internal/pdf"
	"github.com/a3tai/mcp-template-mapper/internal/selection"
	"github.com/a3tai/mcp-template-mapper/internal/template"
)

// DefaultRenderTimeout bounds a single render when no timeout is configured
const DefaultRenderTimeout = 30 * time.Second

// Session is one live editor. All methods are safe for concurrent use. Renders
// run outside the lock; only the most recent render request may commit.
type Session struct {
	renderer      Renderer
	builder       *formula.Builder
	renderTimeout time.Duration
	logger        *log.Logger
	debug         bool

	mu         sync.Mutex
	state      State
	fileName   string
	data       []byte
	scale      float64
	page       *pdf.Page
	store      *template.Store
	selected   []int
	name       string
	templateID int64

	// generation increments on every render request and on Cancel
	generation uint64
	cancel     context.CancelFunc

	// document increments whenever the bound document is replaced or dropped
	document uint64

	// pending is the most recent document load that has not finished
	pending *loadRequest
}

// loadRequest is a requested document together with how to bind it
type loadRequest struct {
	data   []byte
	commit func(page *pdf.Page, scale float64)
}

// Option configures a Session
type Option func(*Session)

// WithRenderTimeout bounds each render
func WithRenderTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.renderTimeout = d
		}
	}
}

// WithLogger sets the logger; debug enables per-operation logging
func WithLogger(logger *log.Logger, debug bool) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
		s.debug = debug
	}
}

// NewSession creates an empty session
func NewSession(renderer Renderer, builder *formula.Builder, opts ...Option) *Session {
	if builder == nil {
		builder = formula.NewBuilder(nil)
	}
	s := &Session{
		renderer:      renderer,
		builder:       builder,
		renderTimeout: DefaultRenderTimeout,
		logger:        log.Default(),
		store:         &template.Store{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Builder returns the formula builder of the session
func (s *Session) Builder() *formula.Builder {
	return s.builder
}

func (s *Session) debugf(format string, args ...any) {
	if s.debug {
		s.logger.Printf("[editor] "+format, args...)
	}
}

// beginLoad reserves a generation for loading req and makes it the document
// later scale changes apply to
func (s *Session) beginLoad(ctx context.Context, req *loadRequest) (uint64, context.Context, context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = req
	return s.beginRenderLocked(ctx)
}

// beginRenderLocked reserves a new generation and cancels any in-flight render
func (s *Session) beginRenderLocked(ctx context.Context) (uint64, context.Context, context.CancelFunc) {
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	renderCtx, cancel := context.WithTimeout(ctx, s.renderTimeout)
	s.cancel = cancel
	return s.generation, renderCtx, cancel
}

// render runs the renderer for a reserved generation and commits the result
// under the lock when the generation is still current
func (s *Session) render(ctx context.Context, gen uint64, cancel context.CancelFunc,
	req *loadRequest, scale float64) (View, error) {
	defer cancel()

	started := time.Now()
	page, err := s.renderer.Render(ctx, req.data, scale)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		s.debugf("render %d discarded, current generation is %d", gen, s.generation)
		return View{}, ErrStaleRender
	}
	s.cancel = nil
	s.pending = nil

	if err != nil {
		return View{}, fmt.Errorf("render failed: %w", err)
	}

	req.commit(page, scale)
	s.debugf("render %d committed in %v: %d runs at scale %.2f", gen, time.Since(started), len(page.Runs), scale)
	return s.viewLocked(), nil
}

// Open binds a new document, replacing the current one and its mappings once
// the render succeeds. On failure the previous state is kept.
func (s *Session) Open(ctx context.Context, fileName string, data []byte, scale float64) (View, error) {
	req := s.openRequest(fileName, data)
	gen, renderCtx, cancel := s.beginLoad(ctx, req)
	return s.render(renderCtx, gen, cancel, req, scale)
}

// OpenAsync is Open without blocking the caller. A later request supersedes
// this one even if it was issued before this render started.
func (s *Session) OpenAsync(ctx context.Context, fileName string, data []byte, scale float64) <-chan RenderResult {
	req := s.openRequest(fileName, data)
	gen, renderCtx, cancel := s.beginLoad(ctx, req)
	out := make(chan RenderResult, 1)
	go func() {
		defer close(out)
		view, err := s.render(renderCtx, gen, cancel, req, scale)
		out <- RenderResult{View: view, Err: err}
	}()
	return out
}

func (s *Session) openRequest(fileName string, data []byte) *loadRequest {
	doc := append([]byte(nil), data...)
	return &loadRequest{
		data: doc,
		commit: func(page *pdf.Page, scale float64) {
			s.bindLocked(fileName, doc, scale, page, &template.Store{})
			s.name = fileName
			s.templateID = 0
		},
	}
}

// OpenExisting loads a stored template for editing. Saves then update it in place.
func (s *Session) OpenExisting(ctx context.Context, rec *template.Record, scale float64) (View, error) {
	if rec == nil {
		return View{}, errors.New("template record is nil")
	}
	data, err := rec.DecodeFile()
	if err != nil {
		return View{}, err
	}
	store, err := template.NewStore(rec.FieldMappings)
	if err != nil {
		return View{}, fmt.Errorf("template %d: %w", rec.ID, err)
	}

	req := &loadRequest{
		data: data,
		commit: func(page *pdf.Page, scale float64) {
			s.bindLocked(rec.FileName, data, scale, page, store)
			s.name = rec.Name
			s.templateID = rec.ID
		},
	}
	gen, renderCtx, cancel := s.beginLoad(ctx, req)
	return s.render(renderCtx, gen, cancel, req, scale)
}

func (s *Session) bindLocked(fileName string, data []byte, scale float64, page *pdf.Page, store *template.Store) {
	s.fileName = fileName
	s.data = data
	s.scale = scale
	s.page = page
	s.store = store
	s.selected = nil
	s.state = StateLoaded
	s.document++
}

// SetScale re-renders the most recently requested document. While a load is
// still in flight that document is rendered at the new scale in its place.
// Mappings of a bound document are kept since they are stored at scale 1;
// the selection is cleared.
func (s *Session) SetScale(ctx context.Context, scale float64) (View, error) {
	s.mu.Lock()
	req := s.pending
	if req == nil {
		if s.state == StateEmpty {
			s.mu.Unlock()
			return View{}, ErrNoDocument
		}
		req = &loadRequest{
			data: s.data,
			commit: func(page *pdf.Page, scale float64) {
				s.scale = scale
				s.page = page
				s.selected = nil
				s.state = StateLoaded
			},
		}
	}
	gen, renderCtx, cancel := s.beginRenderLocked(ctx)
	s.mu.Unlock()

	return s.render(renderCtx, gen, cancel, req, scale)
}

// Select resolves a screen rectangle at the current scale. An empty result
// leaves no selection.
func (s *Session) Select(rect selection.Rect) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateEmpty {
		return nil, ErrNoDocument
	}

	indices, err := selection.Resolve(rect, s.scale, s.page.Runs)
	if err != nil {
		return nil, err
	}
	s.setSelectionLocked(indices)
	s.debugf("rectangle %+v selected %d runs", rect, len(indices))
	return append([]int(nil), indices...), nil
}

// SelectRuns selects runs by index. It replaces any previous selection.
func (s *Session) SelectRuns(indices []int) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateEmpty {
		return nil, ErrNoDocument
	}

	seen := make(map[int]bool, len(indices))
	unique := make([]int, 0, len(indices))
	for _, i := range indices {
		if i < 0 || i >= len(s.page.Runs) {
			return nil, fmt.Errorf("%w: %d", ErrRunIndex, i)
		}
		if !seen[i] {
			seen[i] = true
			unique = append(unique, i)
		}
	}
	sort.Ints(unique)

	s.setSelectionLocked(unique)
	return append([]int(nil), unique...), nil
}

func (s *Session) setSelectionLocked(indices []int) {
	if len(indices) == 0 {
		s.selected = nil
		s.state = StateLoaded
		return
	}
	s.selected = indices
	s.state = StateSelecting
}

// ClearSelection drops the current selection
func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateSelecting {
		s.setSelectionLocked(nil)
	}
}

// Assign binds a formula to the selected runs and appends the resulting mapping
func (s *Session) Assign(text string) (template.FieldMapping, formula.Resolution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateEmpty:
		return template.FieldMapping{}, formula.Resolution{}, ErrNoDocument
	case StateLoaded:
		return template.FieldMapping{}, formula.Resolution{}, template.ErrNoSelection
	}

	runs := selection.Runs(s.page.Runs, s.selected)
	m, res, err := s.builder.Build(text, runs)
	if err != nil {
		return template.FieldMapping{}, formula.Resolution{}, err
	}
	if err := s.store.Add(m); err != nil {
		return template.FieldMapping{}, formula.Resolution{}, err
	}
	if len(res.Unresolved) > 0 {
		s.debugf("mapping %s has unresolved placeholders: %s", m.ID, strings.Join(res.Unresolved, ", "))
	}

	s.setSelectionLocked(nil)
	return m, res, nil
}

// Add appends a prepared mapping
func (s *Session) Add(m template.FieldMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateEmpty {
		return ErrNoDocument
	}
	return s.store.Add(m)
}

// Remove deletes a mapping by id
func (s *Session) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateEmpty {
		return ErrNoDocument
	}
	return s.store.Remove(id)
}

// Update patches a mapping by id
func (s *Session) Update(id string, patch template.Patch) (template.FieldMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateEmpty {
		return template.FieldMapping{}, ErrNoDocument
	}
	return s.store.Update(id, patch)
}

// SetName sets the template name used on save
func (s *Session) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

// Save validates the session and sends it to the persister. The first save of
// a new document creates a template and switches the session to edit mode.
// On failure nothing in the session changes.
func (s *Session) Save(ctx context.Context, p Persister) (*template.SaveResponse, error) {
	return s.SaveAs(ctx, p, "")
}

// SaveAs is Save under a new template name. The name is kept by the session
// only when the save succeeds; a blank name keeps the current one.
func (s *Session) SaveAs(ctx context.Context, p Persister, rename string) (*template.SaveResponse, error) {
	s.mu.Lock()
	name := strings.TrimSpace(s.name)
	if strings.TrimSpace(rename) != "" {
		name = strings.TrimSpace(rename)
	}
	mappings := s.store.List()
	fileName := s.fileName
	data := s.data
	templateID := s.templateID
	doc := s.document
	s.mu.Unlock()

	if name == "" {
		return nil, &template.ValidationError{Field: "name", Message: "template name is required"}
	}
	if len(mappings) == 0 {
		return nil, &template.ValidationError{Field: "fieldMappings", Message: "no fields have been assigned"}
	}
	if templateID == 0 && len(data) == 0 {
		return nil, &template.ValidationError{Field: "file", Message: "no document is bound"}
	}

	if templateID != 0 {
		resp, err := p.Update(ctx, templateID, &template.UpdateRequest{
			Name:          name,
			FileName:      fileName,
			FieldMappings: mappings,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to update template %d: %w", templateID, err)
		}
		s.commitName(doc, rename)
		s.debugf("template %d updated with %d mappings", templateID, len(mappings))
		return resp, nil
	}

	resp, err := p.Create(ctx, &template.CreateRequest{
		Name:          name,
		FileName:      fileName,
		FileData:      template.EncodeFile(data),
		FieldMappings: mappings,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}

	s.mu.Lock()
	if s.document == doc && s.templateID == 0 && resp.ID != 0 {
		s.templateID = resp.ID
	}
	s.mu.Unlock()
	s.commitName(doc, rename)

	s.debugf("template %d created with %d mappings", resp.ID, len(mappings))
	return resp, nil
}

// commitName applies a name used by a successful save, unless the document
// was replaced meanwhile
func (s *Session) commitName(doc uint64, rename string) {
	if strings.TrimSpace(rename) == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.document == doc {
		s.name = rename
	}
}

// Cancel discards the document, mappings and any in-flight render
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.generation++
	s.document++
	s.pending = nil

	s.state = StateEmpty
	s.fileName = ""
	s.data = nil
	s.scale = 0
	s.page = nil
	s.store = &template.Store{}
	s.selected = nil
	s.name = ""
	s.templateID = 0
}

// Snapshot returns a copy of the session state
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	v := View{
		State:      s.state.String(),
		Mode:       ModeCreate,
		TemplateID: s.templateID,
		Name:       s.name,
		FileName:   s.fileName,
		FileSize:   len(s.data),
		Scale:      s.scale,
		Selection:  append([]int{}, s.selected...),
		CanAssign:  s.state == StateSelecting,
		Mappings:   s.store.List(),
		Generation: s.generation,
	}
	if s.templateID != 0 {
		v.Mode = ModeEdit
	}
	if s.page != nil {
		v.PageSize = s.page.Size
		v.RunCount = len(s.page.Runs)
	}
	return v
}

// Page returns the current rendered page
func (s *Session) Page() (*pdf.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateEmpty {
		return nil, ErrNoDocument
	}
	return s.page, nil
}

// Runs returns a copy of the current text runs
func (s *Session) Runs() []pdf.TextRun {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.page == nil {
		return nil
	}
	return append([]pdf.TextRun(nil), s.page.Runs...)
}

// SelectedRuns returns a copy of the selected runs
func (s *Session) SelectedRuns() []pdf.TextRun {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.page == nil {
		return nil
	}
	return selection.Runs(s.page.Runs, s.selected)
}
