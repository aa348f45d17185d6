package editor

import (
	"context"
	"errors"

	"github.com/a3tai/mcp-template-mapper/internal/pdf"
	"github.com/a3tai/mcp-template-mapper/internal/template"
)

// State is the lifecycle state of an editor session
type State int

const (
	// StateEmpty has no document bound
	StateEmpty State = iota
	// StateLoaded has a rendered document and no selection
	StateLoaded
	// StateSelecting has a non-empty run selection awaiting assignment
	StateSelecting
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoaded:
		return "loaded"
	case StateSelecting:
		return "selecting"
	default:
		return "unknown"
	}
}

// Mode tells whether a save creates a new template or updates a stored one
type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

var (
	// ErrStaleRender is returned for a render superseded by a newer request
	ErrStaleRender = errors.New("render superseded by a newer request")

	// ErrNoDocument is returned for operations that need a loaded document
	ErrNoDocument = errors.New("no document loaded")

	// ErrRunIndex is returned when a selected run index is out of range
	ErrRunIndex = errors.New("text run index out of range")
)

// Renderer turns PDF bytes into a page at a zoom scale
type Renderer interface {
	Render(ctx context.Context, data []byte, scale float64) (*pdf.Page, error)
}

// Persister stores templates
type Persister interface {
	Create(ctx context.Context, req *template.CreateRequest) (*template.SaveResponse, error)
	Update(ctx context.Context, id int64, req *template.UpdateRequest) (*template.SaveResponse, error)
}

// View is a point-in-time copy of the session
type View struct {
	State      string                  `json:"state"`
	Mode       Mode                    `json:"mode"`
	TemplateID int64                   `json:"templateId,omitempty"`
	Name       string                  `json:"name"`
	FileName   string                  `json:"fileName,omitempty"`
	FileSize   int                     `json:"fileSize,omitempty"`
	Scale      float64                 `json:"scale,omitempty"`
	PageSize   pdf.PageSize            `json:"pageSize"`
	RunCount   int                     `json:"runCount"`
	Selection  []int                   `json:"selection"`
	CanAssign  bool                    `json:"canAssign"`
	Mappings   []template.FieldMapping `json:"mappings"`
	Generation uint64                  `json:"generation"`
}

// RenderResult is delivered by OpenAsync
type RenderResult struct {
	View View
	Err  error
}
