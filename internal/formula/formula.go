// Package formula parses field formulas and turns a selection into a field mapping.
//
// A formula is literal text interleaved with <Label> placeholders, for example
// "<Фамилия> <Имя>". Labels are looked up exactly against the field catalog.
package formula

import (
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/a3tai/mcp-template-mapper/internal/catalog"
	"github.com/a3tai/mcp-template-mapper/internal/pdf"
	"github.com/a3tai/mcp-template-mapper/internal/template"
)

const (
	// CompositePrefix prefixes synthesized field names of multi-field formulas
	CompositePrefix = "composite_"

	// MappingIDPrefix prefixes generated mapping ids
	MappingIDPrefix = "field_"
)

// ErrEmptyFormula is returned when a formula has no content
var ErrEmptyFormula = errors.New("formula is empty")

var placeholderPattern = regexp.MustCompile(`<([^<>]*)>`)

// Tokens returns the placeholder labels of a formula in order of appearance.
// Labels are returned verbatim, without trimming.
func Tokens(formula string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(formula, -1)
	tokens := make([]string, 0, len(matches))
	for _, m := range matches {
		tokens = append(tokens, m[1])
	}
	return tokens
}

// Resolution is the outcome of looking up every placeholder of a formula
type Resolution struct {
	// Keys of resolved placeholders in order of appearance, duplicates kept
	Keys []string `json:"keys"`

	// Unresolved labels in order of appearance
	Unresolved []string `json:"unresolved,omitempty"`
}

// UniqueKeys returns Keys de-duplicated by first appearance
func (r Resolution) UniqueKeys() []string {
	seen := make(map[string]bool, len(r.Keys))
	out := make([]string, 0, len(r.Keys))
	for _, k := range r.Keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

// Single reports the key when exactly one placeholder resolved
func (r Resolution) Single() (string, bool) {
	if len(r.Keys) == 1 {
		return r.Keys[0], true
	}
	return "", false
}

// Builder resolves formulas against a catalog and builds mappings
type Builder struct {
	catalog *catalog.Catalog
	newID   func() string
}

// Option configures a Builder
type Option func(*Builder)

// WithIDGenerator replaces the uuid source used for mapping ids and composite names
func WithIDGenerator(gen func() string) Option {
	return func(b *Builder) {
		b.newID = gen
	}
}

// NewBuilder returns a builder over c, or the built-in catalog when c is nil
func NewBuilder(c *catalog.Catalog, opts ...Option) *Builder {
	if c == nil {
		c = catalog.Default()
	}
	b := &Builder{
		catalog: c,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Catalog returns the catalog the builder resolves against
func (b *Builder) Catalog() *catalog.Catalog {
	return b.catalog
}

// Resolve looks up every placeholder of the formula
func (b *Builder) Resolve(formula string) Resolution {
	res := Resolution{Keys: make([]string, 0)}
	for _, label := range Tokens(formula) {
		if field, ok := b.catalog.LookupLabel(label); ok {
			res.Keys = append(res.Keys, field.Key)
		} else {
			res.Unresolved = append(res.Unresolved, label)
		}
	}
	return res
}

// Build creates a mapping from the formula and the selected runs. The box is the
// union of the runs and the font is taken from the first run.
func (b *Builder) Build(formula string, runs []pdf.TextRun) (template.FieldMapping, Resolution, error) {
	if strings.TrimSpace(formula) == "" {
		return template.FieldMapping{}, Resolution{}, ErrEmptyFormula
	}

	box, ok := pdf.UnionBox(runs)
	if !ok {
		return template.FieldMapping{}, Resolution{}, template.ErrNoSelection
	}

	res := b.Resolve(formula)

	fieldName, single := res.Single()
	if !single {
		fieldName = CompositePrefix + b.newID()
	}

	first := runs[0]
	m := template.FieldMapping{
		ID:         MappingIDPrefix + b.newID(),
		FieldName:  fieldName,
		FieldLabel: formula,
		X:          box.X,
		Y:          box.Y,
		Width:      box.Width,
		Height:     box.Height,
		Page:       pdf.FirstPage,
		FontSize:   first.FontSize,
		FontFamily: first.FontFamily,
		Text:       formula,
	}
	return m, res, nil
}

// Expand substitutes resolved placeholders with values keyed by field key.
// Unresolved placeholders, and resolved ones with no value, stay verbatim.
func (b *Builder) Expand(formula string, values map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(formula, func(token string) string {
		label := token[1 : len(token)-1]
		field, ok := b.catalog.LookupLabel(label)
		if !ok {
			return token
		}
		if v, ok := values[field.Key]; ok {
			return v
		}
		return token
	})
}
