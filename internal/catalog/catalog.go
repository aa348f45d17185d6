// Package catalog holds the closed list of data fields a template placeholder may reference.
package catalog

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Group identifies the source table a field belongs to. Groups are presentation only.
type Group string

const (
	GroupContracts   Group = "contracts"
	GroupDrivers     Group = "drivers"
	GroupVehicles    Group = "vehicles"
	GroupContractors Group = "contractors"
)

var groupLabels = map[Group]string{
	GroupContracts:   "Договор-Заявка",
	GroupDrivers:     "Водители",
	GroupVehicles:    "Автомобили",
	GroupContractors: "Контрагенты",
}

// groupOrder is the display order of the built-in groups
var groupOrder = []Group{GroupContracts, GroupDrivers, GroupVehicles, GroupContractors}

// Label returns the display label of the group, or the raw name for unknown groups
func (g Group) Label() string {
	if label, ok := groupLabels[g]; ok {
		return label
	}
	return string(g)
}

var (
	ErrEmptyLabel     = errors.New("catalog field label is empty")
	ErrEmptyKey       = errors.New("catalog field key is empty")
	ErrDuplicateLabel = errors.New("duplicate catalog field label")
	ErrNoFields       = errors.New("catalog has no fields")
)

// Field is a single catalog entry. Keys are not unique across groups; labels are.
type Field struct {
	Key   string `json:"value" mapstructure:"value"`
	Label string `json:"label" mapstructure:"label"`
	Group Group  `json:"group" mapstructure:"group"`
}

// GroupInfo summarizes one group for listings
type GroupInfo struct {
	Name  Group  `json:"value"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Catalog is an immutable, label-indexed list of fields
type Catalog struct {
	fields  []Field
	byLabel map[string]int
}

// New builds a catalog, rejecting empty and duplicate labels
func New(fields []Field) (*Catalog, error) {
	if len(fields) == 0 {
		return nil, ErrNoFields
	}

	c := &Catalog{
		fields:  make([]Field, len(fields)),
		byLabel: make(map[string]int, len(fields)),
	}
	copy(c.fields, fields)

	for i, f := range c.fields {
		if f.Label == "" {
			return nil, fmt.Errorf("field %d: %w", i, ErrEmptyLabel)
		}
		if strings.TrimSpace(f.Key) == "" {
			return nil, fmt.Errorf("field %q: %w", f.Label, ErrEmptyKey)
		}
		if _, exists := c.byLabel[f.Label]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateLabel, f.Label)
		}
		c.byLabel[f.Label] = i
	}

	return c, nil
}

// LookupLabel finds the field whose label matches exactly
func (c *Catalog) LookupLabel(label string) (Field, bool) {
	i, ok := c.byLabel[label]
	if !ok {
		return Field{}, false
	}
	return c.fields[i], true
}

// Fields returns a copy of all fields in catalog order
func (c *Catalog) Fields() []Field {
	out := make([]Field, len(c.fields))
	copy(out, c.fields)
	return out
}

// Group returns the fields of one group in catalog order
func (c *Catalog) Group(g Group) []Field {
	out := make([]Field, 0)
	for _, f := range c.fields {
		if f.Group == g {
			out = append(out, f)
		}
	}
	return out
}

// Groups lists the groups present in the catalog. Built-in groups come first in
// their display order, followed by any custom groups in order of first appearance.
func (c *Catalog) Groups() []GroupInfo {
	counts := make(map[Group]int)
	var custom []Group
	for _, f := range c.fields {
		if _, seen := counts[f.Group]; !seen {
			if _, builtin := groupLabels[f.Group]; !builtin {
				custom = append(custom, f.Group)
			}
		}
		counts[f.Group]++
	}

	out := make([]GroupInfo, 0, len(counts))
	for _, g := range append(append([]Group{}, groupOrder...), custom...) {
		if n := counts[g]; n > 0 {
			out = append(out, GroupInfo{Name: g, Label: g.Label(), Count: n})
		}
	}
	return out
}

// Len returns the number of fields
func (c *Catalog) Len() int {
	return len(c.fields)
}

// LoadFile reads a catalog from a YAML (or any viper-supported) file of the form
//
//	fields:
//	  - value: lastName
//	    label: Фамилия
//	    group: drivers
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return nil, errors.New("catalog path is empty")
	}

	v := viper.New()
	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}

	var fields []Field
	if err := v.UnmarshalKey("fields", &fields); err != nil {
		return nil, fmt.Errorf("failed to decode catalog %s: %w", path, err)
	}

	c, err := New(fields)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog %s: %w", path, err)
	}
	return c, nil
}

// Load returns the catalog at path, or the built-in catalog when path is empty
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}
