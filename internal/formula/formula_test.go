package formula

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-template-mapper/internal/catalog"
	"github.com/a3tai/mcp-template-mapper/internal/pdf"
	"github.com/a3tai/mcp-template-mapper/internal/template"
)

func sequence() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id%d", n)
	}
}

func TestTokens(t *testing.T) {
	tests := []struct {
		formula string
		want    []string
	}{
		{formula: "", want: []string{}},
		{formula: "plain text", want: []string{}},
		{formula: "<Фамилия> <Имя>", want: []string{"Фамилия", "Имя"}},
		{formula: "< Фамилия >", want: []string{" Фамилия "}},
		{formula: "<<Имя>>", want: []string{"Имя"}},
		{formula: "<a<b>", want: []string{"b"}},
		{formula: "<>", want: []string{""}},
		{formula: "unclosed <Имя", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokens(tt.formula))
		})
	}
}

func TestBuild_CompositeFormula(t *testing.T) {
	b := NewBuilder(nil, WithIDGenerator(sequence()))
	runs := []pdf.TextRun{
		{Text: "Иванов", X: 100, Y: 200, Width: 80, Height: 20, FontSize: 20, FontFamily: "Arial"},
		{Text: "Пётр", X: 190, Y: 202, Width: 50, Height: 18, FontSize: 18, FontFamily: "Times"},
	}

	m, res, err := b.Build("<Фамилия> <Имя>", runs)
	require.NoError(t, err)

	assert.Equal(t, []string{"lastName", "firstName"}, res.Keys)
	assert.Empty(t, res.Unresolved)
	assert.True(t, strings.HasPrefix(m.FieldName, CompositePrefix))
	assert.True(t, strings.HasPrefix(m.ID, MappingIDPrefix))
	assert.NotEqual(t, strings.TrimPrefix(m.FieldName, CompositePrefix), strings.TrimPrefix(m.ID, MappingIDPrefix))
	assert.Equal(t, "<Фамилия> <Имя>", m.FieldLabel)
	assert.Equal(t, "<Фамилия> <Имя>", m.Text)
	assert.Equal(t, pdf.FirstPage, m.Page)

	assert.Equal(t, 100.0, m.X)
	assert.Equal(t, 200.0, m.Y)
	assert.Equal(t, 140.0, m.Width)
	assert.Equal(t, 20.0, m.Height)
	assert.Equal(t, 20.0, m.FontSize)
	assert.Equal(t, "Arial", m.FontFamily)
}

func TestBuild_SingleFieldWithLiteralText(t *testing.T) {
	b := NewBuilder(nil)
	runs := []pdf.TextRun{{Text: "x", X: 1, Y: 2, Width: 3, Height: 4, FontSize: 4}}

	m, res, err := b.Build("Водитель: <Фамилия>", runs)
	require.NoError(t, err)

	assert.Equal(t, "lastName", m.FieldName)
	assert.Equal(t, []string{"lastName"}, res.Keys)
	assert.Equal(t, "Водитель: <Фамилия>", m.FieldLabel)
}

func TestBuild_UnresolvedPlaceholders(t *testing.T) {
	b := NewBuilder(nil)
	runs := []pdf.TextRun{{Text: "x", Width: 10, Height: 10}}

	m, res, err := b.Build("<Unknown>", runs)
	require.NoError(t, err)

	assert.Empty(t, res.Keys)
	assert.Equal(t, []string{"Unknown"}, res.Unresolved)
	assert.True(t, strings.HasPrefix(m.FieldName, CompositePrefix))
	assert.Equal(t, "<Unknown>", m.FieldLabel)

	m, res, err = b.Build("Итого", runs)
	require.NoError(t, err)
	assert.Empty(t, res.Keys)
	assert.Empty(t, res.Unresolved)
	assert.True(t, strings.HasPrefix(m.FieldName, CompositePrefix))
}

func TestBuild_RepeatedPlaceholderIsComposite(t *testing.T) {
	b := NewBuilder(nil)
	runs := []pdf.TextRun{{Text: "x", Width: 10, Height: 10}}

	m, res, err := b.Build("<Фамилия> / <Фамилия>", runs)
	require.NoError(t, err)

	assert.Equal(t, []string{"lastName", "lastName"}, res.Keys)
	assert.Equal(t, []string{"lastName"}, res.UniqueKeys())
	assert.True(t, strings.HasPrefix(m.FieldName, CompositePrefix))
}

func TestBuild_Errors(t *testing.T) {
	b := NewBuilder(nil)
	runs := []pdf.TextRun{{Text: "x", Width: 10, Height: 10}}

	_, _, err := b.Build("   ", runs)
	assert.ErrorIs(t, err, ErrEmptyFormula)

	_, _, err = b.Build("<Фамилия>", nil)
	assert.ErrorIs(t, err, template.ErrNoSelection)
}

func TestBuild_IDsAreUnique(t *testing.T) {
	b := NewBuilder(nil)
	runs := []pdf.TextRun{{Text: "x", Width: 10, Height: 10}}

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		m, _, err := b.Build("<Фамилия> <Имя>", runs)
		require.NoError(t, err)
		assert.False(t, seen[m.ID], "duplicate id %s", m.ID)
		assert.False(t, seen[m.FieldName], "duplicate composite name %s", m.FieldName)
		seen[m.ID] = true
		seen[m.FieldName] = true
	}
}

// Re-resolving a stored label yields the same keys as at assignment time.
func TestResolve_RoundTrip(t *testing.T) {
	b := NewBuilder(nil)
	runs := []pdf.TextRun{{Text: "x", Width: 10, Height: 10}}

	formulas := []string{
		"<Фамилия> <Имя> <Отчество>",
		"ИНН <Заказчик: ИНН>, КПП <Заказчик: КПП>",
		"<Гос. номер тягача>/<Гос. номер прицепа>",
		"<Объем (м³)> м³",
		"<nope> <Марка>",
	}

	for _, f := range formulas {
		m, res, err := b.Build(f, runs)
		require.NoError(t, err)
		assert.Equal(t, res.Keys, b.Resolve(m.FieldLabel).Keys, f)
	}
}

func TestResolve_CustomCatalog(t *testing.T) {
	c, err := catalog.New([]catalog.Field{{Key: "sku", Label: "Артикул", Group: "warehouse"}})
	require.NoError(t, err)

	b := NewBuilder(c)
	assert.Same(t, c, b.Catalog())
	assert.Equal(t, []string{"sku"}, b.Resolve("<Артикул>").Keys)
	assert.Equal(t, []string{"Фамилия"}, b.Resolve("<Фамилия>").Unresolved)
}

func TestExpand(t *testing.T) {
	b := NewBuilder(nil)
	values := map[string]string{
		"lastName":  "Иванов",
		"firstName": "Пётр",
	}

	tests := []struct {
		formula string
		want    string
	}{
		{formula: "<Фамилия> <Имя>", want: "Иванов Пётр"},
		{formula: "Водитель: <Фамилия>", want: "Водитель: Иванов"},
		{formula: "<Фамилия> <Отчество>", want: "Иванов <Отчество>"},
		{formula: "<Unknown> <Имя>", want: "<Unknown> Пётр"},
		{formula: "no placeholders", want: "no placeholders"},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			assert.Equal(t, tt.want, b.Expand(tt.formula, values))
		})
	}
}
