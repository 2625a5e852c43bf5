package export

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func classesTable() Table {
	return Table{
		Title: "Classes",
		Columns: []Column{
			{Key: "id", Label: "Class ID", Width: 2},
			{Key: "slot", Label: "Slot"},
			{Key: "students"},
		},
		Rows: []map[string]string{
			{"id": "c1", "slot": "monday 10:00-11:00", "students": "s1, s2"},
			{"id": "c2", "slot": "tuesday 09:00-10:00"},
		},
	}
}

func TestCSVRendererSingleTable(t *testing.T) {
	out, err := NewCSVRenderer().Render("ignored", classesTable())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Class ID,Slot,students", lines[0])
	assert.Equal(t, `c1,monday 10:00-11:00,"s1, s2"`, lines[1])
	assert.Equal(t, "c2,tuesday 09:00-10:00,", lines[2])
}

func TestCSVRendererMultipleTables(t *testing.T) {
	conflicts := Table{Title: "Conflicts", Columns: []Column{{Key: "type", Label: "Type"}}, Rows: []map[string]string{{"type": "time_overlap"}}}

	out, err := NewCSVRenderer().Render("", classesTable(), conflicts)
	require.NoError(t, err)

	text := string(out)
	assert.True(t, strings.HasPrefix(text, "Classes\n"))
	assert.Contains(t, text, "\n\nConflicts\nType\ntime_overlap\n")
}

func TestRenderersRequireColumns(t *testing.T) {
	_, err := NewCSVRenderer().Render("", Table{Title: "empty"})
	assert.Error(t, err)
	_, err = NewPDFRenderer().Render("", Table{Title: "empty"})
	assert.Error(t, err)
	_, err = NewCSVRenderer().Render("")
	assert.Error(t, err)
}

func TestPDFRendererProducesDocument(t *testing.T) {
	table := classesTable()
	for i := 0; i < 80; i++ {
		table.Rows = append(table.Rows, map[string]string{"id": fmt.Sprintf("class-%d", i), "slot": strings.Repeat("long text ", 12)})
	}

	out, err := NewPDFRenderer().Render("Schedule course-1", table, Table{Title: "Conflicts", Columns: []Column{{Key: "type"}}})
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat(" PDF ")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, format)
	assert.Equal(t, "application/pdf", format.ContentType())

	format, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, format)

	_, err = ParseFormat("xlsx")
	assert.Error(t, err)
}
