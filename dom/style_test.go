package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeStyle(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		attr      string
		prop      string
		value     string
		important bool
		want      string
	}{
		{"empty", "", "color", "black", true, "color: black !important;"},
		{"append", "margin: 0", "color", "black", false, "margin: 0; color: black;"},
		{"replace_keeps_position", "color: red; margin: 0", "color", "black", true, "color: black !important; margin: 0;"},
		{"collapses_duplicates", "color: red; color: blue", "COLOR", "black", true, "color: black !important;"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := MergeStyle(tc.attr, tc.prop, tc.value, tc.important)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, got, MergeStyle(got, tc.prop, tc.value, tc.important), "merge must be idempotent")
		})
	}
}

func TestStylePropertyImportantWins(t *testing.T) {
	doc := mustParse(t, `<b style="color: red !important; color: blue">x</b>`)
	b := doc.Body().FirstChild
	val, important := StyleProperty(b, "color")
	assert.Equal(t, "red", val)
	assert.True(t, important)
}

func TestSetStylePropertySkipsUnchangedWrite(t *testing.T) {
	doc := mustParse(t, `<b>x</b>`)
	b := doc.Body().FirstChild
	writes := 0
	doc.Observe(b, ObserveOptions{Attributes: true}, func(recs []Record) { writes += len(recs) })

	doc.SetStyleProperty(b, "outline", "none", true)
	doc.SetStyleProperty(b, "outline", "none", true)
	require.NoError(t, doc.Flush())

	assert.Equal(t, 1, writes)
	assert.Equal(t, "outline: none !important;", Attr(b, "style"))
}
