package dom

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func mustParse(t *testing.T, markup string) *Document {
	t.Helper()
	doc, err := ParseString(markup)
	require.NoError(t, err)
	return doc
}

type recordSummary struct {
	Type    RecordType
	Target  string
	Added   int
	Removed int
	Attr    string
}

func summarize(recs []Record) []recordSummary {
	out := make([]recordSummary, 0, len(recs))
	for _, r := range recs {
		target := r.Target.Data
		out = append(out, recordSummary{
			Type:    r.Type,
			Target:  target,
			Added:   len(r.AddedNodes),
			Removed: len(r.RemovedNodes),
			Attr:    r.AttributeName,
		})
	}
	return out
}

func TestObserveDeliversOnFlush(t *testing.T) {
	doc := mustParse(t, `<html><body><div id="a"><p>hello</p></div></body></html>`)
	body := doc.Body()

	var batches [][]Record
	doc.Observe(body, ObserveOptions{ChildList: true, CharacterData: true, Subtree: true}, func(recs []Record) {
		batches = append(batches, recs)
	})

	div := body.FirstChild
	p := div.FirstChild
	doc.SetText(p.FirstChild, "bye")
	_, err := doc.AppendHTML(div, `<span>x</span><b>y</b>`)
	require.NoError(t, err)
	doc.SetAttr(div, "class", "ignored")

	assert.Empty(t, batches, "records must wait for Flush")
	assert.True(t, doc.Pending())
	require.NoError(t, doc.Flush())
	require.Len(t, batches, 1)

	want := []recordSummary{
		{Type: RecordCharacterData, Target: "bye"},
		{Type: RecordChildList, Target: "div", Added: 2},
	}
	if diff := cmp.Diff(want, summarize(batches[0])); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, doc.Pending())
}

func TestObserveWithoutSubtreeSeesOnlyTarget(t *testing.T) {
	doc := mustParse(t, `<div><p>a</p></div>`)
	body := doc.Body()
	var got []Record
	doc.Observe(body, ObserveOptions{ChildList: true, CharacterData: true}, func(recs []Record) {
		got = append(got, recs...)
	})

	doc.SetText(body.FirstChild.FirstChild.FirstChild, "b")
	doc.AppendChild(body, CreateElement("section"))
	require.NoError(t, doc.Flush())

	require.Len(t, got, 1)
	assert.Equal(t, RecordChildList, got[0].Type)
	assert.Equal(t, body, got[0].Target)
}

func TestFlushDeliversRecordsFromCallbacksInLaterRounds(t *testing.T) {
	doc := mustParse(t, `<p>one</p>`)
	text := doc.Body().FirstChild.FirstChild

	var seen []string
	doc.Observe(doc.Body(), ObserveOptions{CharacterData: true, Subtree: true}, func(recs []Record) {
		for _, r := range recs {
			seen = append(seen, r.Target.Data)
			if r.Target.Data == "two" {
				doc.SetText(r.Target, "three")
			}
		}
	})

	doc.SetText(text, "two")
	require.NoError(t, doc.Flush())
	assert.Equal(t, []string{"two", "three"}, seen)
}

func TestFlushLimit(t *testing.T) {
	doc := mustParse(t, `<p>x</p>`)
	doc.Observe(doc.Body(), ObserveOptions{CharacterData: true, Subtree: true}, func(recs []Record) {
		doc.SetText(recs[0].Target, recs[0].Target.Data+"x")
	})
	doc.SetText(doc.Body().FirstChild.FirstChild, "y")
	assert.ErrorIs(t, doc.Flush(), ErrFlushLimit)
}

func TestDisconnectDropsPendingRecords(t *testing.T) {
	doc := mustParse(t, `<p>x</p>`)
	calls := 0
	obs := doc.Observe(doc.Body(), ObserveOptions{CharacterData: true, Subtree: true}, func([]Record) {
		calls++
	})
	doc.SetText(doc.Body().FirstChild.FirstChild, "y")
	obs.Disconnect()
	doc.SetText(doc.Body().FirstChild.FirstChild, "z")
	require.NoError(t, doc.Flush())
	assert.Zero(t, calls)

	obs.Disconnect()
}

func TestRemoveChildRecordsParent(t *testing.T) {
	doc := mustParse(t, `<ul><li>a</li><li>b</li></ul>`)
	ul := doc.Body().FirstChild
	var got []Record
	doc.Observe(ul, ObserveOptions{ChildList: true}, func(recs []Record) { got = append(got, recs...) })

	li := ul.LastChild
	doc.RemoveChild(ul, li)
	require.NoError(t, doc.Flush())

	require.Len(t, got, 1)
	assert.Equal(t, []*html.Node{li}, got[0].RemovedNodes)
	assert.Nil(t, li.Parent)
}

func TestAppendChildMovesNode(t *testing.T) {
	doc := mustParse(t, `<div id="a"><b>x</b></div><div id="b"></div>`)
	a := doc.Body().FirstChild
	b := a.NextSibling
	var types []string
	doc.Observe(doc.Body(), ObserveOptions{ChildList: true, Subtree: true}, func(recs []Record) {
		for _, r := range recs {
			types = append(types, Attr(r.Target, "id"))
		}
	})
	doc.AppendChild(b, a.FirstChild)
	require.NoError(t, doc.Flush())
	assert.Equal(t, []string{"a", "b"}, types)
	assert.Nil(t, a.FirstChild)
	assert.Equal(t, "b", b.FirstChild.Data)
}
