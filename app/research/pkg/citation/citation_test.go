package citation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/research_radar/app/research/pkg/model"
)

func intPtr(v int) *int { return &v }

func TestInline(t *testing.T) {
	got := Inline("See [Acme Corp](https://acme.example.com) for more.")
	assert.Equal(t, []model.Citation{{Title: "Acme Corp", URL: "https://acme.example.com"}}, got)
}

func TestInline_MultipleAndNonLinks(t *testing.T) {
	raw := "[One](https://a.example/1) and [Two](http://b.example/2?x=1). [not a link] (https://c.example) [ftp](ftp://d.example)"
	got := Inline(raw)
	require.Len(t, got, 2)
	assert.Equal(t, "One", got[0].Title)
	assert.Equal(t, "http://b.example/2?x=1", got[1].URL)
}

func TestInline_NoLinksReturnsEmpty(t *testing.T) {
	got := Inline("plain text")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestExtract_OrderAndNoDedup(t *testing.T) {
	raw := "Per [Acme](https://acme.example.com), revenue grew."
	annotations := []model.Annotation{
		{Title: "Acme", URL: "https://acme.example.com", StartIndex: intPtr(4), EndIndex: intPtr(40)},
		{Title: "", URL: "https://news.example.com/acme"},
		{Title: "dropped", URL: "  "},
	}

	got := Extract(raw, annotations)
	require.Len(t, got, 3)
	assert.Equal(t, model.Citation{Title: "Acme", URL: "https://acme.example.com"}, got[0])
	assert.Equal(t, "https://acme.example.com", got[1].URL)
	require.NotNil(t, got[1].StartIndex)
	assert.Equal(t, 4, *got[1].StartIndex)
	assert.Equal(t, 40, *got[1].EndIndex)
	assert.Equal(t, "https://news.example.com/acme", got[2].Title)
	assert.Nil(t, got[2].StartIndex)
}

func TestFromAnnotations_DoesNotAliasInput(t *testing.T) {
	annotations := []model.Annotation{{Title: "x", URL: "https://x.example", StartIndex: intPtr(1)}}
	got := FromAnnotations(annotations)
	*got[0].StartIndex = 99
	assert.Equal(t, 1, *annotations[0].StartIndex)
}
