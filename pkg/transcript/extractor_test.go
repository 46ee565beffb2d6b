package transcript

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/recap-cli/pkg/dom"
	"github.com/otherjamesbrown/recap-cli/pkg/logging"
)

func parseDoc(t *testing.T, html string) *dom.Document {
	t.Helper()
	doc, err := dom.ParseString(html, "https://teams.example.com/meet/recap")
	require.NoError(t, err)
	return doc
}

func TestSeconds(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"1:05", 65},
		{"1:00:05", 3605},
		{"0:00", 0},
		{"12:45", 765},
		{"", 0},
		{"garbage", 0},
		{"1:xx", 0},
		{"1:2:3:4", 0},
		{"1:", 60},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Seconds(tt.in))
		})
	}
}

func TestInlineExtractor_HeaderAndBody(t *testing.T) {
	// Scenario A
	doc := parseDoc(t, `<div>Alice 1:02<br>Hello there<br>Bob 1:05<br>Hi Alice</div>`)

	entries := NewInlineExtractor().Extract(doc)

	require.Len(t, entries, 2)
	assert.Equal(t, Entry{Speaker: "Alice", Timestamp: "1:02", Text: "Hello there"}, entries[0])
	assert.Equal(t, Entry{Speaker: "Bob", Timestamp: "1:05", Text: "Hi Alice"}, entries[1])
}

func TestInlineExtractor_MultiLineBodyAndMultiWordSpeaker(t *testing.T) {
	doc := parseDoc(t, `<div><div>Mary Jane 1:00:05</div><div>First part</div><div>second part</div></div>`)

	entries := Reconcile(NewInlineExtractor().Extract(doc))

	require.Len(t, entries, 1)
	assert.Equal(t, "Mary Jane", entries[0].Speaker)
	assert.Equal(t, "1:00:05", entries[0].Timestamp)
	assert.Equal(t, "First part second part", entries[0].Text)
}

func TestInlineExtractor_DropsNoiseLines(t *testing.T) {
	doc := parseDoc(t, `<div>Alice 1:02<br>Alice started transcription<br>AI-generated content may be incorrect<br>Search results<br>Real words</div>`)

	entries := NewInlineExtractor().Extract(doc)

	require.Len(t, entries, 1)
	assert.Equal(t, "Real words", entries[0].Text)
	for _, e := range entries {
		assert.NotContains(t, e.Text, "started transcription")
		assert.NotContains(t, e.Text, "AI-generated")
	}
}

func TestInlineExtractor_DirectNoiseKeepsSearch(t *testing.T) {
	entries := NewInlineExtractor(DirectInlineNoise...).ParseText("Alice 1:02\nSearch the docs\nAI-generated")

	require.Len(t, entries, 1)
	assert.Equal(t, "Search the docs", entries[0].Text)
}

func TestInlineExtractor_SkipsUnsuitableBlocks(t *testing.T) {
	long := "Alice 1:02\n" + strings.Repeat("word ", 500)
	tests := []struct {
		name string
		html string
	}{
		{"too short", `<p>Al 1:02</p>`},
		{"too long", `<p>` + strings.ReplaceAll(long, "\n", "<br>") + `</p>`},
		{"header without body", `<div>Alice Jones 1:02</div>`},
		{"body without header", `<div>just some chatter here</div>`},
		{"too many children", `<section><div>` + strings.Repeat(`<span>x</span>`, 6) + `</div></section>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, NewInlineExtractor().Extract(parseDoc(t, tt.html)))
		})
	}
}

func TestInlineExtractor_HeaderShapes(t *testing.T) {
	x := NewInlineExtractor()

	assert.Empty(t, x.ParseText("alice 1:02\nHello there"))

	entries := x.ParseText("Jo D'arcy-lee 0:07\nHello there")
	require.Len(t, entries, 1)
	assert.Equal(t, "Jo D'arcy-lee", entries[0].Speaker)
}

func TestLabelExtractor(t *testing.T) {
	// Scenario B
	doc := parseDoc(t, `<div aria-label="Carol, 2:15, Can everyone hear me?"></div>`)

	entries := NewLabelExtractor().Extract(doc)

	require.Len(t, entries, 1)
	assert.Equal(t, Entry{Speaker: "Carol", Timestamp: "2:15", Text: "Can everyone hear me?"}, entries[0])
}

func TestLabelExtractor_FallsBackToRenderedText(t *testing.T) {
	doc := parseDoc(t, `<div aria-label="Dan Lee, 1:10:00"><span>Spoken words</span></div>
		<div aria-label="Eve, 0:05,"></div>
		<button aria-label="Close"></button>`)

	entries := NewLabelExtractor().Extract(doc)

	require.Len(t, entries, 1)
	assert.Equal(t, Entry{Speaker: "Dan Lee", Timestamp: "1:10:00", Text: "Spoken words"}, entries[0])
}

func TestParseCell(t *testing.T) {
	// Scenario C
	raw := strings.Join([]string{"Dave", "5 minutes 2 seconds", "5:02", "Dave 5 minutes 2 seconds", "Let's begin", "the meeting"}, "\n")

	e, ok := ParseCell(raw)

	require.True(t, ok)
	assert.Equal(t, Entry{Speaker: "Dave", Timestamp: "5:02", Text: "Let's begin the meeting"}, e)
}

func TestParseCell_Rejects(t *testing.T) {
	_, ok := ParseCell("Dave\n5 minutes\n5:02\nDave 5 minutes")
	assert.False(t, ok, "too few lines")

	_, ok = ParseCell("Dave\n5 minutes\n5:02\nDave\nDave started transcription")
	assert.False(t, ok, "system event")
}

func TestCellExtractor_SkipsSeenCellsUntilReset(t *testing.T) {
	doc := parseDoc(t, `<div class="ms-List-cell"><div>Dave</div><div>5 minutes 2 seconds</div><div>5:02</div><div>Dave 5 minutes 2 seconds</div><div>Let's begin</div></div>`)
	x := NewCellExtractor("")

	assert.Len(t, x.Extract(doc), 1)
	assert.Empty(t, x.Extract(doc))

	x.Reset()
	assert.Len(t, x.Extract(doc), 1)
}

type panickingExtractor struct{}

func (panickingExtractor) Name() string { return "broken" }

func (panickingExtractor) Extract(*dom.Document) []Entry { panic("boom") }

func TestPipeline_RecoversFailingStrategy(t *testing.T) {
	doc := parseDoc(t, `<div aria-label="Carol, 2:15, Can everyone hear me?"></div>`)
	p := NewPipeline(logging.NewNopLogger(), panickingExtractor{}, NewLabelExtractor())

	entries := p.Run(doc)

	require.Len(t, entries, 1)
	assert.Equal(t, "Carol", entries[0].Speaker)
}

func TestPipeline_DeduplicatesAcrossStrategies(t *testing.T) {
	// Scenario E
	doc := parseDoc(t, `<div>Alice 1:02<br>Hello there</div>
		<div aria-label="Alice, 1:02, Hello there"></div>`)
	p := NewPipeline(nil, DefaultExtractors()...)

	candidates := p.Candidates(doc)
	entries := p.Run(doc)

	assert.Greater(t, len(candidates), 1)
	require.Len(t, entries, 1)
	assert.Equal(t, Entry{Speaker: "Alice", Timestamp: "1:02", Text: "Hello there"}, entries[0])
}

func TestFrameExtractors_AddsCellStrategy(t *testing.T) {
	names := make([]string, 0)
	for _, x := range FrameExtractors(DefaultCollectorConfig()) {
		names = append(names, x.Name())
	}
	assert.Equal(t, []string{ExtractorInline, ExtractorLabel, ExtractorCell}, names)
}
