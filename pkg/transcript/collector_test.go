package transcript

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/recap-cli/pkg/dom"
	rcerrors "github.com/otherjamesbrown/recap-cli/pkg/errors"
	"github.com/otherjamesbrown/recap-cli/pkg/logging"
)

func noSleep(context.Context, time.Duration) error { return nil }

type recordingObserver struct {
	mu           sync.Mutex
	iterations   map[string]int
	added        map[string]int
	terminations []string
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{iterations: map[string]int{}, added: map[string]int{}}
}

func (o *recordingObserver) Iteration(variant string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.iterations[variant]++
}

func (o *recordingObserver) EntriesAdded(variant string, n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.added[variant] += n
}

func (o *recordingObserver) Terminated(variant, reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.terminations = append(o.terminations, variant+":"+reason)
}

// fakeContainer never moves unless moves is set.
type fakeContainer struct {
	id      string
	metrics dom.Metrics
	text    string
	moves   bool
	scrolls int
}

func (c *fakeContainer) ID() string { return c.id }

func (c *fakeContainer) Metrics(context.Context) (dom.Metrics, error) { return c.metrics, nil }

func (c *fakeContainer) Text(context.Context) (string, error) { return c.text, nil }

func (c *fakeContainer) ScrollTo(_ context.Context, top float64) error {
	if c.moves {
		c.metrics.ScrollTop = top
	}
	return nil
}

func (c *fakeContainer) ScrollBy(_ context.Context, delta float64) error {
	c.scrolls++
	if c.moves {
		c.metrics.ScrollTop += delta
	}
	return nil
}

type fakePage struct {
	doc         *dom.Document
	containers  []dom.Container
	snapshotErr error
}

func (p *fakePage) URL() string { return "https://teams.example.com/fake" }

func (p *fakePage) Snapshot(context.Context) (*dom.Document, error) {
	if p.snapshotErr != nil {
		return nil, p.snapshotErr
	}
	return p.doc, nil
}

func (p *fakePage) Containers(context.Context) ([]dom.Container, error) { return p.containers, nil }

func panelText() string {
	return "Alice 0:01\n" + strings.Repeat("transcript text ", 10)
}

func scrollable(height float64) dom.Metrics {
	return dom.Metrics{OverflowY: dom.OverflowAuto, ScrollHeight: height, ClientHeight: 400}
}

func TestFindScrollContainers_FiltersAndOrders(t *testing.T) {
	page := &fakePage{containers: []dom.Container{
		&fakeContainer{id: "outer", metrics: scrollable(5000), text: panelText()},
		&fakeContainer{id: "chat", metrics: scrollable(900), text: strings.Repeat("no times here ", 20)},
		&fakeContainer{id: "short", metrics: scrollable(800), text: "Alice 0:01 hi"},
		&fakeContainer{id: "hidden", metrics: dom.Metrics{OverflowY: "hidden", ScrollHeight: 900, ClientHeight: 400}, text: panelText()},
		&fakeContainer{id: "tight", metrics: scrollable(440), text: panelText()},
		&fakeContainer{id: "panel", metrics: scrollable(1200), text: panelText()},
		&fakeContainer{id: "middle", metrics: scrollable(3000), text: panelText()},
		&fakeContainer{id: "big", metrics: scrollable(9000), text: panelText()},
	}}

	got, err := FindScrollContainers(context.Background(), page, DefaultCollectorConfig())
	require.NoError(t, err)

	ids := make([]string, len(got))
	for i, c := range got {
		ids[i] = c.ID()
	}
	assert.Equal(t, []string{"panel", "middle", "outer"}, ids)
}

func TestScrollCollector_StopsWhenContainerNeverMoves(t *testing.T) {
	// Scenario D
	doc := parseDoc(t, `<div>Alice 1:02<br>Hello there<br>Bob 1:05<br>Hi Alice</div>`)
	panel := &fakeContainer{id: "panel", metrics: scrollable(2000), text: panelText()}
	page := &fakePage{doc: doc, containers: []dom.Container{panel}}
	obs := newRecordingObserver()

	cfg := DefaultCollectorConfig()
	collector := NewScrollCollector(cfg, NewPipeline(nil, DefaultExtractors()...), logging.NewNopLogger(),
		WithSleep(noSleep), WithObserver(obs))

	entries, err := collector.Collect(context.Background(), page)
	require.NoError(t, err)

	assert.Len(t, entries, 2)
	assert.Equal(t, cfg.StuckThreshold, panel.scrolls)
	assert.Less(t, panel.scrolls, cfg.MaxIterations)
	assert.Equal(t, []string{"scroll:stuck"}, obs.terminations)
	assert.Equal(t, 2, obs.added[VariantScroll])
}

func TestScrollCollector_IterationCeiling(t *testing.T) {
	doc := parseDoc(t, `<div>Alice 1:02<br>Hello there</div>`)
	panel := &fakeContainer{id: "panel", metrics: scrollable(1_000_000), text: panelText(), moves: true}
	page := &fakePage{doc: doc, containers: []dom.Container{panel}}
	obs := newRecordingObserver()

	cfg := DefaultCollectorConfig()
	cfg.MaxIterations = 7
	collector := NewScrollCollector(cfg, NewPipeline(nil, DefaultExtractors()...), nil,
		WithSleep(noSleep), WithObserver(obs))

	entries, err := collector.Collect(context.Background(), page)
	require.NoError(t, err)

	assert.Len(t, entries, 1)
	assert.Equal(t, 7, panel.scrolls)
	assert.Equal(t, []string{"scroll:ceiling"}, obs.terminations)
}

func replayFrame(entries ...string) string {
	var b strings.Builder
	b.WriteString(`<div id="transcript">`)
	for _, e := range entries {
		b.WriteString(`<div class="turn">` + e + `</div>`)
	}
	b.WriteString(`</div>`)
	return b.String()
}

func turn(speaker, ts, text string) string {
	return fmt.Sprintf("<div>%s %s</div><div>%s</div>", speaker, ts, text)
}

func TestScrollCollector_CollectsVirtualizedPanel(t *testing.T) {
	capture := &dom.Capture{
		URL:       "https://teams.example.com/recap",
		Container: dom.CaptureContainer{ID: "transcript", ScrollHeight: 1200, ClientHeight: 400},
		Frames: []dom.CaptureFrame{
			{ScrollTop: 0, HTML: replayFrame(
				turn("Alice", "0:01", "Welcome everyone to the weekly planning session"),
				turn("Bob", "0:15", "Thanks Alice, I have a few updates to share today"))},
			{ScrollTop: 400, HTML: replayFrame(
				turn("Bob", "0:15", "Thanks Alice, I have a few updates to share today"),
				turn("Carol", "1:20", "The release branch was cut yesterday afternoon"))},
			{ScrollTop: 800, HTML: replayFrame(
				turn("Dave", "2:05", "Great, let us wrap up and meet again next week"))},
		},
	}
	page, err := dom.NewReplayPage(capture)
	require.NoError(t, err)

	collector := NewScrollCollector(DefaultCollectorConfig(), NewPipeline(nil, DefaultExtractors()...), nil, WithSleep(noSleep))

	entries, err := collector.Collect(context.Background(), page)
	require.NoError(t, err)

	speakers := make([]string, len(entries))
	for i, e := range entries {
		speakers[i] = e.Speaker
	}
	assert.Equal(t, []string{"Alice", "Bob", "Carol", "Dave"}, speakers)
	// One reset, two moving steps, then three stuck ones
	assert.Equal(t, 1+5, page.ScrollCalls())
}

func TestScrollCollector_NoContainerExtractsOnce(t *testing.T) {
	doc := parseDoc(t, `<div aria-label="Carol, 2:15, Can everyone hear me?"></div>`)
	obs := newRecordingObserver()
	collector := NewScrollCollector(DefaultCollectorConfig(), NewPipeline(nil, DefaultExtractors()...), nil,
		WithSleep(noSleep), WithObserver(obs))

	entries, err := collector.Collect(context.Background(), dom.NewStaticPage(doc))
	require.NoError(t, err)

	require.Len(t, entries, 1)
	assert.Equal(t, []string{"scroll:no_container"}, obs.terminations)
}

func TestScrollCollector_PropagatesPageFailures(t *testing.T) {
	boom := errors.New("frame detached")
	page := &fakePage{
		containers:  []dom.Container{&fakeContainer{id: "panel", metrics: scrollable(2000), text: panelText()}},
		snapshotErr: boom,
	}
	collector := NewScrollCollector(DefaultCollectorConfig(), NewPipeline(nil, DefaultExtractors()...), nil, WithSleep(noSleep))

	_, err := collector.Collect(context.Background(), page)
	assert.ErrorIs(t, err, boom)
}

func TestScrollCollector_HonoursCancellation(t *testing.T) {
	page := &fakePage{
		doc:        parseDoc(t, `<p>nothing</p>`),
		containers: []dom.Container{&fakeContainer{id: "panel", metrics: scrollable(2000), text: panelText()}},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	collector := NewScrollCollector(DefaultCollectorConfig(), NewPipeline(nil, DefaultExtractors()...), nil)

	_, err := collector.Collect(ctx, page)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSleep(t *testing.T) {
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
	assert.NoError(t, Sleep(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}

func cellHTML(speaker, ts, body string) string {
	return fmt.Sprintf(`<div class="ms-List-cell"><div>%s</div><div>1 minute</div><div>%s</div><div>%s 1 minute</div><div>%s</div></div>`,
		speaker, ts, speaker, body)
}

func TestCellCollector_StopsAfterNoMovementLimit(t *testing.T) {
	doc := parseDoc(t, `<div id="list" data-is-scrollable="true">`+
		cellHTML("Bob", "0:20", "Second")+
		cellHTML("Alice", "0:10", "First")+
		cellHTML("Bob", "0:20", "Second")+
		`<div class="ms-List-cell"><div>Alice started transcription</div></div></div>`)
	list := &fakeContainer{id: "list", metrics: dom.Metrics{OverflowY: "hidden"}}
	page := &fakePage{doc: doc, containers: []dom.Container{
		&fakeContainer{id: "other", metrics: scrollable(5000)},
		list,
	}}
	obs := newRecordingObserver()

	cfg := DefaultCollectorConfig()
	entries, err := NewCellCollector(cfg, nil, WithSleep(noSleep), WithObserver(obs)).Collect(context.Background(), page)
	require.NoError(t, err)

	assert.Equal(t, cfg.CellNoMoveLimit, list.scrolls, "selector match wins over the tallest container")
	require.Len(t, entries, 2)
	assert.Equal(t, "First", entries[0].Text)
	assert.Equal(t, "Second", entries[1].Text)
	assert.Equal(t, cfg.CellNoMoveLimit, obs.iterations[VariantCells])
}

func TestCellCollector_FallsBackToTallestContainer(t *testing.T) {
	doc := parseDoc(t, `<div>`+cellHTML("Alice", "0:10", "First")+`</div>`)
	small := &fakeContainer{id: "small", metrics: scrollable(800)}
	tall := &fakeContainer{id: "tall", metrics: scrollable(4000)}
	page := &fakePage{doc: doc, containers: []dom.Container{small, tall}}

	entries, err := NewCellCollector(DefaultCollectorConfig(), nil, WithSleep(noSleep)).Collect(context.Background(), page)
	require.NoError(t, err)

	assert.Len(t, entries, 1)
	assert.Zero(t, small.scrolls)
	assert.Equal(t, DefaultCellNoMoveLimit, tall.scrolls)
}

func TestCellCollector_MissingContainerIsStructural(t *testing.T) {
	page := dom.NewStaticPage(parseDoc(t, `<div>`+cellHTML("Alice", "0:10", "First")+`</div>`))
	obs := newRecordingObserver()

	_, err := NewCellCollector(DefaultCollectorConfig(), nil, WithSleep(noSleep), WithObserver(obs)).Collect(context.Background(), page)

	require.Error(t, err)
	assert.True(t, rcerrors.IsStructural(err))
	assert.Equal(t, []string{"cells:no_container"}, obs.terminations)
}

func TestCellCollector_ReplayAccumulatesAcrossFrames(t *testing.T) {
	capture := &dom.Capture{
		Container: dom.CaptureContainer{ID: "list", ScrollHeight: 900, ClientHeight: 400},
		Frames: []dom.CaptureFrame{
			{ScrollTop: 0, HTML: `<div id="list" data-is-scrollable="true">` + cellHTML("Alice", "0:10", "First") + cellHTML("Bob", "0:20", "Second") + `</div>`},
			{ScrollTop: 400, HTML: `<div id="list" data-is-scrollable="true">` + cellHTML("Bob", "0:20", "Second") + cellHTML("Carol", "0:30", "Third") + `</div>`},
		},
	}
	page, err := dom.NewReplayPage(capture)
	require.NoError(t, err)

	entries, err := NewCellCollector(DefaultCollectorConfig(), nil, WithSleep(noSleep)).Collect(context.Background(), page)
	require.NoError(t, err)

	require.Len(t, entries, 3)
	assert.Equal(t, []string{"First", "Second", "Third"}, []string{entries[0].Text, entries[1].Text, entries[2].Text})
}
