package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCandidates() []Entry {
	return []Entry{
		{Speaker: "Bob", Timestamp: "1:05", Text: "Hi Alice"},
		{Speaker: "Alice", Timestamp: "1:02", Text: "Hello there"},
		{Speaker: "Alice", Timestamp: "1:02", Text: "Hello there"},
		{Speaker: "Carol", Timestamp: "1:00:00", Text: "An hour in"},
		{Speaker: "Dave", Timestamp: "0:30", Text: ""},
		{Speaker: "Eve", Timestamp: "odd", Text: "Unparseable time"},
	}
}

func TestReconcile_DedupesAndSorts(t *testing.T) {
	got := Reconcile(sampleCandidates())

	require.Len(t, got, 4)
	assert.Equal(t, "Eve", got[0].Speaker, "unparseable timestamps sort as zero")
	assert.Equal(t, "Alice", got[1].Speaker)
	assert.Equal(t, "Bob", got[2].Speaker)
	assert.Equal(t, "Carol", got[3].Speaker)
}

func TestReconcile_Idempotent(t *testing.T) {
	entries := sampleCandidates()

	once := Reconcile(entries)
	assert.Equal(t, once, Reconcile(once))
	assert.Equal(t, once, Reconcile(append(append([]Entry{}, entries...), entries...)))
}

func TestReconcile_NonDecreasing(t *testing.T) {
	got := Reconcile([]Entry{
		{Speaker: "A", Timestamp: "3:00", Text: "c"},
		{Speaker: "B", Timestamp: "0:59", Text: "a"},
		{Speaker: "C", Timestamp: "1:00:00", Text: "d"},
		{Speaker: "D", Timestamp: "1:00", Text: "b"},
	})

	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, Seconds(got[i-1].Timestamp), Seconds(got[i].Timestamp))
	}
}

func TestReconcile_TiesKeepEncounterOrder(t *testing.T) {
	got := Reconcile([]Entry{
		{Speaker: "First", Timestamp: "1:00", Text: "one"},
		{Speaker: "Second", Timestamp: "1:00", Text: "two"},
	})

	require.Len(t, got, 2)
	assert.Equal(t, "First", got[0].Speaker)
	assert.Equal(t, "Second", got[1].Speaker)
}

func TestReconcile_Empty(t *testing.T) {
	assert.Empty(t, Reconcile(nil))
}

func TestAccumulator(t *testing.T) {
	acc := NewAccumulator()

	assert.Equal(t, 2, acc.Add([]Entry{
		{Speaker: "Bob", Timestamp: "0:10", Text: "later"},
		{Speaker: "Alice", Timestamp: "0:05", Text: "earlier"},
	}))
	assert.Equal(t, 1, acc.Add([]Entry{
		{Speaker: "Alice", Timestamp: "0:05", Text: "earlier"},
		{Speaker: "Alice", Timestamp: "0:05", Text: "earlier, edited"},
	}))
	assert.Equal(t, 3, acc.Len())

	got := acc.Entries()
	assert.Equal(t, "earlier", got[0].Text)
	assert.Equal(t, "earlier, edited", got[1].Text)
	assert.Equal(t, "later", got[2].Text)
}

func TestEntry_KeyAndValid(t *testing.T) {
	e := Entry{Speaker: "Alice", Timestamp: "1:02", Text: "Hello"}

	assert.Equal(t, "Alice|1:02|Hello", e.Key())
	assert.True(t, e.Valid())
	assert.False(t, Entry{Speaker: "Alice", Text: "  "}.Valid())
	assert.False(t, Entry{Text: "Hello"}.Valid())
}
