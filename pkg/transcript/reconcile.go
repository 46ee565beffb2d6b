package transcript

import "sort"

// Reconcile merges candidates from any number of extractors: the first
// occurrence of each identity key wins, entries without text are dropped, and
// the result is ordered by timestamp. Ties keep encounter order.
func Reconcile(candidates []Entry) []Entry {
	acc := NewAccumulator()
	acc.Add(candidates)
	return acc.Entries()
}

// Accumulator is a dedup-on-insert entry set that grows across snapshots.
type Accumulator struct {
	seen    map[string]bool
	entries []Entry
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{seen: make(map[string]bool)}
}

// Add inserts entries not seen before and reports how many were new.
func (a *Accumulator) Add(entries []Entry) int {
	added := 0
	for _, e := range entries {
		if e.Text == "" {
			continue
		}
		key := e.Key()
		if a.seen[key] {
			continue
		}
		a.seen[key] = true
		a.entries = append(a.entries, e)
		added++
	}
	return added
}

// Len returns the number of distinct entries held.
func (a *Accumulator) Len() int {
	return len(a.entries)
}

// Entries returns a time-sorted copy of the accumulated entries.
func (a *Accumulator) Entries() []Entry {
	out := make([]Entry, len(a.entries))
	copy(out, a.entries)
	sortByTimestamp(out)
	return out
}

func sortByTimestamp(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return Seconds(entries[i].Timestamp) < Seconds(entries[j].Timestamp)
	})
}
