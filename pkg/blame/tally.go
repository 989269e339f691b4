package blame

import (
	"cmp"
	"iter"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/blame/pkg/identity"
)

// Tally accumulates the lines attributed to one contributor.
type Tally struct {
	// Key is the grouping key.
	Key string
	// DisplayName is the name the contributor is shown under: the name
	// carrying the most lines, ties broken lexicographically.
	DisplayName string
	// Username is the external username, set by ResolveRanking.
	Username string
	// Lines is the number of attributed lines.
	Lines int
	// LastTouched is the most recent author time among the lines.
	LastTouched time.Time

	files   map[string]struct{}
	commits map[string]int
	names   map[string]int
}

func newTally(key string) *Tally {
	return &Tally{
		Key:     key,
		files:   make(map[string]struct{}),
		commits: make(map[string]int),
		names:   make(map[string]int),
	}
}

func (t *Tally) add(rec Record) {
	t.Lines++
	t.files[rec.File] = struct{}{}
	t.names[identity.DisplayName(rec.Author)]++

	if rec.Commit != "" {
		t.commits[rec.Commit]++
	}

	if rec.AuthorTime.After(t.LastTouched) {
		t.LastTouched = rec.AuthorTime
	}
}

func (t *Tally) merge(other *Tally) {
	t.Lines += other.Lines

	for file := range other.files {
		t.files[file] = struct{}{}
	}

	for sha, n := range other.commits {
		t.commits[sha] += n
	}

	for name, n := range other.names {
		t.names[name] += n
	}

	if other.LastTouched.After(t.LastTouched) {
		t.LastTouched = other.LastTouched
	}
}

func (t *Tally) clone() *Tally {
	c := *t
	c.files = maps.Clone(t.files)
	c.commits = maps.Clone(t.commits)
	c.names = maps.Clone(t.names)

	return &c
}

// pickDisplayName returns the name with the most lines; ties go to the
// lexicographically smallest name so the choice is independent of merge order.
func (t *Tally) pickDisplayName() string {
	best, bestLines := "", -1

	for name, n := range t.names {
		if n > bestLines || (n == bestLines && name < best) {
			best, bestLines = name, n
		}
	}

	if best == "" {
		return t.Key
	}

	return best
}

// Files returns the touched paths in lexical order.
func (t *Tally) Files() []string {
	return slices.Sorted(maps.Keys(t.files))
}

// FileCount returns the number of distinct touched paths.
func (t *Tally) FileCount() int {
	return len(t.files)
}

// Commits returns the commit SHAs, those carrying the most lines first.
func (t *Tally) Commits() []string {
	return slices.SortedFunc(maps.Keys(t.commits), func(a, b string) int {
		return cmp.Or(cmp.Compare(t.commits[b], t.commits[a]), strings.Compare(a, b))
	})
}

// CommitCount returns the number of distinct commits.
func (t *Tally) CommitCount() int {
	return len(t.commits)
}

// Names returns every display name seen for the contributor, sorted.
func (t *Tally) Names() []string {
	return slices.Sorted(maps.Keys(t.names))
}

// Table is the accumulator of one aggregation: tallies keyed by grouping key.
// A Table is not safe for concurrent use; concurrent folds each use their own
// Table and are combined with Merge.
type Table struct {
	tallies map[string]*Tally
	records int
}

// NewTable creates an empty Table.
func NewTable() *Table {
	return &Table{tallies: make(map[string]*Tally)}
}

// Add counts one record under key.
func (t *Table) Add(key string, rec Record) {
	tally, ok := t.tallies[key]
	if !ok {
		tally = newTally(key)
		t.tallies[key] = tally
	}

	tally.add(rec)
	t.records++
}

// Merge folds other into t. Merge is commutative and associative; other is
// left untouched.
func (t *Table) Merge(other *Table) {
	if other == nil {
		return
	}

	for key, theirs := range other.tallies {
		ours, ok := t.tallies[key]
		if !ok {
			t.tallies[key] = theirs.clone()

			continue
		}

		ours.merge(theirs)
	}

	t.records += other.records
}

// Len returns the number of distinct contributors.
func (t *Table) Len() int {
	return len(t.tallies)
}

// Records returns the number of records added, directly or through Merge.
func (t *Table) Records() int {
	return t.records
}

// Tallies iterates over the tallies in unspecified order.
func (t *Table) Tallies() iter.Seq[*Tally] {
	return maps.Values(t.tallies)
}

// Fold consumes records into table, keying each by key. It stops at the
// first error and returns it; records consumed before the error stay in table.
func Fold(table *Table, records iter.Seq2[Record, error], key KeyFunc) error {
	for rec, err := range records {
		if err != nil {
			return err
		}

		table.Add(key(rec.Author), rec)
	}

	return nil
}
