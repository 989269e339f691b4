package blame

import (
	"cmp"
	"slices"
	"strings"
)

// Ranking lists contributors by descending line count. Ties are broken by
// display name, then by grouping key, so every ranking is a total order and
// identical input always produces identical output.
type Ranking []*Tally

// Rank snapshots the table into a Ranking. Later changes to the table do not
// affect the returned ranking.
func (t *Table) Rank() Ranking {
	ranking := make(Ranking, 0, len(t.tallies))

	for _, tally := range t.tallies {
		entry := tally.clone()
		entry.DisplayName = entry.pickDisplayName()
		ranking = append(ranking, entry)
	}

	slices.SortFunc(ranking, compareTallies)

	return ranking
}

func compareTallies(a, b *Tally) int {
	return cmp.Or(
		cmp.Compare(b.Lines, a.Lines),
		strings.Compare(a.DisplayName, b.DisplayName),
		strings.Compare(a.Key, b.Key),
	)
}

// Total returns the number of lines across all contributors.
func (r Ranking) Total() int {
	total := 0
	for _, tally := range r {
		total += tally.Lines
	}

	return total
}

// Top returns the highest-ranked contributor.
func (r Ranking) Top() (*Tally, bool) {
	if len(r) == 0 {
		return nil, false
	}

	return r[0], true
}

// Share returns the percentage of all lines attributed to tally.
func (r Ranking) Share(tally *Tally) float64 {
	total := r.Total()
	if total == 0 {
		return 0
	}

	return float64(tally.Lines) / float64(total) * percent
}

const percent = 100
