package blame_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/blame/pkg/blame"
)

func TestRank_OrdersByLinesDescending(t *testing.T) {
	t.Parallel()

	table := tableOf(t,
		rec("A <a@x.io>", "f", 1, "c1"),
		rec("A <a@x.io>", "f", 2, "c1"),
		rec("B <b@x.io>", "f", 3, "c2"),
	)

	ranking := table.Rank()

	top, ok := ranking.Top()
	require.True(t, ok)
	assert.Equal(t, "a@x.io", top.Key)
	assert.Equal(t, 2, top.Lines)
	assert.Equal(t, 3, ranking.Total())
}

func TestRank_TiesBreakByName(t *testing.T) {
	t.Parallel()

	table := tableOf(t,
		rec("Zed <z@x.io>", "f", 1, "c1"),
		rec("Amy <y@x.io>", "f", 2, "c2"),
	)

	ranking := table.Rank()
	require.Len(t, ranking, 2)
	assert.Equal(t, "Amy", ranking[0].DisplayName)
	assert.Equal(t, "Zed", ranking[1].DisplayName)
}

func TestRank_IsDeterministic(t *testing.T) {
	t.Parallel()

	records := []blame.Record{
		rec("Same <one@x.io>", "f", 1, "c1"),
		rec("Same <two@x.io>", "f", 2, "c2"),
		rec("Other <o@x.io>", "f", 3, "c3"),
	}

	want := rows(tableOf(t, records...).Rank())
	for range 20 {
		assert.Equal(t, want, rows(tableOf(t, records...).Rank()))
	}

	assert.Equal(t, "one@x.io", want[1].Key)
	assert.Equal(t, "two@x.io", want[2].Key)
}

func TestRank_SnapshotIsIndependentOfTable(t *testing.T) {
	t.Parallel()

	table := tableOf(t, rec("A <a@x.io>", "f", 1, "c1"))
	ranking := table.Rank()

	require.NoError(t, blame.Fold(table, blame.Records(rec("A <a@x.io>", "f", 2, "c1")), func(string) string {
		return "a@x.io"
	}))

	assert.Equal(t, 1, ranking[0].Lines)
}

func TestRanking_Share(t *testing.T) {
	t.Parallel()

	table := tableOf(t,
		rec("A <a@x.io>", "f", 1, "c1"),
		rec("A <a@x.io>", "f", 2, "c1"),
		rec("A <a@x.io>", "f", 3, "c1"),
		rec("B <b@x.io>", "f", 4, "c2"),
	)

	ranking := table.Rank()
	assert.InDelta(t, 75.0, ranking.Share(ranking[0]), 0.001)
	assert.InDelta(t, 25.0, ranking.Share(ranking[1]), 0.001)
}

func TestRanking_Empty(t *testing.T) {
	t.Parallel()

	var ranking blame.Ranking

	_, ok := ranking.Top()
	assert.False(t, ok)
	assert.Equal(t, 0, ranking.Total())
	assert.Zero(t, ranking.Share(&blame.Tally{Lines: 1}))
}
