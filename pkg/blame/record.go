// Package blame folds per-line authorship records into ranked contributor
// tallies.
package blame

import (
	"context"
	"iter"
	"time"
)

// Record is the attribution of one line of one file.
type Record struct {
	// Author is the raw identity reported by git, usually "Name <email>".
	Author string
	// File is the path the line belongs to.
	File string
	// Line is the 1-based line number.
	Line int
	// Commit is the SHA of the commit that last touched the line.
	Commit string
	// AuthorTime is the author timestamp of Commit.
	AuthorTime time.Time
}

// Source produces the blame records of a single file. The returned sequence
// is lazy and must be consumed at most once. A failure is yielded as the last
// element with a zero Record; it wraps one of ErrFileNotFound, ErrUntracked,
// ErrEmptyFile or ErrToolFailure.
type Source interface {
	Blame(ctx context.Context, path string) iter.Seq2[Record, error]
}

// KeyFunc maps a raw identity to the grouping key of its contributor.
type KeyFunc func(raw string) string

// Records adapts a slice to a record sequence.
func Records(records ...Record) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for _, rec := range records {
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// Failed returns a sequence yielding only err.
func Failed(err error) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		yield(Record{}, err)
	}
}
