package gitlib

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/blame/pkg/blame"
)

const (
	maxPorcelainLine = 1 << 20
	shaLength        = 40
)

// header holds the per-commit metadata of porcelain output. With
// --porcelain it is only printed for the first line of a commit, with
// --line-porcelain it is repeated for every line.
type header struct {
	author     string
	mail       string
	authorTime time.Time
}

func (h header) identity() string {
	switch {
	case h.mail == "" || h.mail == "<>":
		return h.author
	case h.author == "":
		return h.mail
	default:
		return h.author + " " + h.mail
	}
}

// ParsePorcelain parses `git blame --porcelain` or `--line-porcelain` output
// into records as it is read. Malformed input yields an error wrapping
// blame.ErrToolFailure as the last element.
func ParsePorcelain(r io.Reader, path string) iter.Seq2[blame.Record, error] {
	return func(yield func(blame.Record, error) bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxPorcelainLine)

		headers := make(map[string]*header)

		var (
			current *header
			sha     string
			line    int
			lineNo  int
		)

		for scanner.Scan() {
			text := scanner.Text()
			lineNo++

			if current == nil {
				var err error

				sha, line, err = parseLineHeader(text)
				if err != nil {
					yield(blame.Record{}, fmt.Errorf("%w: line %d: %w", blame.ErrToolFailure, lineNo, err))

					return
				}

				current = headers[sha]
				if current == nil {
					current = &header{}
					headers[sha] = current
				}

				continue
			}

			if strings.HasPrefix(text, "\t") {
				rec := blame.Record{
					Author:     current.identity(),
					File:       path,
					Line:       line,
					Commit:     sha,
					AuthorTime: current.authorTime,
				}

				current = nil

				if !yield(rec, nil) {
					return
				}

				continue
			}

			current.apply(text)
		}

		err := scanner.Err()
		if err != nil {
			yield(blame.Record{}, fmt.Errorf("%w: read porcelain: %w", blame.ErrToolFailure, err))

			return
		}

		if current != nil {
			yield(blame.Record{}, fmt.Errorf("%w: truncated porcelain output", blame.ErrToolFailure))
		}
	}
}

// parseLineHeader parses "<sha> <orig-line> <final-line> [<group-size>]".
func parseLineHeader(text string) (string, int, error) {
	fields := strings.Fields(text)
	if len(fields) < 3 || len(fields) > 4 || len(fields[0]) != shaLength {
		return "", 0, fmt.Errorf("unexpected header %q", text)
	}

	line, err := strconv.Atoi(fields[2])
	if err != nil || line <= 0 {
		return "", 0, fmt.Errorf("bad line number in %q", text)
	}

	return fields[0], line, nil
}

func (h *header) apply(text string) {
	key, value, _ := strings.Cut(text, " ")

	switch key {
	case "author":
		h.author = value
	case "author-mail":
		h.mail = value
	case "author-time":
		secs, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			h.authorTime = time.Unix(secs, 0).UTC()
		}
	}
}
