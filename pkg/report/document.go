// Package report renders contributor rankings for terminals, machines and browsers.
package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/blame/pkg/blame"
)

// Format selects the output encoding.
type Format string

// Supported formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatPlot Format = "plot"
)

// ErrUnknownFormat is returned by ParseFormat for unsupported values.
var ErrUnknownFormat = errors.New("unknown output format")

// ParseFormat converts a configuration value into a Format.
func ParseFormat(value string) (Format, error) {
	switch format := Format(strings.ToLower(strings.TrimSpace(value))); format {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatYAML, FormatPlot:
		return format, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, value)
	}
}

// Contributor is one ranked row of a report.
type Contributor struct {
	Rank        int       `json:"rank"                   yaml:"rank"`
	Name        string    `json:"name"                   yaml:"name"`
	Key         string    `json:"key"                    yaml:"key"`
	Username    string    `json:"username,omitempty"     yaml:"username,omitempty"`
	Lines       int       `json:"lines"                  yaml:"lines"`
	Share       float64   `json:"share"                  yaml:"share"`
	Files       int       `json:"files"                  yaml:"files"`
	Commits     int       `json:"commits"                yaml:"commits"`
	LastTouched time.Time `json:"last_touched,omitzero"  yaml:"last_touched,omitempty"`
	Aliases     []string  `json:"aliases,omitempty"      yaml:"aliases,omitempty"`
}

// Label is the name shown for the contributor: the external username when
// resolved, the display name otherwise.
func (c Contributor) Label() string {
	if c.Username != "" {
		return c.Username
	}

	return c.Name
}

// Failure is a file excluded from the ranking.
type Failure struct {
	Path  string `json:"path"  yaml:"path"`
	Kind  string `json:"kind"  yaml:"kind"`
	Error string `json:"error" yaml:"error"`
}

// Document is the serializable form of a run.
type Document struct {
	Root         string        `json:"root,omitempty"     yaml:"root,omitempty"`
	Files        int           `json:"files"              yaml:"files"`
	TotalLines   int           `json:"total_lines"        yaml:"total_lines"`
	Contributors []Contributor `json:"contributors"       yaml:"contributors"`
	Failures     []Failure     `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// Top returns the highest-ranked contributor.
func (d Document) Top() (Contributor, bool) {
	if len(d.Contributors) == 0 {
		return Contributor{}, false
	}

	return d.Contributors[0], true
}

// Build converts a ranking into a Document. rel shortens failure paths for
// display; nil keeps them as they are.
func Build(root string, result blame.Result, ranking blame.Ranking, rel func(string) string) Document {
	if rel == nil {
		rel = func(path string) string { return path }
	}

	doc := Document{
		Root:         root,
		Files:        result.Files,
		TotalLines:   ranking.Total(),
		Contributors: make([]Contributor, 0, len(ranking)),
	}

	for i, tally := range ranking {
		contributor := Contributor{
			Rank:        i + 1,
			Name:        tally.DisplayName,
			Key:         tally.Key,
			Username:    tally.Username,
			Lines:       tally.Lines,
			Share:       ranking.Share(tally),
			Files:       tally.FileCount(),
			Commits:     tally.CommitCount(),
			LastTouched: tally.LastTouched,
		}

		if names := tally.Names(); len(names) > 1 {
			contributor.Aliases = names
		}

		doc.Contributors = append(doc.Contributors, contributor)
	}

	for _, failure := range result.Failures {
		doc.Failures = append(doc.Failures, Failure{
			Path:  rel(failure.Path),
			Kind:  string(failure.Kind()),
			Error: failure.Err.Error(),
		})
	}

	return doc
}
