package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"
)

// orange is the 24-bit color of contributor names.
var orange = [3]int{255, 135, 0}

// Options configures a Writer.
type Options struct {
	Format Format
	// Verbose lists every contributor instead of the top one.
	Verbose bool
	// OnlyName prints bare names, one per line.
	OnlyName bool
	// Color enables ANSI colors in text output.
	Color bool
	// Now anchors relative times. Nil uses time.Now.
	Now func() time.Time
}

// Writer renders documents to an output stream.
type Writer struct {
	out  io.Writer
	opts Options

	name *color.Color
	dim  *color.Color
}

// NewWriter creates a Writer.
func NewWriter(out io.Writer, opts Options) *Writer {
	if opts.Format == "" {
		opts.Format = FormatText
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}

	w := &Writer{
		out:  out,
		opts: opts,
		name: color.RGB(orange[0], orange[1], orange[2]),
		dim:  color.New(color.Faint),
	}

	for _, c := range []*color.Color{w.name, w.dim} {
		if opts.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	return w
}

// Write renders doc in the configured format.
func (w *Writer) Write(doc Document) error {
	if w.opts.OnlyName {
		return w.writeNames(doc)
	}

	switch w.opts.Format {
	case FormatJSON:
		return w.writeJSON(doc)
	case FormatYAML:
		return w.writeYAML(doc)
	case FormatPlot:
		return writePlot(w.out, doc)
	case FormatText:
		if w.opts.Verbose {
			return w.writeTable(doc)
		}

		return w.writeTop(doc)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, w.opts.Format)
	}
}

func (w *Writer) writeNames(doc Document) error {
	contributors := doc.Contributors
	if !w.opts.Verbose && len(contributors) > 1 {
		contributors = contributors[:1]
	}

	for _, c := range contributors {
		_, err := fmt.Fprintln(w.out, c.Label())
		if err != nil {
			return fmt.Errorf("write name: %w", err)
		}
	}

	return nil
}

func (w *Writer) writeTop(doc Document) error {
	top, ok := doc.Top()
	if !ok {
		return nil
	}

	line := w.name.Sprint(top.Label()) + "  " +
		fmt.Sprintf("%5.1f%%", top.Share) + "  " +
		w.dim.Sprintf("(last touched %s)", w.since(top.LastTouched))

	_, err := fmt.Fprintln(w.out, line)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	return nil
}

func (w *Writer) writeTable(doc Document) error {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w.out)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateHeader = false
	tbl.Style().Format.Footer = text.FormatDefault
	tbl.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})

	tbl.AppendHeader(table.Row{"#", "Contributor", "Share", "Lines", "Files", "Commits", "Last touched"})

	for _, c := range doc.Contributors {
		tbl.AppendRow(table.Row{
			c.Rank,
			w.name.Sprint(c.Label()),
			fmt.Sprintf("%.1f%%", c.Share),
			humanize.Comma(int64(c.Lines)),
			c.Files,
			c.Commits,
			w.dim.Sprint(w.since(c.LastTouched)),
		})
	}

	tbl.AppendFooter(table.Row{
		"", strconv.Itoa(len(doc.Contributors)) + " contributors", "", humanize.Comma(int64(doc.TotalLines)),
		doc.Files, "", "",
	})

	tbl.Render()

	return nil
}

func (w *Writer) since(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	return humanize.RelTime(t, w.opts.Now(), "ago", "from now")
}

func (w *Writer) writeJSON(doc Document) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")

	err := enc.Encode(doc)
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	return nil
}

func (w *Writer) writeYAML(doc Document) error {
	enc := yaml.NewEncoder(w.out)
	enc.SetIndent(2)

	err := enc.Encode(doc)
	if err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}

	return enc.Close()
}
