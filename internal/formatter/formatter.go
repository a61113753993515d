// package formatter renders listings and details as text tables, JSON, YAML, CSV or Markdown, and
// reads and writes M3U playlists.
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/tunebox/internal/shared"
	"gopkg.in/yaml.v3"
)

// Format names an output encoding.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

// Formats lists every supported encoding.
var Formats = []Format{FormatText, FormatJSON, FormatYAML, FormatCSV, FormatMarkdown}

// ParseFormat accepts a format name, case-insensitively. "md" and "yml" are aliases.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "text", "txt":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, name)
	}
}

// Table is the tabular rendering of a value.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// Write encodes v to w. JSON and YAML encode v itself; the other formats render its [Table].
func Write(w io.Writer, f Format, v any) error {
	switch f {
	case FormatJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		data = append(data, '\n')
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
		return enc.Close()
	}

	t, err := Tabulate(v)
	if err != nil {
		return err
	}
	switch f {
	case FormatText:
		return WriteText(w, t)
	case FormatCSV:
		return WriteCSV(w, t)
	case FormatMarkdown:
		return WriteMarkdown(w, t)
	default:
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, f)
	}
}

// WriteText renders t as left-aligned columns separated by two spaces.
func WriteText(w io.Writer, t *Table) error {
	var buf bytes.Buffer
	if t.Title != "" {
		fmt.Fprintf(&buf, "%s\n\n", t.Title)
	}

	widths := columnWidths(t)
	writeRow := func(cells []string) {
		parts := make([]string, len(widths))
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			if i == len(widths)-1 {
				parts[i] = cell
				continue
			}
			parts[i] = cell + strings.Repeat(" ", widths[i]-lipgloss.Width(cell))
		}
		buf.WriteString(strings.TrimRight(strings.Join(parts, "  "), " "))
		buf.WriteByte('\n')
	}

	if len(t.Headers) > 0 {
		writeRow(t.Headers)
	}
	for _, row := range t.Rows {
		writeRow(row)
	}
	if len(t.Rows) == 0 {
		buf.WriteString("(none)\n")
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func columnWidths(t *Table) []int {
	n := len(t.Headers)
	for _, row := range t.Rows {
		n = max(n, len(row))
	}
	widths := make([]int, n)
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}
	return widths
}

// WriteCSV renders t with a header record. The title is dropped.
func WriteCSV(w io.Writer, t *Table) error {
	writer := csv.NewWriter(w)
	if len(t.Headers) > 0 {
		if err := writer.Write(t.Headers); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}
	for _, row := range t.Rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}
	return nil
}

// WriteMarkdown renders t as a heading and a pipe table.
func WriteMarkdown(w io.Writer, t *Table) error {
	var buf bytes.Buffer
	if t.Title != "" {
		fmt.Fprintf(&buf, "# %s\n\n", t.Title)
	}

	if len(t.Headers) > 0 {
		buf.WriteString("| " + strings.Join(escapeCells(t.Headers), " | ") + " |\n")
		buf.WriteString("|" + strings.Repeat(" --- |", len(t.Headers)) + "\n")
	}
	for _, row := range t.Rows {
		buf.WriteString("| " + strings.Join(escapeCells(row), " | ") + " |\n")
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func escapeCells(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.ReplaceAll(strings.ReplaceAll(c, "|", `\|`), "\n", " ")
	}
	return out
}
