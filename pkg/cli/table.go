package cli

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

// columnGap separates columns.
const columnGap = 2

// Table buffers rows and writes them column-aligned on Flush. When the
// output is a terminal, the widest columns are narrowed to fit and their
// cells wrapped over several lines. Empty tables produce no output.
type Table struct {
	out     io.Writer
	headers []string
	rows    [][]string
	prefix  string
	width   int
}

// NewTable creates a table on stdout with the given column headers.
func NewTable(headers ...string) *Table {
	return NewTableTo(os.Stdout, headers...)
}

// NewTableTo creates a table writing to w.
func NewTableTo(w io.Writer, headers ...string) *Table {
	return &Table{out: w, headers: headers, width: terminalWidth(w)}
}

// WithPrefix sets a string prepended to each line (headers, divider, rows).
// Useful for indenting sub-tables within larger output.
func (t *Table) WithPrefix(prefix string) *Table {
	t.prefix = prefix
	return t
}

// WithWidth overrides the detected terminal width. 0 disables capping.
func (t *Table) WithWidth(width int) *Table {
	t.width = width
	return t
}

// Row buffers one row. Missing trailing cells are left blank.
func (t *Table) Row(values ...string) {
	row := make([]string, len(t.headers))
	copy(row, values)
	t.rows = append(t.rows, row)
}

// Len returns the number of buffered rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Flush writes the table. If no rows were added, nothing is printed.
func (t *Table) Flush() {
	if len(t.rows) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = visualLen(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			widths[i] = max(widths[i], visualLen(cell))
		}
	}
	if t.width > 0 {
		widths = capWidths(widths, t.headers, t.width, visualLen(t.prefix))
	}

	dividers := make([]string, len(t.headers))
	for i, h := range t.headers {
		dividers[i] = strings.Repeat("-", visualLen(h))
	}
	t.writeRow(widths, t.headers)
	t.writeRow(widths, dividers)
	for _, row := range t.rows {
		t.writeRow(widths, row)
	}
	t.rows = nil
}

func (t *Table) writeRow(widths []int, cells []string) {
	wrapped := make([][]string, len(cells))
	lines := 1
	for i, cell := range cells {
		wrapped[i] = wrapCell(cell, widths[i])
		lines = max(lines, len(wrapped[i]))
	}
	for l := 0; l < lines; l++ {
		var sb strings.Builder
		sb.WriteString(t.prefix)
		for i := range cells {
			part := ""
			if l < len(wrapped[i]) {
				part = wrapped[i][l]
			}
			sb.WriteString(part)
			if i < len(cells)-1 {
				sb.WriteString(strings.Repeat(" ", widths[i]-visualLen(part)+columnGap))
			}
		}
		fmt.Fprintln(t.out, strings.TrimRight(sb.String(), " "))
	}
}

// capWidths narrows the widest columns until the table fits in termWidth.
// No column goes below the width of its header.
func capWidths(widths []int, headers []string, termWidth, prefixLen int) []int {
	out := make([]int, len(widths))
	copy(out, widths)

	total := prefixLen + columnGap*(len(out)-1)
	for _, w := range out {
		total += w
	}
	for total > termWidth {
		widest := -1
		for i, w := range out {
			if w > visualLen(headers[i]) && (widest < 0 || w > out[widest]) {
				widest = i
			}
		}
		if widest < 0 {
			break
		}
		cut := min(total-termWidth, out[widest]-visualLen(headers[widest]))
		out[widest] -= cut
		total -= cut
	}
	return out
}

// wrapCell splits s into lines of at most width visible characters,
// breaking at spaces where possible. Colour codes are kept only when the
// cell fits unchanged.
func wrapCell(s string, width int) []string {
	if width <= 0 || visualLen(s) <= width {
		return []string{s}
	}

	var lines []string
	var line string
	for _, word := range strings.Fields(stripANSI(s)) {
		for utf8.RuneCountInString(word) > width {
			if line != "" {
				lines = append(lines, line)
				line = ""
			}
			r := []rune(word)
			lines = append(lines, string(r[:width]))
			word = string(r[width:])
		}
		switch {
		case line == "":
			line = word
		case utf8.RuneCountInString(line)+1+utf8.RuneCountInString(word) <= width:
			line += " " + word
		default:
			lines = append(lines, line)
			line = word
		}
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

// visualLen is the printed width of s, ignoring colour codes.
func visualLen(s string) int {
	return utf8.RuneCountInString(stripANSI(s))
}

func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}
