// Package cli holds the terminal formatting used by ntoconfig commands:
// colours, result words, dot leaders and aligned tables.
package cli

import (
	"fmt"
	"os"
	"strings"
)

// colorEnabled follows https://no-color.org: any NO_COLOR value turns
// escapes off for the life of the process.
var colorEnabled = os.Getenv("NO_COLOR") == ""

type sgr string

const (
	sgrReset  sgr = "0"
	sgrBold   sgr = "1"
	sgrDim    sgr = "2"
	sgrRed    sgr = "31"
	sgrGreen  sgr = "32"
	sgrYellow sgr = "33"
)

func paint(code sgr, s string) string {
	if !colorEnabled || s == "" {
		return s
	}
	return "\033[" + string(code) + "m" + s + "\033[" + string(sgrReset) + "m"
}

func Green(s string) string  { return paint(sgrGreen, s) }
func Yellow(s string) string { return paint(sgrYellow, s) }
func Red(s string) string    { return paint(sgrRed, s) }
func Bold(s string) string   { return paint(sgrBold, s) }
func Dim(s string) string    { return paint(sgrDim, s) }

// statusColors maps result words from capture, replay and audit output.
var statusColors = map[string]func(string) string{
	"ok":        Green,
	"submitted": Green,
	"captured":  Green,
	"failed":    Red,
	"error":     Red,
	"skipped":   Yellow,
	"dry-run":   Yellow,
}

// Status colours a result word. Unknown words pass through.
func Status(s string) string {
	if color, ok := statusColors[s]; ok {
		return color(s)
	}
	return s
}

// DotPad follows label with a dot leader so the result is width runes wide:
//
//	DotPad("port", 10) == "port ....."
//
// Labels too long for a leader are returned as is.
func DotPad(label string, width int) string {
	n := width - len(label) - 1
	if n <= 0 {
		return label
	}
	return label + " " + strings.Repeat(".", n)
}

// Plural renders a count with its noun, adding "s" unless n is 1.
func Plural(n int, noun string) string {
	if n != 1 {
		noun += "s"
	}
	return fmt.Sprintf("%d %s", n, noun)
}
