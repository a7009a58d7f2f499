package fanout

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bortok/ixvscripts/pkg/cli"
)

// ProgressReporter receives lifecycle callbacks from a Runner. HostStart
// and HostEnd calls are serialized.
type ProgressReporter interface {
	RunStart(hosts []string)
	HostStart(host string, index, total int)
	HostEnd(result Result, index, total int)
	RunEnd(results []Result, duration time.Duration)
}

type nopProgress struct{}

func (nopProgress) RunStart([]string)              {}
func (nopProgress) HostStart(string, int, int)     {}
func (nopProgress) HostEnd(Result, int, int)       {}
func (nopProgress) RunEnd([]Result, time.Duration) {}

// consoleProgress is an append-only progress reporter: one line per
// finished host, safe for pipes and CI logs.
type consoleProgress struct {
	W        io.Writer
	Verb     string
	Verbose  bool
	dotWidth int
}

// NewConsoleProgress creates a reporter writing to stdout. verb names the
// operation, e.g. "capture".
func NewConsoleProgress(verb string, verbose bool) ProgressReporter {
	return NewConsoleProgressTo(os.Stdout, verb, verbose)
}

// NewConsoleProgressTo creates a reporter writing to w.
func NewConsoleProgressTo(w io.Writer, verb string, verbose bool) ProgressReporter {
	return &consoleProgress{W: w, Verb: verb, Verbose: verbose}
}

func (p *consoleProgress) RunStart(hosts []string) {
	maxName := 0
	for _, h := range hosts {
		maxName = max(maxName, len(h))
	}
	p.dotWidth = maxName + 6
	fmt.Fprintf(p.W, "\n%s: %s\n\n", p.Verb, cli.Plural(len(hosts), "device"))
}

func (p *consoleProgress) HostStart(host string, index, total int) {
	if p.Verbose {
		fmt.Fprintf(p.W, "  [%d/%d]  %s started\n", index+1, total, host)
	}
}

func (p *consoleProgress) HostEnd(r Result, index, total int) {
	tag := fmt.Sprintf("[%d/%d]", index+1, total)
	padded := cli.DotPad(r.Host, p.dotWidth)
	status := cli.Status("ok")
	if r.Err != nil {
		status = cli.Status("failed")
	}
	line := fmt.Sprintf("  %-7s %s %s  (%s)", tag, padded, status, formatDuration(r.Duration))
	if r.Detail != "" {
		line += "  " + r.Detail
	}
	fmt.Fprintln(p.W, line)
	if r.Err != nil {
		fmt.Fprintf(p.W, "          %s\n", cli.Dim(r.Err.Error()))
	}
}

func (p *consoleProgress) RunEnd(results []Result, d time.Duration) {
	failed := Failed(results)
	summary := fmt.Sprintf("%d/%d ok", len(results)-failed, len(results))
	if failed > 0 {
		summary = cli.Red(summary)
	} else {
		summary = cli.Green(summary)
	}
	fmt.Fprintf(p.W, "\n%s: %s in %s\n", p.Verb, summary, formatDuration(d))
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
