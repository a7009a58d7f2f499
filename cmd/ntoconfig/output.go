package main

import (
	"fmt"
	"io"
	"time"

	"github.com/bortok/ixvscripts/pkg/cli"
	"github.com/bortok/ixvscripts/pkg/fanout"
)

// printResults writes one row per device.
func printResults(w io.Writer, results []fanout.Result) {
	t := cli.NewTableTo(w, "DEVICE", "RESULT", "TIME", "DETAIL")
	for _, r := range results {
		status := "ok"
		detail := r.Detail
		switch {
		case !r.Started:
			status = "skipped"
		case r.Err != nil:
			status = "failed"
		}
		if r.Err != nil {
			detail = r.Err.Error()
		}
		t.Row(r.Host, cli.Status(status), formatDuration(r.Duration), detail)
	}
	t.Flush()

	if n := fanout.Failed(results); n > 0 {
		fmt.Fprintf(w, "\n%s of %s did not complete\n", cli.Plural(n, "device"), fmt.Sprint(len(results)))
	}
}

func formatDuration(d time.Duration) string {
	switch {
	case d == 0:
		return "-"
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
