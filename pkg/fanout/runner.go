package fanout

import (
	"context"
	"sync"
	"time"

	"github.com/bortok/ixvscripts/pkg/util"
)

// Task does the work for one host. The returned detail is a short summary
// shown next to the host in progress output.
type Task func(ctx context.Context, host string) (detail string, err error)

// Result is the outcome of one host.
type Result struct {
	Host     string
	Detail   string
	Err      error
	Duration time.Duration
	// Started is false when the run was cancelled before the host began.
	Started bool
	// Done is false when the run returned while the host was still working.
	Done bool
}

// OK reports whether the task ran to completion without error.
func (r Result) OK() bool {
	return r.Done && r.Err == nil
}

// Options controls a Runner.
type Options struct {
	// Parallel bounds concurrent hosts; 0 runs every host at once.
	Parallel int
	Progress ProgressReporter
}

// Runner executes a Task for each host, each in its own goroutine.
type Runner struct {
	opts Options
}

// NewRunner creates a Runner.
func NewRunner(opts Options) *Runner {
	if opts.Progress == nil {
		opts.Progress = nopProgress{}
	}
	return &Runner{opts: opts}
}

// Run executes task for every host and returns one Result per host, in
// host order.
//
// Once ctx is cancelled no further host starts. Run then returns without
// waiting for hosts still in flight; their results carry ctx.Err() and
// Done false.
func (r *Runner) Run(ctx context.Context, hosts []string, task Task) []Result {
	var (
		mu      sync.Mutex
		results = make([]Result, len(hosts))
		closed  bool
		wg      sync.WaitGroup
	)
	for i, h := range hosts {
		results[i] = Result{Host: h}
	}

	parallel := r.opts.Parallel
	if parallel <= 0 || parallel > len(hosts) {
		parallel = len(hosts)
	}
	sem := make(chan struct{}, max(parallel, 1))

	r.opts.Progress.RunStart(hosts)
	start := time.Now()

	finish := func(i int, res Result) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		results[i] = res
		r.opts.Progress.HostEnd(res, i, len(hosts))
	}

launch:
	for i, host := range hosts {
		select {
		case <-ctx.Done():
			break launch
		case sem <- struct{}{}:
		}
		if ctx.Err() != nil {
			<-sem
			break launch
		}

		mu.Lock()
		results[i].Started = true
		r.opts.Progress.HostStart(host, i, len(hosts))
		mu.Unlock()

		wg.Add(1)
		go func(i int, host string) {
			defer wg.Done()
			defer func() { <-sem }()

			t0 := time.Now()
			detail, err := task(ctx, host)
			if err != nil {
				util.WithDevice(host).WithError(err).Debug("host task failed")
			}
			finish(i, Result{Host: host, Detail: detail, Err: err, Duration: time.Since(t0), Started: true, Done: true})
		}(i, host)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		// In-flight hosts that finish at the same moment may still win.
		select {
		case <-done:
		default:
		}
	}

	mu.Lock()
	closed = true
	out := make([]Result, len(results))
	copy(out, results)
	mu.Unlock()

	if err := ctx.Err(); err != nil {
		for i := range out {
			if !out[i].Done {
				out[i].Err = err
			}
		}
	}
	r.opts.Progress.RunEnd(out, time.Since(start))
	return out
}

// Failed counts results that did not complete cleanly.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.OK() {
			n++
		}
	}
	return n
}
