package replay

import (
	"time"

	"github.com/bortok/ixvscripts/pkg/idmap"
	"github.com/bortok/ixvscripts/pkg/metrics"
	"github.com/bortok/ixvscripts/pkg/snapshot"
	"github.com/bortok/ixvscripts/pkg/value"
)

// State is the furthest step an object reached.
type State string

const (
	StateCaptured  State = "captured"
	StateResolving State = "resolving"
	StateFiltered  State = "filtered"
	StateRewritten State = "rewritten"
	StateSubmitted State = "submitted"
	StateSkipped   State = "skipped"
)

// Result is the outcome for one object.
type Result struct {
	Type       snapshot.ObjectType
	OriginalID snapshot.ID
	Name       string
	ResolvedID snapshot.ID
	State      State
	// Created is set when the object was created rather than looked up.
	Created bool
	// Payload is the rewritten property bag, once the object got that far.
	Payload value.Map
	Err     error
}

// OK reports whether the object went through without error.
func (r Result) OK() bool {
	return r.Err == nil && r.State != StateSkipped
}

func (r Result) metricResult() string {
	switch {
	case r.State == StateSkipped:
		return metrics.ResultSkipped
	case r.Err != nil:
		return metrics.ResultFailed
	}
	return metrics.ResultOK
}

// Report summarises a run against one device.
type Report struct {
	Device   string
	DryRun   bool
	Results  []Result
	Mappings []idmap.Entry
	Duration time.Duration
}

// Summary counts results by outcome.
type Summary struct {
	OK      int
	Failed  int
	Skipped int
}

// Summary counts the results.
func (r *Report) Summary() Summary {
	var s Summary
	for _, res := range r.Results {
		switch {
		case res.State == StateSkipped:
			s.Skipped++
		case res.Err != nil:
			s.Failed++
		default:
			s.OK++
		}
	}
	return s
}

// Failures returns the results that ended in an error, skipped excluded.
func (r *Report) Failures() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Err != nil && res.State != StateSkipped {
			out = append(out, res)
		}
	}
	return out
}

// Result returns the result for an original id.
func (r *Report) Result(id snapshot.ID) (Result, bool) {
	for _, res := range r.Results {
		if res.OriginalID == id {
			return res, true
		}
	}
	return Result{}, false
}
