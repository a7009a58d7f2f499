// Package audit records every mutation made on a device (object creation
// and property modification) so an operator can reconstruct what a replay
// run did, including partially applied runs.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Event is one auditable device call.
type Event struct {
	ID         string        `json:"id"`
	RunID      string        `json:"run_id,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
	User       string        `json:"user"`
	Device     string        `json:"device"`
	Operation  string        `json:"operation"`
	ObjectType string        `json:"object_type,omitempty"`
	OriginalID string        `json:"original_id,omitempty"`
	ResolvedID string        `json:"resolved_id,omitempty"`
	Name       string        `json:"name,omitempty"`
	Fields     []string      `json:"fields,omitempty"`
	Success    bool          `json:"success"`
	Error      string        `json:"error,omitempty"`
	DryRun     bool          `json:"dry_run"`
	Duration   time.Duration `json:"duration"`
}

// Filter defines criteria for querying audit events
type Filter struct {
	Device      string
	User        string
	Operation   string
	ObjectType  string
	RunID       string
	StartTime   time.Time
	EndTime     time.Time
	SuccessOnly bool
	FailureOnly bool
	Limit       int
	Offset      int
}

// NewEvent creates a new audit event
func NewEvent(user, device, operation string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		User:      user,
		Device:    device,
		Operation: operation,
	}
}

// WithRun tags the event with the run it belongs to
func (e *Event) WithRun(runID string) *Event {
	e.RunID = runID
	return e
}

// WithObject sets the object the call was made for
func (e *Event) WithObject(objType, originalID, name string) *Event {
	e.ObjectType = objType
	e.OriginalID = originalID
	e.Name = name
	return e
}

// WithResolved sets the id of the object on the target device
func (e *Event) WithResolved(id string) *Event {
	e.ResolvedID = id
	return e
}

// WithFields records which properties were sent
func (e *Event) WithFields(fields []string) *Event {
	e.Fields = fields
	return e
}

// WithResult marks the event as succeeded or failed depending on err
func (e *Event) WithResult(err error) *Event {
	e.Success = err == nil
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// WithDuration sets the call duration
func (e *Event) WithDuration(d time.Duration) *Event {
	e.Duration = d
	return e
}

// WithDryRun marks an event that described a call without making it
func (e *Event) WithDryRun(dryRun bool) *Event {
	e.DryRun = dryRun
	return e
}
