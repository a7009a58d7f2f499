// Package replay applies a captured snapshot to a packet-broker device.
//
// Objects are processed one type at a time in dependency order. Icons and
// ports already exist on every device and are matched by name; port groups
// and filters are created from a minimal payload and then modified with
// the full writable property set. Every resolved id is recorded in an
// idmap.Table before any later object can refer to it, and every reference
// field is rewritten through that table before submission.
//
// Failures are scoped to the object that hit them. The one exception is an
// id conflict, which means the translation table can no longer be trusted
// and aborts the run.
package replay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bortok/ixvscripts/pkg/audit"
	"github.com/bortok/ixvscripts/pkg/gateway"
	"github.com/bortok/ixvscripts/pkg/idmap"
	"github.com/bortok/ixvscripts/pkg/metrics"
	"github.com/bortok/ixvscripts/pkg/policy"
	"github.com/bortok/ixvscripts/pkg/snapshot"
	"github.com/bortok/ixvscripts/pkg/util"
	"github.com/bortok/ixvscripts/pkg/value"
)

// DefaultOrder is the type processing order. A type may only reference
// types that come before it.
var DefaultOrder = []snapshot.ObjectType{
	snapshot.TypeIcon,
	snapshot.TypePort,
	snapshot.TypePortGroup,
	snapshot.TypeFilter,
}

// DryRunPrefix marks placeholder ids handed out instead of creating objects.
const DryRunPrefix = "dry-run:"

// Options configures one run.
type Options struct {
	// Policy defaults to policy.Default().
	Policy *policy.Table
	// Order defaults to DefaultOrder.
	Order []snapshot.ObjectType
	// Types restricts the run to a subset of Order. Empty means all.
	Types []snapshot.ObjectType
	// DryRun performs lookups but no creates or modifies.
	DryRun bool

	Device  string
	User    string
	RunID   string
	Audit   audit.Logger
	Metrics *metrics.Recorder
}

// Engine replays snapshots onto one device.
type Engine struct {
	gw    gateway.Gateway
	opts  Options
	table *idmap.Table
	log   *logrus.Entry
}

// New creates an engine for the device behind gw.
func New(gw gateway.Gateway, opts Options) *Engine {
	if opts.Policy == nil {
		opts.Policy = policy.Default()
	}
	if len(opts.Order) == 0 {
		opts.Order = DefaultOrder
	}
	if opts.Audit == nil {
		opts.Audit = audit.Discard{}
	}
	return &Engine{
		gw:    gw,
		opts:  opts,
		table: idmap.New(),
		log:   util.WithDevice(opts.Device),
	}
}

// Run replays snap and returns the per-object report. The returned error is
// non-nil only when the run stopped early: on an id conflict or when ctx
// was cancelled. The report is returned in every case.
//
// Run stamps ResolvedID on the snapshot's objects.
func (e *Engine) Run(ctx context.Context, snap *snapshot.Snapshot) (*Report, error) {
	start := time.Now()
	report := &Report{Device: e.opts.Device, DryRun: e.opts.DryRun}

	var runErr error
	for _, obj := range e.plan(snap) {
		if runErr != nil {
			report.Results = append(report.Results, e.skip(obj, runErr))
			continue
		}
		if err := ctx.Err(); err != nil {
			runErr = err
			e.log.Warnf("replay cancelled, skipping remaining objects: %v", err)
			report.Results = append(report.Results, e.skip(obj, err))
			continue
		}

		res := e.apply(ctx, obj)
		report.Results = append(report.Results, res)
		e.opts.Metrics.Object("replay", string(obj.Type), res.metricResult())

		if errors.Is(res.Err, util.ErrConflict) {
			runErr = fmt.Errorf("replay aborted: %w", res.Err)
		}
	}
	if runErr == nil && ctx.Err() != nil {
		runErr = ctx.Err()
		e.log.Warnf("replay cancelled after the last object: %v", runErr)
	}

	report.Mappings = e.table.Entries()
	report.Duration = time.Since(start)
	return report, runErr
}

// Table exposes the translation table built so far.
func (e *Engine) Table() *idmap.Table {
	return e.table
}

// plan lists the objects to process, grouped by type in processing order
// and ordered by id within a type.
func (e *Engine) plan(snap *snapshot.Snapshot) []*snapshot.Object {
	wanted := make(map[snapshot.ObjectType]bool, len(e.opts.Types))
	for _, t := range e.opts.Types {
		wanted[t] = true
	}

	all := snap.All()
	var out []*snapshot.Object
	for _, typ := range e.opts.Order {
		if len(wanted) > 0 && !wanted[typ] {
			continue
		}
		for _, obj := range all {
			if obj.Type == typ {
				out = append(out, obj)
			}
		}
	}
	return out
}

func (e *Engine) skip(obj *snapshot.Object, cause error) Result {
	e.opts.Metrics.Object("replay", string(obj.Type), metrics.ResultSkipped)
	return Result{
		Type:       obj.Type,
		OriginalID: obj.OriginalID,
		Name:       obj.Name,
		State:      StateSkipped,
		Err:        cause,
	}
}

// apply walks one object through its state machine. Once started, an object
// runs to completion: cancellation of ctx only takes effect between objects.
func (e *Engine) apply(ctx context.Context, obj *snapshot.Object) Result {
	ctx = context.WithoutCancel(ctx)
	res := Result{
		Type:       obj.Type,
		OriginalID: obj.OriginalID,
		Name:       obj.Name,
		State:      StateCaptured,
	}
	log := util.WithObject(e.log, string(obj.Type), string(obj.OriginalID), obj.Name)
	fail := func(err error) Result {
		res.Err = err
		entry := log.WithField("state", res.State)
		if errors.Is(err, util.ErrConflict) {
			entry.Errorf("replay failed: %v", err)
		} else {
			entry.Warnf("replay failed: %v", err)
		}
		return res
	}

	pol, ok := e.opts.Policy.For(obj.Type)
	if !ok {
		return fail(fmt.Errorf("no property policy for object type %s", obj.Type))
	}

	res.State = StateResolving
	resolved, created, err := e.resolve(ctx, obj, pol)
	if err != nil {
		return fail(err)
	}
	res.Created = created
	if err := e.table.Set(obj.OriginalID, resolved); err != nil {
		return fail(err)
	}
	obj.ResolvedID = resolved
	res.ResolvedID = resolved
	log = log.WithField("resolved", resolved)

	props := pol.Filter(obj.Properties)
	res.State = StateFiltered

	if err := e.rewrite(props, pol); err != nil {
		return fail(err)
	}
	res.State = StateRewritten
	res.Payload = props

	if obj.Type == snapshot.TypeIcon {
		log.Debug("icon resolved")
		return res
	}

	if err := e.submit(ctx, obj, resolved, props); err != nil {
		return fail(err)
	}
	res.State = StateSubmitted
	log.WithField("fields", len(props)).Debug("object submitted")
	return res
}

// resolve finds or creates the counterpart of obj on the device.
func (e *Engine) resolve(ctx context.Context, obj *snapshot.Object, pol *policy.TypePolicy) (snapshot.ID, bool, error) {
	switch obj.Type {
	case snapshot.TypeIcon:
		found, err := e.gw.GetIcon(ctx, obj.Name)
		if err != nil {
			return "", false, util.NewGatewayError("get_icon", obj.Name, err)
		}
		id, err := gateway.ObjectID(found)
		return id, false, err

	case snapshot.TypePort:
		found, err := e.gw.GetPort(ctx, obj.Name)
		if err != nil {
			return "", false, util.NewGatewayError("get_port", obj.Name, err)
		}
		id, err := gateway.ObjectID(found)
		return id, false, err

	case snapshot.TypePortGroup, snapshot.TypeFilter:
		payload := pol.CreatePayload(obj.Properties)
		op := "create_" + string(obj.Type)
		if e.opts.DryRun {
			id := snapshot.ID(DryRunPrefix + string(obj.OriginalID))
			e.audit(op, obj, id, payload, nil, 0)
			return id, true, nil
		}

		start := time.Now()
		var created value.Map
		var err error
		if obj.Type == snapshot.TypePortGroup {
			created, err = e.gw.CreatePortGroup(ctx, payload)
		} else {
			created, err = e.gw.CreateFilter(ctx, payload)
		}
		var id snapshot.ID
		if err == nil {
			id, err = gateway.ObjectID(created)
		}
		err = util.NewGatewayError(op, obj.String(), err)
		e.audit(op, obj, id, payload, err, time.Since(start))
		return id, err == nil, err
	}
	return "", false, fmt.Errorf("do not know how to resolve object type %s", obj.Type)
}

// rewrite replaces every original id in the reference fields of props with
// its resolved id. List order and length are preserved.
func (e *Engine) rewrite(props value.Map, pol *policy.TypePolicy) error {
	for _, ref := range pol.References() {
		v, ok := props[ref.Field]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case value.Null:
		case value.List:
			origs := make([]snapshot.ID, len(val))
			for i, elem := range val {
				text, ok := value.Text(elem)
				if !ok {
					return fmt.Errorf("%s[%d]: expected an object id, got %s", ref.Field, i, value.Kind(elem))
				}
				origs[i] = snapshot.ID(text)
			}
			resolved, err := e.table.GetMany(origs)
			if err != nil {
				return withField(err, ref.Field)
			}
			out := make(value.List, len(resolved))
			for i, id := range resolved {
				out[i] = value.ID(string(id))
			}
			props[ref.Field] = out
		default:
			text, ok := value.Text(val)
			if !ok {
				return fmt.Errorf("%s: expected an object id, got %s", ref.Field, value.Kind(val))
			}
			resolved, err := e.table.Get(snapshot.ID(text))
			if err != nil {
				return withField(err, ref.Field)
			}
			props[ref.Field] = value.ID(string(resolved))
		}
	}
	return nil
}

func withField(err error, field string) error {
	var unresolved *util.UnresolvedReferenceError
	if errors.As(err, &unresolved) {
		return util.NewUnresolvedReferenceError(unresolved.ID, field)
	}
	return err
}

// submit sends the modify call for obj.
func (e *Engine) submit(ctx context.Context, obj *snapshot.Object, id snapshot.ID, props value.Map) error {
	op := "modify_" + string(obj.Type)
	if e.opts.DryRun {
		e.audit(op, obj, id, props, nil, 0)
		return nil
	}

	start := time.Now()
	var err error
	switch obj.Type {
	case snapshot.TypePort:
		err = e.gw.ModifyPort(ctx, id, props)
	case snapshot.TypePortGroup:
		err = e.gw.ModifyPortGroup(ctx, id, props)
	case snapshot.TypeFilter:
		err = e.gw.ModifyFilter(ctx, id, props)
	default:
		return fmt.Errorf("do not know how to modify object type %s", obj.Type)
	}
	err = util.NewGatewayError(op, obj.String(), err)
	e.audit(op, obj, id, props, err, time.Since(start))
	return err
}

func (e *Engine) audit(op string, obj *snapshot.Object, id snapshot.ID, props value.Map, err error, d time.Duration) {
	event := audit.NewEvent(e.opts.User, e.opts.Device, op).
		WithRun(e.opts.RunID).
		WithObject(string(obj.Type), string(obj.OriginalID), obj.Name).
		WithResolved(string(id)).
		WithFields(props.Keys()).
		WithResult(err).
		WithDuration(d).
		WithDryRun(e.opts.DryRun)
	if logErr := e.opts.Audit.Log(event); logErr != nil {
		e.log.Warnf("audit: %v", logErr)
	}
}
