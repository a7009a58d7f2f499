// Package testutil provides test doubles and helpers shared by package tests.
// Helpers that need live services are built only with the integration tag.
package testutil

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/bortok/ixvscripts/pkg/snapshot"
	"github.com/bortok/ixvscripts/pkg/util"
	"github.com/bortok/ixvscripts/pkg/value"
)

// Call is one recorded gateway invocation.
type Call struct {
	Op    string
	ID    snapshot.ID
	Props value.Map
}

// FakeDevice is an in-memory packet broker implementing gateway.Gateway.
// Objects are kept as property bags keyed by id; creations hand out ids
// from NextID upward.
type FakeDevice struct {
	mu         sync.Mutex
	ports      map[snapshot.ID]value.Map
	portGroups map[snapshot.ID]value.Map
	filters    map[snapshot.ID]value.Map
	icons      map[snapshot.ID]value.Map
	failures   map[string]error
	calls      []Call

	NextID int
}

// NewFakeDevice returns an empty device whose first created object gets
// id nextID.
func NewFakeDevice(nextID int) *FakeDevice {
	return &FakeDevice{
		ports:      make(map[snapshot.ID]value.Map),
		portGroups: make(map[snapshot.ID]value.Map),
		filters:    make(map[snapshot.ID]value.Map),
		icons:      make(map[snapshot.ID]value.Map),
		failures:   make(map[string]error),
		NextID:     nextID,
	}
}

// AddPort stores a port. default_name is set to name unless props has one.
func (d *FakeDevice) AddPort(id snapshot.ID, name string, props value.Map) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ports[id] = withIdentity(id, name, props)
}

// AddPortGroup stores a port group.
func (d *FakeDevice) AddPortGroup(id snapshot.ID, name string, props value.Map) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.portGroups[id] = withIdentity(id, name, props)
}

// AddFilter stores a filter.
func (d *FakeDevice) AddFilter(id snapshot.ID, name string, props value.Map) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.filters[id] = withIdentity(id, name, props)
}

// AddIcon stores an icon.
func (d *FakeDevice) AddIcon(id snapshot.ID, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.icons[id] = withIdentity(id, name, nil)
}

// FailOn makes op fail with err. An empty id matches every object.
func (d *FakeDevice) FailOn(op string, id snapshot.ID, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[op+"|"+string(id)] = err
}

// Calls returns the recorded invocations in order.
func (d *FakeDevice) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Call, len(d.calls))
	copy(out, d.calls)
	return out
}

// CallsTo returns the recorded invocations of op.
func (d *FakeDevice) CallsTo(op string) []Call {
	var out []Call
	for _, c := range d.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Port returns a copy of the stored port.
func (d *FakeDevice) Port(id snapshot.ID) (value.Map, bool) {
	return d.lookup(d.ports, id)
}

// PortGroup returns a copy of the stored port group.
func (d *FakeDevice) PortGroup(id snapshot.ID) (value.Map, bool) {
	return d.lookup(d.portGroups, id)
}

// Filter returns a copy of the stored filter.
func (d *FakeDevice) Filter(id snapshot.ID) (value.Map, bool) {
	return d.lookup(d.filters, id)
}

func (d *FakeDevice) lookup(m map[snapshot.ID]value.Map, id snapshot.ID) (value.Map, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	obj, ok := m[id]
	return obj.Clone(), ok
}

func (d *FakeDevice) SearchPorts(ctx context.Context, criteria value.Map) ([]value.Map, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("search_ports", "", criteria); err != nil {
		return nil, err
	}
	var out []value.Map
	for _, id := range sortedIDs(d.ports) {
		port := d.ports[id]
		if matches(port, criteria) {
			out = append(out, value.Map{"id": port["id"], "name": port["default_name"]})
		}
	}
	return out, nil
}

func (d *FakeDevice) GetPortProperties(ctx context.Context, id snapshot.ID, fields []string) (value.Map, error) {
	return d.properties("get_port_properties", d.ports, id, fields)
}

func (d *FakeDevice) ListFilters(ctx context.Context) ([]value.Map, error) {
	return d.list("list_filters", d.filters)
}

func (d *FakeDevice) GetFilterProperties(ctx context.Context, id snapshot.ID, fields []string) (value.Map, error) {
	return d.properties("get_filter_properties", d.filters, id, fields)
}

func (d *FakeDevice) ListPortGroups(ctx context.Context) ([]value.Map, error) {
	return d.list("list_port_groups", d.portGroups)
}

func (d *FakeDevice) GetPortGroupProperties(ctx context.Context, id snapshot.ID, fields []string) (value.Map, error) {
	return d.properties("get_port_group_properties", d.portGroups, id, fields)
}

func (d *FakeDevice) GetPort(ctx context.Context, name string) (value.Map, error) {
	return d.byName("get_port", d.ports, name)
}

func (d *FakeDevice) GetIcon(ctx context.Context, name string) (value.Map, error) {
	return d.byName("get_icon", d.icons, name)
}

func (d *FakeDevice) CreatePortGroup(ctx context.Context, fields value.Map) (value.Map, error) {
	return d.create("create_port_group", d.portGroups, fields)
}

func (d *FakeDevice) CreateFilter(ctx context.Context, fields value.Map) (value.Map, error) {
	return d.create("create_filter", d.filters, fields)
}

func (d *FakeDevice) ModifyPort(ctx context.Context, id snapshot.ID, props value.Map) error {
	return d.modify("modify_port", d.ports, id, props)
}

func (d *FakeDevice) ModifyPortGroup(ctx context.Context, id snapshot.ID, props value.Map) error {
	return d.modify("modify_port_group", d.portGroups, id, props)
}

func (d *FakeDevice) ModifyFilter(ctx context.Context, id snapshot.ID, props value.Map) error {
	return d.modify("modify_filter", d.filters, id, props)
}

// begin records the call and returns the injected failure, if any. The
// caller holds d.mu.
func (d *FakeDevice) begin(op string, id snapshot.ID, props value.Map) error {
	d.calls = append(d.calls, Call{Op: op, ID: id, Props: props.Clone()})
	err, ok := d.failures[op+"|"+string(id)]
	if !ok {
		err, ok = d.failures[op+"|"]
	}
	if ok {
		return util.NewGatewayError(op, string(id), err)
	}
	return nil
}

func (d *FakeDevice) list(op string, m map[snapshot.ID]value.Map) ([]value.Map, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin(op, "", nil); err != nil {
		return nil, err
	}
	out := make([]value.Map, 0, len(m))
	for _, id := range sortedIDs(m) {
		out = append(out, value.Map{"id": m[id]["id"], "name": m[id]["name"]})
	}
	return out, nil
}

func (d *FakeDevice) properties(op string, m map[snapshot.ID]value.Map, id snapshot.ID, fields []string) (value.Map, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin(op, id, nil); err != nil {
		return nil, err
	}
	obj, ok := m[id]
	if !ok {
		return nil, util.NewGatewayError(op, string(id), util.ErrNotFound)
	}
	out := make(value.Map, len(fields))
	for _, f := range fields {
		if v, ok := obj[f]; ok {
			out[f] = value.Clone(v)
		}
	}
	return out, nil
}

func (d *FakeDevice) byName(op string, m map[snapshot.ID]value.Map, name string) (value.Map, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin(op, snapshot.ID(name), nil); err != nil {
		return nil, err
	}
	for _, id := range sortedIDs(m) {
		obj := m[id]
		if obj.Str("default_name") == name || obj.Str("name") == name {
			return obj.Clone(), nil
		}
	}
	return nil, util.NewGatewayError(op, name, fmt.Errorf("no object named %q: %w", name, util.ErrNotFound))
}

func (d *FakeDevice) create(op string, m map[snapshot.ID]value.Map, fields value.Map) (value.Map, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin(op, "", fields); err != nil {
		return nil, err
	}
	id := snapshot.ID(strconv.Itoa(d.NextID))
	d.NextID++
	obj := fields.Clone()
	if obj == nil {
		obj = value.Map{}
	}
	obj["id"] = value.ID(string(id))
	m[id] = obj
	return value.Map{"id": obj["id"]}, nil
}

func (d *FakeDevice) modify(op string, m map[snapshot.ID]value.Map, id snapshot.ID, props value.Map) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin(op, id, props); err != nil {
		return err
	}
	obj, ok := m[id]
	if !ok {
		return util.NewGatewayError(op, string(id), util.ErrNotFound)
	}
	for k, v := range props {
		obj[k] = value.Clone(v)
	}
	return nil
}

func withIdentity(id snapshot.ID, name string, props value.Map) value.Map {
	obj := props.Clone()
	if obj == nil {
		obj = value.Map{}
	}
	obj["id"] = value.ID(string(id))
	if _, ok := obj["default_name"]; !ok {
		obj["default_name"] = value.String(name)
	}
	if _, ok := obj["name"]; !ok {
		obj["name"] = value.String(name)
	}
	return obj
}

func matches(obj, criteria value.Map) bool {
	for k, want := range criteria {
		if !value.Equal(obj[k], want) {
			return false
		}
	}
	return true
}

// sortedIDs orders ids shortest first, which is numeric order for the
// integer ids devices hand out.
func sortedIDs(m map[snapshot.ID]value.Map) []snapshot.ID {
	out := make([]snapshot.ID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	slices.SortFunc(out, func(a, b snapshot.ID) int {
		if len(a) != len(b) {
			return len(a) - len(b)
		}
		return strings.Compare(string(a), string(b))
	})
	return out
}
