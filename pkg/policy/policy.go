// Package policy decides which captured properties may be replayed onto a
// device. Each object type has a whitelist of writable properties, optional
// per-property rules evaluated against the object's own properties, the set
// of properties that reference other objects by id, and the minimal fields
// used when the object has to be created.
//
// Tables are immutable once built. The default table is embedded and parsed
// once per process; operators can supply their own for other firmware.
package policy

import (
	"slices"

	"github.com/bortok/ixvscripts/pkg/snapshot"
	"github.com/bortok/ixvscripts/pkg/value"
)

// Rule decides whether a writable property may be sent, given the full
// property bag of the object it belongs to.
type Rule func(props value.Map) bool

// Reference marks a property whose value is an id (or list of ids) of
// another object.
type Reference struct {
	Field  string
	Target snapshot.ObjectType
}

// TypePolicy is the policy for one object type.
type TypePolicy struct {
	Type         snapshot.ObjectType
	writable     map[string]struct{}
	rules        map[string]Rule
	references   []Reference
	createFields []string
}

// NewTypePolicy builds a policy. rules and refs may be nil.
func NewTypePolicy(typ snapshot.ObjectType, writable []string, rules map[string]Rule, refs map[string]snapshot.ObjectType, create []string) *TypePolicy {
	p := &TypePolicy{
		Type:         typ,
		writable:     make(map[string]struct{}, len(writable)),
		rules:        make(map[string]Rule, len(rules)),
		createFields: slices.Clone(create),
	}
	for _, name := range writable {
		p.writable[name] = struct{}{}
	}
	for name, rule := range rules {
		p.rules[name] = rule
	}
	for field, target := range refs {
		p.references = append(p.references, Reference{Field: field, Target: target})
	}
	slices.SortFunc(p.references, func(a, b Reference) int {
		switch {
		case a.Field < b.Field:
			return -1
		case a.Field > b.Field:
			return 1
		}
		return 0
	})
	return p
}

// Writable reports whether name is on the whitelist, ignoring rules.
func (p *TypePolicy) Writable(name string) bool {
	_, ok := p.writable[name]
	return ok
}

// WritableFields returns the whitelist in sorted order.
func (p *TypePolicy) WritableFields() []string {
	out := make([]string, 0, len(p.writable))
	for name := range p.writable {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// References returns the reference fields sorted by name.
func (p *TypePolicy) References() []Reference {
	return slices.Clone(p.references)
}

// CreateFields returns the fields sent on creation.
func (p *TypePolicy) CreateFields() []string {
	return slices.Clone(p.createFields)
}

// Filter returns a fresh property bag holding only the whitelisted
// properties of props whose rules hold. props is not modified and values
// are deep-copied.
func (p *TypePolicy) Filter(props value.Map) value.Map {
	out := make(value.Map)
	for name, v := range props {
		if _, ok := p.writable[name]; !ok {
			continue
		}
		if rule, ok := p.rules[name]; ok && !rule(props) {
			continue
		}
		out[name] = value.Clone(v)
	}
	return out
}

// CreatePayload extracts the creation fields present in props.
func (p *TypePolicy) CreatePayload(props value.Map) value.Map {
	out := make(value.Map, len(p.createFields))
	for _, name := range p.createFields {
		if v, ok := props[name]; ok {
			out[name] = value.Clone(v)
		}
	}
	return out
}

// Table holds the policies of all known object types.
type Table struct {
	types map[snapshot.ObjectType]*TypePolicy
}

// NewTable assembles a table from per-type policies.
func NewTable(policies ...*TypePolicy) *Table {
	t := &Table{types: make(map[snapshot.ObjectType]*TypePolicy, len(policies))}
	for _, p := range policies {
		t.types[p.Type] = p
	}
	return t
}

// For returns the policy of typ.
func (t *Table) For(typ snapshot.ObjectType) (*TypePolicy, bool) {
	p, ok := t.types[typ]
	return p, ok
}

// Types returns the types the table knows, sorted by name.
func (t *Table) Types() []snapshot.ObjectType {
	out := make([]snapshot.ObjectType, 0, len(t.types))
	for typ := range t.types {
		out = append(out, typ)
	}
	slices.Sort(out)
	return out
}

// Filter applies the policy of typ to props. Unknown types have nothing
// writable.
func (t *Table) Filter(typ snapshot.ObjectType, props value.Map) value.Map {
	p, ok := t.types[typ]
	if !ok {
		return value.Map{}
	}
	return p.Filter(props)
}

// FieldEquals holds when props[field] renders as want.
func FieldEquals(field, want string) Rule {
	return func(props value.Map) bool {
		got, ok := scalarText(props[field])
		return ok && got == want
	}
}

// FieldNotEquals holds when props[field] is absent or differs from want.
func FieldNotEquals(field, want string) Rule {
	return func(props value.Map) bool {
		got, ok := scalarText(props[field])
		return !ok || got != want
	}
}

// FieldIn holds when props[field] renders as one of wants.
func FieldIn(field string, wants ...string) Rule {
	set := slices.Clone(wants)
	return func(props value.Map) bool {
		got, ok := scalarText(props[field])
		return ok && slices.Contains(set, got)
	}
}

// FieldPresent holds when props has a non-null field.
func FieldPresent(field string) Rule {
	return func(props value.Map) bool {
		v, ok := props[field]
		if !ok {
			return false
		}
		_, isNull := v.(value.Null)
		return !isNull && v != nil
	}
}

func scalarText(v value.Value) (string, bool) {
	if b, ok := v.(value.Bool); ok {
		if b {
			return "true", true
		}
		return "false", true
	}
	return value.Text(v)
}
