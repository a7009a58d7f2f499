// Package idmap translates object ids captured on a source device into the
// ids of their counterparts on the device being replayed to.
//
// A Table is scoped to one replay run against one device. It only grows;
// an id, once mapped, keeps its mapping for the rest of the run.
package idmap

import (
	"slices"

	"github.com/bortok/ixvscripts/pkg/snapshot"
	"github.com/bortok/ixvscripts/pkg/util"
)

// Table maps original ids to resolved ids. It is not safe for concurrent
// use; replay against a device is sequential.
type Table struct {
	m map[snapshot.ID]snapshot.ID
}

// New returns an empty table.
func New() *Table {
	return &Table{m: make(map[snapshot.ID]snapshot.ID)}
}

// Set records orig -> resolved. Repeating an identical mapping is a no-op;
// remapping orig to something else is a ConflictError.
func (t *Table) Set(orig, resolved snapshot.ID) error {
	if existing, ok := t.m[orig]; ok {
		if existing != resolved {
			return util.NewConflictError(string(orig), string(existing), string(resolved))
		}
		return nil
	}
	t.m[orig] = resolved
	return nil
}

// Get returns the resolved id of orig, or an UnresolvedReferenceError.
func (t *Table) Get(orig snapshot.ID) (snapshot.ID, error) {
	resolved, ok := t.m[orig]
	if !ok {
		return "", util.NewUnresolvedReferenceError(string(orig), "")
	}
	return resolved, nil
}

// GetMany resolves origs in order. If any id is missing no partial result
// is returned.
func (t *Table) GetMany(origs []snapshot.ID) ([]snapshot.ID, error) {
	out := make([]snapshot.ID, len(origs))
	for i, orig := range origs {
		resolved, err := t.Get(orig)
		if err != nil {
			return nil, err
		}
		out[i] = resolved
	}
	return out, nil
}

// Len returns the number of mappings.
func (t *Table) Len() int {
	return len(t.m)
}

// Entry is one recorded mapping.
type Entry struct {
	Original snapshot.ID `json:"original"`
	Resolved snapshot.ID `json:"resolved"`
}

// Entries returns all mappings sorted by original id.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, len(t.m))
	for orig, resolved := range t.m {
		out = append(out, Entry{Original: orig, Resolved: resolved})
	}
	slices.SortFunc(out, func(a, b Entry) int {
		switch {
		case a.Original < b.Original:
			return -1
		case a.Original > b.Original:
			return 1
		}
		return 0
	})
	return out
}
