// Package snapshot holds the captured configuration of one device: a set of
// objects keyed by the id the source device assigned them.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/bortok/ixvscripts/pkg/util"
	"github.com/bortok/ixvscripts/pkg/value"
)

// Snapshot maps original ids to captured objects. Iteration order during
// replay is driven by object type, never by map order.
type Snapshot struct {
	objects map[ID]*Object
}

// New returns an empty snapshot.
func New() *Snapshot {
	return &Snapshot{objects: make(map[ID]*Object)}
}

// Add inserts one captured object. The property bag is stored as given;
// callers must not mutate it afterwards.
func (s *Snapshot) Add(id ID, typ ObjectType, name string, props value.Map) error {
	if _, exists := s.objects[id]; exists {
		return util.NewDuplicateIDError(string(id))
	}
	if props == nil {
		props = value.Map{}
	}
	s.objects[id] = &Object{
		OriginalID: id,
		Type:       typ,
		Name:       name,
		Properties: props,
	}
	return nil
}

// Get returns the object captured under id.
func (s *Snapshot) Get(id ID) (*Object, bool) {
	obj, ok := s.objects[id]
	return obj, ok
}

// Len returns the number of objects.
func (s *Snapshot) Len() int {
	return len(s.objects)
}

// Objects returns every object of the given type. Order is unspecified.
func (s *Snapshot) Objects(typ ObjectType) []*Object {
	var out []*Object
	for _, obj := range s.objects {
		if obj.Type == typ {
			out = append(out, obj)
		}
	}
	return out
}

// All returns every object sorted by type then original id, for display.
func (s *Snapshot) All() []*Object {
	out := make([]*Object, 0, len(s.objects))
	for _, obj := range s.objects {
		out = append(out, obj)
	}
	slices.SortFunc(out, func(a, b *Object) int {
		if a.Type != b.Type {
			return typeRank(a.Type) - typeRank(b.Type)
		}
		return compareIDs(a.OriginalID, b.OriginalID)
	})
	return out
}

// Counts returns the number of objects per type.
func (s *Snapshot) Counts() map[ObjectType]int {
	counts := make(map[ObjectType]int)
	for _, obj := range s.objects {
		counts[obj.Type]++
	}
	return counts
}

// Marshal returns the compact encoding. It is the authoritative form read
// back by Unmarshal.
func (s *Snapshot) Marshal() ([]byte, error) {
	return json.Marshal(s.wire())
}

// MarshalPretty returns a stable, key-sorted, indented encoding intended
// for humans and diff tools.
func (s *Snapshot) MarshalPretty() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	if err := enc.Encode(s.wire()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Snapshot) wire() map[ID]wireObject {
	doc := make(map[ID]wireObject, len(s.objects))
	for id, obj := range s.objects {
		doc[id] = wireObject{
			Name:    obj.Name,
			Type:    obj.Type,
			Details: obj.Properties,
		}
	}
	return doc
}

// Unmarshal decodes a compact snapshot.
func Unmarshal(data []byte) (*Snapshot, error) {
	var doc map[ID]wireObject
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrMalformedSnapshot, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: document is not an object", util.ErrMalformedSnapshot)
	}

	s := New()
	for id, w := range doc {
		if id == "" {
			return nil, fmt.Errorf("%w: empty object id", util.ErrMalformedSnapshot)
		}
		if w.Type == "" {
			return nil, fmt.Errorf("%w: object %s has no type", util.ErrMalformedSnapshot, id)
		}
		if err := s.Add(id, w.Type, w.Name, w.Details); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func typeRank(t ObjectType) int {
	if i := slices.Index(KnownTypes, t); i >= 0 {
		return i
	}
	return len(KnownTypes)
}

// compareIDs orders numeric ids numerically and everything else lexically.
func compareIDs(a, b ID) int {
	if len(a) != len(b) && isDigits(string(a)) && isDigits(string(b)) {
		return len(a) - len(b)
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
