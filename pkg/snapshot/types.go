package snapshot

import (
	"fmt"

	"github.com/bortok/ixvscripts/pkg/value"
)

// ObjectType names a class of device object.
type ObjectType string

const (
	TypeIcon      ObjectType = "icon"
	TypePort      ObjectType = "port"
	TypePortGroup ObjectType = "port_group"
	TypeFilter    ObjectType = "filter"
)

// KnownTypes lists the built-in object types in dependency order.
var KnownTypes = []ObjectType{TypeIcon, TypePort, TypePortGroup, TypeFilter}

// ParseObjectType validates a type name given on the command line.
func ParseObjectType(s string) (ObjectType, error) {
	for _, t := range KnownTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown object type %q (want one of icon, port, port_group, filter)", s)
}

// ID is a device-assigned object identifier in its textual form.
type ID string

// Object is one captured device object.
//
// ResolvedID is empty until a replay run resolves or creates the
// counterpart on the target device.
type Object struct {
	OriginalID ID
	Type       ObjectType
	Name       string
	Properties value.Map
	ResolvedID ID
}

// Resolved reports whether replay has stamped the target id.
func (o *Object) Resolved() bool {
	return o.ResolvedID != ""
}

func (o *Object) String() string {
	if o.Name != "" {
		return fmt.Sprintf("%s %s (%s)", o.Type, o.OriginalID, o.Name)
	}
	return fmt.Sprintf("%s %s", o.Type, o.OriginalID)
}

// wireObject is the persisted layout of one object, keyed by original id in
// the enclosing document: {"101": {"details": {...}, "name": ..., "type": ...}}.
// Fields are declared in key order so both encodings come out sorted.
type wireObject struct {
	Details value.Map  `json:"details"`
	Name    string     `json:"name"`
	Type    ObjectType `json:"type"`
}
