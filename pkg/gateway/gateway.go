// Package gateway defines the device operations the capture and replay
// engines need. Implementations own transport, authentication and
// timeouts; the engines only see property bags.
package gateway

import (
	"context"
	"fmt"

	"github.com/bortok/ixvscripts/pkg/snapshot"
	"github.com/bortok/ixvscripts/pkg/value"
)

// Gateway is an authenticated session with one packet-broker device.
//
// Objects returned by search/list/get/create calls carry at least an "id"
// property. Any call may fail; callers treat a failure as scoped to the
// object being processed.
type Gateway interface {
	SearchPorts(ctx context.Context, criteria value.Map) ([]value.Map, error)
	GetPortProperties(ctx context.Context, id snapshot.ID, fields []string) (value.Map, error)
	ListFilters(ctx context.Context) ([]value.Map, error)
	GetFilterProperties(ctx context.Context, id snapshot.ID, fields []string) (value.Map, error)
	ListPortGroups(ctx context.Context) ([]value.Map, error)
	GetPortGroupProperties(ctx context.Context, id snapshot.ID, fields []string) (value.Map, error)

	GetPort(ctx context.Context, name string) (value.Map, error)
	GetIcon(ctx context.Context, name string) (value.Map, error)

	CreatePortGroup(ctx context.Context, fields value.Map) (value.Map, error)
	CreateFilter(ctx context.Context, fields value.Map) (value.Map, error)

	ModifyPort(ctx context.Context, id snapshot.ID, props value.Map) error
	ModifyPortGroup(ctx context.Context, id snapshot.ID, props value.Map) error
	ModifyFilter(ctx context.Context, id snapshot.ID, props value.Map) error
}

// ObjectID extracts the "id" property of a device response.
func ObjectID(obj value.Map) (snapshot.ID, error) {
	id, ok := value.Text(obj["id"])
	if !ok || id == "" {
		return "", fmt.Errorf("device response has no usable id")
	}
	return snapshot.ID(id), nil
}
