// Package capture reads the configuration of a packet-broker device into a
// snapshot. Capture never changes the device and stores ids exactly as the
// device reports them; translation happens only on replay.
package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/bortok/ixvscripts/pkg/gateway"
	"github.com/bortok/ixvscripts/pkg/metrics"
	"github.com/bortok/ixvscripts/pkg/snapshot"
	"github.com/bortok/ixvscripts/pkg/util"
	"github.com/bortok/ixvscripts/pkg/value"
)

// Properties exported per object type.
var (
	PortExportFields = []string{
		"id", "type", "default_name", "name", "description", "enabled", "mode",
		"media_type", "link_settings", "lldp_receive_enabled", "lldp_transmit_enabled",
		"keywords",
	}
	FilterExportFields = []string{
		"id", "default_name", "name", "description", "mode",
		"source_port_list", "dest_port_list", "source_port_group_list", "dest_port_group_list",
		"criteria", "keywords",
	}
	PortGroupExportFields = []string{
		"id", "type", "default_name", "name", "description", "mode", "port_list",
		"failover_mode", "interconnect_info", "keywords",
	}
)

// EnabledPorts is the search criteria selecting the ports to capture.
var EnabledPorts = value.Map{"enabled": value.Bool(true)}

// Options configures a capture.
type Options struct {
	// PortGroups also captures port groups. Off by default: replayed port
	// groups are recreated from scratch, which operators opt into.
	PortGroups bool

	Device  string
	Metrics *metrics.Recorder
}

// Run captures the device behind gw. Any device error aborts the capture;
// no partial snapshot is returned.
func Run(ctx context.Context, gw gateway.Gateway, opts Options) (*snapshot.Snapshot, error) {
	log := util.WithDevice(opts.Device)
	snap := snapshot.New()
	start := time.Now()

	ports, err := gw.SearchPorts(ctx, EnabledPorts)
	if err != nil {
		return nil, util.NewGatewayError("search_ports", "", err)
	}
	if err := collect(ctx, snap, snapshot.TypePort, ports, PortExportFields, gw.GetPortProperties, opts); err != nil {
		return nil, err
	}

	if opts.PortGroups {
		groups, err := gw.ListPortGroups(ctx)
		if err != nil {
			return nil, util.NewGatewayError("list_port_groups", "", err)
		}
		if err := collect(ctx, snap, snapshot.TypePortGroup, groups, PortGroupExportFields, gw.GetPortGroupProperties, opts); err != nil {
			return nil, err
		}
	}

	filters, err := gw.ListFilters(ctx)
	if err != nil {
		return nil, util.NewGatewayError("list_filters", "", err)
	}
	if err := collect(ctx, snap, snapshot.TypeFilter, filters, FilterExportFields, gw.GetFilterProperties, opts); err != nil {
		return nil, err
	}

	counts := snap.Counts()
	log.WithField("duration", time.Since(start).Round(time.Millisecond)).
		Infof("captured %d ports, %d port groups, %d filters",
			counts[snapshot.TypePort], counts[snapshot.TypePortGroup], counts[snapshot.TypeFilter])
	return snap, nil
}

type propertiesFunc func(ctx context.Context, id snapshot.ID, fields []string) (value.Map, error)

func collect(ctx context.Context, snap *snapshot.Snapshot, typ snapshot.ObjectType, listed []value.Map, fields []string, get propertiesFunc, opts Options) error {
	for _, entry := range listed {
		if err := ctx.Err(); err != nil {
			return err
		}
		id, err := gateway.ObjectID(entry)
		if err != nil {
			return fmt.Errorf("listing %ss: %w", typ, err)
		}
		details, err := get(ctx, id, fields)
		if err != nil {
			opts.Metrics.Object("capture", string(typ), metrics.ResultFailed)
			return util.NewGatewayError("get_"+string(typ)+"_properties", string(id), err)
		}
		name := details.Str("default_name")
		if name == "" {
			name = details.Str("name")
		}
		if err := snap.Add(id, typ, name, details); err != nil {
			return err
		}
		opts.Metrics.Object("capture", string(typ), metrics.ResultOK)
		util.WithObject(util.WithDevice(opts.Device), string(typ), string(id), name).Debug("captured")
	}
	return nil
}
