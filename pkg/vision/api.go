package vision

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/bortok/ixvscripts/pkg/gateway"
	"github.com/bortok/ixvscripts/pkg/snapshot"
	"github.com/bortok/ixvscripts/pkg/value"
)

var _ gateway.Gateway = (*Client)(nil)

func objectPath(kind, id string) string {
	return "/api/" + kind + "/" + url.PathEscape(id)
}

func propertiesQuery(fields []string) url.Values {
	if len(fields) == 0 {
		return nil
	}
	return url.Values{"properties": {strings.Join(fields, ",")}}
}

// SearchPorts returns the ports matching every criteria property.
func (c *Client) SearchPorts(ctx context.Context, criteria value.Map) ([]value.Map, error) {
	out, err := c.getList(ctx, http.MethodPost, "/api/ports/search", criteria)
	return out, wrap("search_ports", "", err)
}

// GetPortProperties reads the given properties of a port.
func (c *Client) GetPortProperties(ctx context.Context, id snapshot.ID, fields []string) (value.Map, error) {
	out, err := c.getMap(ctx, http.MethodGet, objectPath("ports", string(id)), propertiesQuery(fields), nil)
	return out, wrap("get_port_properties", string(id), err)
}

// ListFilters returns every filter as {id, name}.
func (c *Client) ListFilters(ctx context.Context) ([]value.Map, error) {
	out, err := c.getList(ctx, http.MethodGet, "/api/filters", nil)
	return out, wrap("list_filters", "", err)
}

// GetFilterProperties reads the given properties of a filter.
func (c *Client) GetFilterProperties(ctx context.Context, id snapshot.ID, fields []string) (value.Map, error) {
	out, err := c.getMap(ctx, http.MethodGet, objectPath("filters", string(id)), propertiesQuery(fields), nil)
	return out, wrap("get_filter_properties", string(id), err)
}

// ListPortGroups returns every port group as {id, name}.
func (c *Client) ListPortGroups(ctx context.Context) ([]value.Map, error) {
	out, err := c.getList(ctx, http.MethodGet, "/api/port_groups", nil)
	return out, wrap("list_port_groups", "", err)
}

// GetPortGroupProperties reads the given properties of a port group.
func (c *Client) GetPortGroupProperties(ctx context.Context, id snapshot.ID, fields []string) (value.Map, error) {
	out, err := c.getMap(ctx, http.MethodGet, objectPath("port_groups", string(id)), propertiesQuery(fields), nil)
	return out, wrap("get_port_group_properties", string(id), err)
}

// GetPort looks a port up by its default name.
func (c *Client) GetPort(ctx context.Context, name string) (value.Map, error) {
	out, err := c.getMap(ctx, http.MethodGet, objectPath("ports", name), nil, nil)
	return out, wrap("get_port", name, err)
}

// GetIcon looks an icon up by name.
func (c *Client) GetIcon(ctx context.Context, name string) (value.Map, error) {
	out, err := c.getMap(ctx, http.MethodGet, objectPath("icons", name), nil, nil)
	return out, wrap("get_icon", name, err)
}

// CreatePortGroup creates a port group and returns at least its id.
func (c *Client) CreatePortGroup(ctx context.Context, fields value.Map) (value.Map, error) {
	out, err := c.getMap(ctx, http.MethodPost, "/api/port_groups", nil, fields)
	return out, wrap("create_port_group", "", err)
}

// CreateFilter creates a filter and returns at least its id.
func (c *Client) CreateFilter(ctx context.Context, fields value.Map) (value.Map, error) {
	out, err := c.getMap(ctx, http.MethodPost, "/api/filters", nil, fields)
	return out, wrap("create_filter", "", err)
}

// ModifyPort updates properties of a port.
func (c *Client) ModifyPort(ctx context.Context, id snapshot.ID, props value.Map) error {
	return wrap("modify_port", string(id), c.modify(ctx, "ports", id, props))
}

// ModifyPortGroup updates properties of a port group.
func (c *Client) ModifyPortGroup(ctx context.Context, id snapshot.ID, props value.Map) error {
	return wrap("modify_port_group", string(id), c.modify(ctx, "port_groups", id, props))
}

// ModifyFilter updates properties of a filter.
func (c *Client) ModifyFilter(ctx context.Context, id snapshot.ID, props value.Map) error {
	return wrap("modify_filter", string(id), c.modify(ctx, "filters", id, props))
}

func (c *Client) modify(ctx context.Context, kind string, id snapshot.ID, props value.Map) error {
	if props == nil {
		props = value.Map{}
	}
	return c.do(ctx, http.MethodPut, objectPath(kind, string(id)), nil, props, nil)
}
