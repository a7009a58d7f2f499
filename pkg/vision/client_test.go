package vision

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bortok/ixvscripts/pkg/util"
	"github.com/bortok/ixvscripts/pkg/value"
)

// device is a scripted Web API. It issues one token per basic login and
// records every request it sees.
type device struct {
	mu       sync.Mutex
	token    string
	logins   int
	requests []recorded
	routes   map[string]http.HandlerFunc
}

type recorded struct {
	Method string
	Path   string
	Query  string
	Token  string
	Body   string
}

func newDevice() *device {
	return &device{routes: make(map[string]http.HandlerFunc)}
}

func (d *device) handle(method, path string, h http.HandlerFunc) {
	d.routes[method+" "+path] = h
}

func (d *device) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	d.mu.Lock()
	d.requests = append(d.requests, recorded{
		Method: r.Method,
		Path:   r.URL.EscapedPath(),
		Query:  r.URL.RawQuery,
		Token:  r.Header.Get("X-Auth-Token"),
		Body:   string(body),
	})
	switch tok := r.Header.Get("X-Auth-Token"); {
	case tok != "" && tok == d.token:
	case tok == "":
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "secret" {
			d.mu.Unlock()
			http.Error(w, `{"message": "bad credentials"}`, http.StatusUnauthorized)
			return
		}
		d.logins++
		d.token = "tok-" + strconv.Itoa(d.logins)
		w.Header().Set("X-Auth-Token", d.token)
	default:
		d.mu.Unlock()
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	d.mu.Unlock()

	h, ok := d.routes[r.Method+" "+r.URL.EscapedPath()]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message": "no such object"}`))
		return
	}
	h(w, r)
}

func (d *device) expireToken() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.token = "expired"
}

func (d *device) recorded() []recorded {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]recorded(nil), d.requests...)
}

func reply(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}
}

func newClient(t *testing.T, d *device) *Client {
	t.Helper()
	srv := httptest.NewTLSServer(d)
	t.Cleanup(srv.Close)

	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	c, err := New(Config{Host: host, Port: p, Username: "admin", Password: "secret", Insecure: true, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return c
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Username: "admin"})
	assert.ErrorIs(t, err, util.ErrInvalidConfig)

	_, err = New(Config{Host: "10.0.0.1"})
	assert.ErrorIs(t, err, util.ErrInvalidConfig)

	c, err := New(Config{Host: "10.0.0.1", Username: "admin"})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:8000", c.Host())
}

func TestClient_TokenReusedAfterLogin(t *testing.T) {
	d := newDevice()
	d.handle("GET", "/api/filters", reply(`[{"id": 7, "name": "F1"}, {"id": 8, "name": "F2"}]`))
	c := newClient(t, d)
	ctx := context.Background()

	filters, err := c.ListFilters(ctx)
	require.NoError(t, err)
	require.Len(t, filters, 2)
	assert.Equal(t, value.Number("7"), filters[0]["id"])

	_, err = c.ListFilters(ctx)
	require.NoError(t, err)

	reqs := d.recorded()
	require.Len(t, reqs, 2)
	assert.Empty(t, reqs[0].Token, "first request uses basic auth")
	assert.Equal(t, "tok-1", reqs[1].Token)
	assert.Equal(t, 1, d.logins)
}

func TestClient_ExpiredTokenRetriesWithBasicAuth(t *testing.T) {
	d := newDevice()
	d.handle("GET", "/api/filters", reply(`[]`))
	c := newClient(t, d)
	ctx := context.Background()

	_, err := c.ListFilters(ctx)
	require.NoError(t, err)
	d.expireToken()

	_, err = c.ListFilters(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, d.logins)

	reqs := d.recorded()
	require.Len(t, reqs, 3)
	assert.Equal(t, "tok-1", reqs[1].Token)
	assert.Empty(t, reqs[2].Token)
}

func TestClient_BadCredentials(t *testing.T) {
	d := newDevice()
	c := newClient(t, d)
	c.password = "wrong"

	_, err := c.ListFilters(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "bad credentials", apiErr.Message)
	assert.ErrorIs(t, err, util.ErrGateway)
}

func TestClient_SearchAndProperties(t *testing.T) {
	d := newDevice()
	d.handle("POST", "/api/ports/search", reply(`[{"id": 101, "name": "P01"}]`))
	d.handle("GET", "/api/ports/101", reply(`{"id": 101, "default_name": "P01", "enabled": true, "link_settings": "10G_FULL"}`))
	c := newClient(t, d)
	ctx := context.Background()

	ports, err := c.SearchPorts(ctx, value.Map{"enabled": value.Bool(true)})
	require.NoError(t, err)
	require.Len(t, ports, 1)

	props, err := c.GetPortProperties(ctx, "101", []string{"id", "default_name", "enabled"})
	require.NoError(t, err)
	assert.Equal(t, value.String("P01"), props["default_name"])

	reqs := d.recorded()
	assert.JSONEq(t, `{"enabled": true}`, reqs[0].Body)
	assert.Equal(t, "properties=id%2Cdefault_name%2Cenabled", reqs[1].Query)
}

func TestClient_CreateAndModify(t *testing.T) {
	d := newDevice()
	d.handle("POST", "/api/port_groups", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id": 300}`))
	})
	d.handle("PUT", "/api/port_groups/300", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	d.handle("PUT", "/api/filters/9", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"message": "dest_port_group_list: unknown id 50"})
	})
	c := newClient(t, d)
	ctx := context.Background()

	created, err := c.CreatePortGroup(ctx, value.Map{"mode": value.String("NETWORK"), "type": value.String("INTERCONNECT")})
	require.NoError(t, err)
	assert.Equal(t, value.Number("300"), created["id"])

	err = c.ModifyPortGroup(ctx, "300", value.Map{"port_list": value.List{value.Number("201"), value.Number("202")}})
	require.NoError(t, err)

	err = c.ModifyFilter(ctx, "9", value.Map{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, err.Error(), "unknown id 50")

	reqs := d.recorded()
	assert.JSONEq(t, `{"mode": "NETWORK", "type": "INTERCONNECT"}`, reqs[0].Body)
	assert.JSONEq(t, `{"port_list": [201, 202]}`, reqs[1].Body)
	assert.Equal(t, "{}", reqs[2].Body)
}

func TestClient_LookupByNameEscapesAndMapsNotFound(t *testing.T) {
	d := newDevice()
	d.handle("GET", "/api/icons/Data%20Center", reply(`{"id": 5, "name": "Data Center"}`))
	c := newClient(t, d)
	ctx := context.Background()

	icon, err := c.GetIcon(ctx, "Data Center")
	require.NoError(t, err)
	assert.Equal(t, value.Number("5"), icon["id"])

	_, err = c.GetPort(ctx, "P99")
	assert.ErrorIs(t, err, util.ErrNotFound)
	assert.ErrorIs(t, err, util.ErrGateway)
}

func TestClient_UnexpectedShape(t *testing.T) {
	d := newDevice()
	d.handle("GET", "/api/filters", reply(`{"id": 1}`))
	d.handle("GET", "/api/port_groups", reply(`[1, 2]`))
	c := newClient(t, d)
	ctx := context.Background()

	_, err := c.ListFilters(ctx)
	assert.ErrorContains(t, err, "expected a JSON array")

	_, err = c.ListPortGroups(ctx)
	assert.ErrorContains(t, err, "not an object")
}

func TestClient_ContextCancelled(t *testing.T) {
	d := newDevice()
	d.handle("GET", "/api/filters", reply(`[]`))
	c := newClient(t, d)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.ListFilters(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"message": "bad"}`, "bad"},
		{`{"error": "worse"}`, "worse"},
		{"plain text\n", "plain text"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := errorMessage([]byte(tt.body)); got != tt.want {
			t.Errorf("errorMessage(%q) = %q, want %q", tt.body, got, tt.want)
		}
	}
}
