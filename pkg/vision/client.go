// Package vision is a client for the Vision packet-broker Web API. It
// implements gateway.Gateway over HTTPS.
//
// The first request authenticates with HTTP basic auth; the device answers
// with a session token in the X-Auth-Token header, which is sent on every
// later request. A token the device no longer accepts is dropped and the
// request retried once with basic auth.
package vision

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bortok/ixvscripts/pkg/util"
	"github.com/bortok/ixvscripts/pkg/value"
	"github.com/bortok/ixvscripts/pkg/version"
)

const (
	// DefaultPort is the Web API port.
	DefaultPort = 8000
	// DefaultTimeout bounds one request.
	DefaultTimeout = 60 * time.Second

	tokenHeader = "X-Auth-Token"
)

// Config describes how to reach one device.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string

	// Insecure skips TLS verification. Devices ship self-signed
	// certificates, so the CLI enables it by default.
	Insecure bool
	Timeout  time.Duration

	// HTTPClient replaces the default client. Insecure and Timeout are
	// ignored when set.
	HTTPClient *http.Client
}

// APIError is a non-2xx answer from the device.
type APIError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
}

// Unwrap maps 404 to util.ErrNotFound.
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return util.ErrNotFound
	}
	return nil
}

// Client is a session with one device. It is safe for concurrent use.
type Client struct {
	base     *url.URL
	username string
	password string
	http     *http.Client
	log      *logrus.Entry

	mu    sync.Mutex
	token string
}

// New creates a client. No request is made until the first call.
func New(cfg Config) (*Client, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("%w: device host is required", util.ErrInvalidConfig)
	}
	if cfg.Username == "" {
		return nil, fmt.Errorf("%w: username is required", util.ErrInvalidConfig)
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	hc := cfg.HTTPClient
	if hc == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: cfg.Insecure} //nolint:gosec // operator choice
		hc = &http.Client{Transport: transport, Timeout: cfg.Timeout}
	}

	return &Client{
		base: &url.URL{
			Scheme: "https",
			Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
			Path:   "/",
		},
		username: cfg.Username,
		password: cfg.Password,
		http:     hc,
		log:      util.WithDevice(cfg.Host),
	}, nil
}

// Host returns host:port of the device.
func (c *Client) Host() string {
	return c.base.Host
}

// do sends one request and decodes the JSON answer into out, if non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body value.Map, out *value.Value) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
	}

	token := c.currentToken()
	status, data, err := c.send(ctx, method, path, query, payload, token)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized && token != "" {
		c.log.Debug("session token rejected, re-authenticating")
		c.setToken("")
		if status, data, err = c.send(ctx, method, path, query, payload, ""); err != nil {
			return err
		}
	}

	if status < 200 || status > 299 {
		return &APIError{Method: method, Path: path, Status: status, Message: errorMessage(data)}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	v, err := value.Parse(data)
	if err != nil {
		return fmt.Errorf("%s %s: decoding response: %w", method, path, err)
	}
	*out = v
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, payload []byte, token string) (int, []byte, error) {
	u := c.base.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(tokenHeader, token)
	} else {
		req.SetBasicAuth(c.username, c.password)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading response: %w", err)
	}
	if t := resp.Header.Get(tokenHeader); t != "" {
		c.setToken(t)
	}

	c.log.WithFields(logrus.Fields{
		"method":   method,
		"path":     u.Path,
		"status":   resp.StatusCode,
		"duration": time.Since(start).Round(time.Millisecond),
	}).Debug("web api request")
	if c.log.Logger.IsLevelEnabled(logrus.TraceLevel) {
		c.log.Tracef("request body: %s", payload)
		c.log.Tracef("response body: %s", data)
	}
	return resp.StatusCode, data, nil
}

func (c *Client) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// errorMessage pulls a readable message out of an error body.
func errorMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	msg := strings.TrimSpace(string(data))
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return msg
}

func (c *Client) getMap(ctx context.Context, method, path string, query url.Values, body value.Map) (value.Map, error) {
	var v value.Value
	if err := c.do(ctx, method, path, query, body, &v); err != nil {
		return nil, err
	}
	m, ok := v.(value.Map)
	if !ok {
		return nil, fmt.Errorf("%s %s: expected a JSON object, got %s", method, path, value.Kind(v))
	}
	return m, nil
}

func (c *Client) getList(ctx context.Context, method, path string, body value.Map) ([]value.Map, error) {
	var v value.Value
	if err := c.do(ctx, method, path, nil, body, &v); err != nil {
		return nil, err
	}
	list, ok := v.(value.List)
	if !ok {
		return nil, fmt.Errorf("%s %s: expected a JSON array, got %s", method, path, value.Kind(v))
	}
	out := make([]value.Map, 0, len(list))
	for i, elem := range list {
		m, ok := elem.(value.Map)
		if !ok {
			return nil, fmt.Errorf("%s %s: element %d is %s, not an object", method, path, i, value.Kind(elem))
		}
		out = append(out, m)
	}
	return out, nil
}

// wrap tags err with the gateway operation it came from.
func wrap(op, object string, err error) error {
	return util.NewGatewayError(op, object, err)
}
