package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bortok/ixvscripts/internal/testutil"
	"github.com/bortok/ixvscripts/pkg/gateway"
	"github.com/bortok/ixvscripts/pkg/snapshot"
	"github.com/bortok/ixvscripts/pkg/store"
	"github.com/bortok/ixvscripts/pkg/util"
	"github.com/bortok/ixvscripts/pkg/value"
	"github.com/bortok/ixvscripts/pkg/vision"
)

type harness struct {
	home    string
	dir     string
	devices map[string]*testutil.FakeDevice
	configs []vision.Config
}

// newHarness isolates HOME, wires fake devices in place of the Web API
// client and disables the password prompt.
func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		home:    t.TempDir(),
		dir:     t.TempDir(),
		devices: make(map[string]*testutil.FakeDevice),
	}
	t.Setenv("HOME", h.home)
	for _, k := range []string{"NTOCONFIG_STORE", "NTOCONFIG_REDIS_ADDR", "NTOCONFIG_S3_BUCKET", "NTOCONFIG_S3_ENDPOINT", "NTOCONFIG_SQLITE_PATH"} {
		t.Setenv(k, "")
	}

	oldGateway, oldTerminal, oldOut := newGateway, stdinIsTerminal, util.Logger.Out
	newGateway = func(cfg vision.Config) (gateway.Gateway, error) {
		h.configs = append(h.configs, cfg)
		dev, ok := h.devices[cfg.Host]
		if !ok {
			return nil, fmt.Errorf("dial %s: connection refused", cfg.Host)
		}
		return dev, nil
	}
	stdinIsTerminal = func() bool { return false }
	util.SetLogOutput(&bytes.Buffer{})
	t.Cleanup(func() {
		newGateway, stdinIsTerminal = oldGateway, oldTerminal
		util.SetLogOutput(oldOut)
	})
	return h
}

func (h *harness) run(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(append(args, "--dir", h.dir), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

// source is a device with two enabled ports, one disabled port and a
// filter sending to the first port.
func sourceDevice() *testutil.FakeDevice {
	dev := testutil.NewFakeDevice(500)
	dev.AddPort("101", "P01", value.Map{"enabled": value.Bool(true), "mode": value.String("NETWORK"), "media_type": value.String("SFP_PLUS_10G")})
	dev.AddPort("102", "P02", value.Map{"enabled": value.Bool(true), "mode": value.String("TOOL")})
	dev.AddPort("103", "P03", value.Map{"enabled": value.Bool(false)})
	dev.AddFilter("7", "F1", value.Map{
		"mode":           value.String("PASS_ALL"),
		"criteria":       value.Map{"logical_operation": value.String("AND")},
		"dest_port_list": value.List{value.ID("102")},
		"source_port_list": value.List{value.ID("101")},
	})
	return dev
}

// targetDevice has the same port names under different ids.
func targetDevice() *testutil.FakeDevice {
	dev := testutil.NewFakeDevice(900)
	dev.AddPort("201", "P01", nil)
	dev.AddPort("202", "P02", nil)
	return dev
}

func TestCapture_SavesSnapshot(t *testing.T) {
	h := newHarness(t)
	h.devices["10.0.0.1"] = sourceDevice()

	code, out, stderr := h.run("capture", "-u", "admin", "-p", "secret", "-H", "10.0.0.1")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "10.0.0.1")
	assert.Contains(t, out, "2 ports, 1 filter")

	snap, err := store.NewFS(h.dir).Load(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, map[snapshot.ObjectType]int{snapshot.TypePort: 2, snapshot.TypeFilter: 1}, snap.Counts())
	assert.FileExists(t, filepath.Join(h.dir, "10.0.0.1_config.json"))

	require.Len(t, h.configs, 1)
	assert.Equal(t, vision.Config{
		Host: "10.0.0.1", Port: 8000, Username: "admin", Password: "secret",
		Insecure: true, Timeout: vision.DefaultTimeout,
	}, h.configs[0])
}

func TestCapture_HostsFileAndDeviceFailure(t *testing.T) {
	h := newHarness(t)
	h.devices["10.0.0.1"] = sourceDevice()
	hostsFile := filepath.Join(t.TempDir(), "hosts.txt")
	require.NoError(t, os.WriteFile(hostsFile, []byte("# lab\n10.0.0.1 vision-a\n10.0.0.9\n"), 0644))

	code, out, _ := h.run("capture", "-u", "admin", "-p", "secret", "-f", hostsFile, "-r", "8443", "--parallel", "1")
	assert.Equal(t, 0, code, "device failures do not change the exit status")
	assert.Contains(t, out, "connection refused")
	assert.Contains(t, out, "1 device of 2 did not complete")

	hosts, err := store.NewFS(h.dir).List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1"}, hosts)
	assert.Equal(t, 8443, h.configs[0].Port)
}

func TestCapture_PortGroups(t *testing.T) {
	h := newHarness(t)
	dev := sourceDevice()
	dev.AddPortGroup("50", "PG1", value.Map{"mode": value.String("NETWORK"), "port_list": value.List{value.ID("101")}})
	h.devices["10.0.0.1"] = dev

	code, out, stderr := h.run("capture", "-u", "admin", "-p", "x", "-H", "10.0.0.1", "--port-groups")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "1 port group")
}

func TestUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no user", []string{"capture", "-p", "x", "-H", "h"}, "user is required"},
		{"no password", []string{"capture", "-u", "admin", "-H", "h"}, "password is required"},
		{"no host", []string{"replay", "-u", "admin", "-p", "x"}, "use -H <host> or -f <hosts-file>"},
		{"host and file", []string{"capture", "-u", "a", "-p", "x", "-H", "h", "-f", "hosts"}, "either -H or -f"},
		{"missing hosts file", []string{"capture", "-u", "a", "-p", "x", "-f", "/nonexistent/hosts"}, "reading hosts file"},
		{"bad types", []string{"replay", "-u", "a", "-p", "x", "-H", "h", "--types", "port,vlan"}, "unknown object type"},
		{"bad store", []string{"capture", "-u", "a", "-p", "x", "-H", "h", "--store", "tape"}, "unknown store"},
		{"unknown flag", []string{"capture", "--bogus"}, "unknown flag"},
		{"unknown command", []string{"restore"}, "unknown command"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			code, _, stderr := h.run(tt.args...)
			assert.Equal(t, 2, code)
			assert.Contains(t, stderr, tt.want)
			assert.Contains(t, stderr, "--help")
		})
	}
}

func TestDefaultUserFromSettings(t *testing.T) {
	h := newHarness(t)
	h.devices["10.0.0.1"] = sourceDevice()

	code, _, stderr := h.run("settings", "set", "user", "operator")
	require.Equal(t, 0, code, stderr)

	code, _, stderr = h.run("capture", "-p", "x", "-H", "10.0.0.1")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "operator", h.configs[0].Username)
}

func TestReplay_FromOtherHost(t *testing.T) {
	h := newHarness(t)
	h.devices["10.0.0.1"] = sourceDevice()
	target := targetDevice()
	h.devices["10.0.0.2"] = target

	code, _, stderr := h.run("capture", "-u", "admin", "-p", "x", "-H", "10.0.0.1")
	require.Equal(t, 0, code, stderr)

	code, out, stderr := h.run("replay", "-u", "admin", "-p", "x", "-H", "10.0.0.2", "--from", "10.0.0.1", "-v")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "3 ok, 0 failed, 0 skipped")
	assert.Contains(t, out, "Id mappings")

	creates := target.CallsTo("create_filter")
	require.Len(t, creates, 1)
	assert.Equal(t, value.String("PASS_ALL"), creates[0].Props["mode"])

	filter, ok := target.Filter("900")
	require.True(t, ok)
	assert.Equal(t, value.List{value.ID("202")}, filter["dest_port_list"])
	assert.Equal(t, value.List{value.ID("201")}, filter["source_port_list"])

	port, ok := target.Port("202")
	require.True(t, ok)
	assert.Equal(t, value.String("TOOL"), port["mode"])

	code, out, stderr = h.run("audit", "--device", "10.0.0.2")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "modify_port")
	assert.Contains(t, out, "create_filter")
	assert.Contains(t, out, "filter 7 -> 900")
}

func TestReplay_DryRunChangesNothing(t *testing.T) {
	h := newHarness(t)
	h.devices["10.0.0.1"] = sourceDevice()
	target := targetDevice()
	h.devices["10.0.0.2"] = target

	code, _, stderr := h.run("capture", "-u", "admin", "-p", "x", "-H", "10.0.0.1")
	require.Equal(t, 0, code, stderr)

	code, out, stderr := h.run("replay", "-u", "admin", "-p", "x", "-H", "10.0.0.2", "--from", "10.0.0.1", "--dry-run")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "(dry run)")

	assert.Empty(t, target.CallsTo("create_filter"))
	assert.Empty(t, target.CallsTo("modify_port"))
	assert.Empty(t, target.CallsTo("modify_filter"))
	assert.Len(t, target.CallsTo("get_port"), 2)
}

func TestReplay_ObjectFailuresListed(t *testing.T) {
	h := newHarness(t)
	h.devices["10.0.0.1"] = sourceDevice()
	target := testutil.NewFakeDevice(900)
	target.AddPort("201", "P01", nil)
	h.devices["10.0.0.2"] = target

	code, _, stderr := h.run("capture", "-u", "admin", "-p", "x", "-H", "10.0.0.1")
	require.Equal(t, 0, code, stderr)

	code, out, stderr := h.run("replay", "-u", "admin", "-p", "x", "-H", "10.0.0.2", "--from", "10.0.0.1")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "Failed objects")
	assert.Contains(t, out, "P02")
	assert.Contains(t, out, "1 ok, 2 failed, 0 skipped")
}

func TestReplay_TypesSubset(t *testing.T) {
	h := newHarness(t)
	h.devices["10.0.0.1"] = sourceDevice()
	target := targetDevice()
	h.devices["10.0.0.2"] = target

	code, _, stderr := h.run("capture", "-u", "admin", "-p", "x", "-H", "10.0.0.1")
	require.Equal(t, 0, code, stderr)

	code, _, stderr = h.run("replay", "-u", "admin", "-p", "x", "-H", "10.0.0.2", "--from", "10.0.0.1", "--types", "port")
	require.Equal(t, 0, code, stderr)
	assert.Len(t, target.CallsTo("modify_port"), 2)
	assert.Empty(t, target.CallsTo("create_filter"))
}

func TestReplay_MissingSnapshot(t *testing.T) {
	h := newHarness(t)
	h.devices["10.0.0.2"] = targetDevice()

	code, out, _ := h.run("replay", "-u", "admin", "-p", "x", "-H", "10.0.0.2")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "no snapshot saved for 10.0.0.2")
}

func TestReplay_MetricsFile(t *testing.T) {
	h := newHarness(t)
	h.devices["10.0.0.1"] = sourceDevice()
	metricsFile := filepath.Join(t.TempDir(), "ntoconfig.prom")

	code, _, stderr := h.run("capture", "-u", "admin", "-p", "x", "-H", "10.0.0.1", "--metrics-file", metricsFile)
	require.Equal(t, 0, code, stderr)

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `ntoconfig_objects_total{op="capture",result="ok",type="port"} 2`)
	assert.Contains(t, string(data), "ntoconfig_device_duration_seconds")
}

func TestShow(t *testing.T) {
	h := newHarness(t)
	h.devices["10.0.0.1"] = sourceDevice()

	code, out, _ := h.run("show")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "No snapshots stored")

	code, _, stderr := h.run("capture", "-u", "admin", "-p", "x", "-H", "10.0.0.1")
	require.Equal(t, 0, code, stderr)

	code, out, _ = h.run("show")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "10.0.0.1")

	code, out, _ = h.run("show", "10.0.0.1")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "P01")
	assert.Contains(t, out, "F1")
	assert.Contains(t, out, "filter")

	code, out, _ = h.run("show", "10.0.0.1", "--json")
	require.Equal(t, 0, code)
	assert.Contains(t, out, `    "101": {`)

	code, _, stderr = h.run("show", "10.9.9.9")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "no snapshot saved")
}

func TestSettingsCommands(t *testing.T) {
	h := newHarness(t)

	code, _, stderr := h.run("settings", "set", "store", "sqlite")
	require.Equal(t, 0, code, stderr)
	code, out, _ := h.run("settings", "get", "store")
	require.Equal(t, 0, code)
	assert.Equal(t, "sqlite\n", out)

	code, out, _ = h.run("settings", "show")
	require.Equal(t, 0, code)
	assert.Contains(t, out, filepath.Join(h.home, ".ntoconfig", "settings.json"))
	assert.Contains(t, out, "s3_bucket")

	code, _, stderr = h.run("settings", "set", "port", "many")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "non-negative integer")

	code, _, _ = h.run("settings", "clear")
	require.Equal(t, 0, code)
	code, out, _ = h.run("settings", "get", "store")
	require.Equal(t, 0, code)
	assert.Equal(t, "(not set)\n", out)
}

func TestSQLiteStoreFromSettings(t *testing.T) {
	h := newHarness(t)
	h.devices["10.0.0.1"] = sourceDevice()

	code, _, stderr := h.run("capture", "-u", "admin", "-p", "x", "-H", "10.0.0.1", "--store", "sqlite")
	require.Equal(t, 0, code, stderr)
	assert.FileExists(t, filepath.Join(h.dir, "ntoconfig.db"))

	code, out, _ := h.run("show", "--store", "sqlite")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "10.0.0.1")
}

func TestAudit_Empty(t *testing.T) {
	h := newHarness(t)
	code, out, _ := h.run("audit")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "No audit events found")

	code, _, stderr := h.run("audit", "--last", "soon")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "invalid duration")
}

func TestParseSince(t *testing.T) {
	d, err := parseSince("7d")
	require.NoError(t, err)
	assert.Equal(t, "168h0m0s", d.String())

	d, err = parseSince("90m")
	require.NoError(t, err)
	assert.Equal(t, "1h30m0s", d.String())

	_, err = parseSince("xd")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	h := newHarness(t)
	code, out, _ := h.run("version")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "ntoconfig")
}
