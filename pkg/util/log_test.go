package util

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

// captureLog redirects Logger into a buffer for the duration of the test.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	out, level, formatter := Logger.Out, Logger.Level, Logger.Formatter
	t.Cleanup(func() {
		Logger.SetOutput(out)
		Logger.SetLevel(level)
		Logger.SetFormatter(formatter)
	})
	var buf bytes.Buffer
	SetLogOutput(&buf)
	return &buf
}

func TestConfigureLogging(t *testing.T) {
	tests := []struct {
		name      string
		verbose   bool
		wantLevel logrus.Level
	}{
		{"quiet", false, logrus.WarnLevel},
		{"verbose", true, logrus.DebugLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLog(t)
			ConfigureLogging(tt.verbose, false)
			if Logger.Level != tt.wantLevel {
				t.Fatalf("level = %v, want %v", Logger.Level, tt.wantLevel)
			}

			Debugf("resolving port %s", "P01")
			if got := strings.Contains(buf.String(), "resolving port P01"); got != tt.verbose {
				t.Errorf("debug line present = %v, want %v: %q", got, tt.verbose, buf.String())
			}
			Warnf("port %s not found", "P02")
			if !strings.Contains(buf.String(), "port P02 not found") {
				t.Errorf("warning missing: %q", buf.String())
			}
		})
	}
}

func TestConfigureLogging_JSON(t *testing.T) {
	buf := captureLog(t)
	ConfigureLogging(false, true)

	WithObject(WithDevice("10.0.0.1"), "filter", "42", "F1").Warn("replay failed")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("not JSON: %v: %q", err, buf.String())
	}
	want := map[string]string{"device": "10.0.0.1", "type": "filter", "id": "42", "name": "F1", "msg": "replay failed", "level": "warning"}
	for k, v := range want {
		if line[k] != v {
			t.Errorf("%s = %v, want %q", k, line[k], v)
		}
	}
}

func TestWithRun(t *testing.T) {
	buf := captureLog(t)
	ConfigureLogging(true, true)

	WithRun("run-1").WithField("hosts", 2).Debug("replay starting")
	if !strings.Contains(buf.String(), `"run_id":"run-1"`) {
		t.Errorf("run id missing: %q", buf.String())
	}
}

func TestSetLogLevel(t *testing.T) {
	captureLog(t)
	for _, lvl := range []string{"debug", "info", "warn", "error"} {
		if err := SetLogLevel(lvl); err != nil {
			t.Errorf("SetLogLevel(%q): %v", lvl, err)
		}
	}
	if err := SetLogLevel("chatty"); err == nil {
		t.Error("expected an error for an unknown level")
	}
}
