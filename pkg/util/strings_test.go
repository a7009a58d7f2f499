package util

import (
	"reflect"
	"testing"
)

func TestSplitCommaSeparated(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{" , ", nil},
		{"port", []string{"port"}},
		{"icon, port, port_group, filter", []string{"icon", "port", "port_group", "filter"}},
		{"port,,filter,", []string{"port", "filter"}},
	}
	for _, tt := range tests {
		if got := SplitCommaSeparated(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitCommaSeparated(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeHost(t *testing.T) {
	tests := map[string]string{
		"10.0.0.1":            "10.0.0.1",
		"nto-lab.example.com": "nto-lab.example.com",
		"fe80::1":             "fe80__1",
		"../etc/passwd":       ".._etc_passwd",
		"vision a":            "vision_a",
		"héte":                "h_te",
	}
	for in, want := range tests {
		if got := SanitizeHost(in); got != want {
			t.Errorf("SanitizeHost(%q) = %q, want %q", in, got, want)
		}
	}
}
