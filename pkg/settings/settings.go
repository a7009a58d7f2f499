// Package settings manages persistent user settings for the ntoconfig CLI.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
)

// DefaultPort is the Vision Web API port.
const DefaultPort = 8000

// Settings holds persistent user preferences
type Settings struct {
	// DefaultUser is used when -u is not specified
	DefaultUser string `json:"default_user,omitempty"`

	// Port overrides the Web API port (-r flag default)
	Port int `json:"port,omitempty"`

	// Store selects the snapshot driver: fs, memory, redis, s3, sqlite
	Store string `json:"store,omitempty"`

	// SnapshotDir is where the fs driver reads and writes snapshots
	SnapshotDir string `json:"snapshot_dir,omitempty"`

	RedisAddr   string `json:"redis_addr,omitempty"`
	RedisDB     int    `json:"redis_db,omitempty"`
	SSHJumpHost string `json:"ssh_jump_host,omitempty"`
	SSHUser     string `json:"ssh_user,omitempty"`

	S3Bucket   string `json:"s3_bucket,omitempty"`
	S3Prefix   string `json:"s3_prefix,omitempty"`
	S3Region   string `json:"s3_region,omitempty"`
	S3Endpoint string `json:"s3_endpoint,omitempty"`

	SQLitePath string `json:"sqlite_path,omitempty"`

	// Parallel bounds concurrent devices, 0 means one worker per host
	Parallel int `json:"parallel,omitempty"`

	// AuditLog is the audit log path
	AuditLog string `json:"audit_log,omitempty"`
}

// DefaultSettingsPath returns the default path for the settings file
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "ntoconfig_settings.json"
	}
	return filepath.Join(home, ".ntoconfig", "settings.json")
}

// Load reads settings from the default location
func Load() (*Settings, error) {
	return LoadFrom(DefaultSettingsPath())
}

// LoadFrom reads settings from a specific path
func LoadFrom(path string) (*Settings, error) {
	s := &Settings{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return s, nil
}

// Save writes settings to the default location
func (s *Settings) Save() error {
	return s.SaveTo(DefaultSettingsPath())
}

// SaveTo writes settings to a specific path
func (s *Settings) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ApplyEnv overrides store locations from the environment. getenv is
// usually os.Getenv.
func (s *Settings) ApplyEnv(getenv func(string) string) {
	if v := getenv("NTOCONFIG_STORE"); v != "" {
		s.Store = v
	}
	if v := getenv("NTOCONFIG_REDIS_ADDR"); v != "" {
		s.RedisAddr = v
	}
	if v := getenv("NTOCONFIG_S3_BUCKET"); v != "" {
		s.S3Bucket = v
	}
	if v := getenv("NTOCONFIG_S3_ENDPOINT"); v != "" {
		s.S3Endpoint = v
	}
	if v := getenv("NTOCONFIG_SQLITE_PATH"); v != "" {
		s.SQLitePath = v
	}
}

// GetPort returns the Web API port (with fallback)
func (s *Settings) GetPort() int {
	if s.Port > 0 {
		return s.Port
	}
	return DefaultPort
}

// GetStore returns the snapshot driver (with fallback)
func (s *Settings) GetStore() string {
	if s.Store != "" {
		return s.Store
	}
	return "fs"
}

// GetSnapshotDir returns the snapshot directory (with fallback)
func (s *Settings) GetSnapshotDir() string {
	if s.SnapshotDir != "" {
		return s.SnapshotDir
	}
	return "."
}

// GetSQLitePath returns the sqlite database path (with fallback)
func (s *Settings) GetSQLitePath() string {
	if s.SQLitePath != "" {
		return s.SQLitePath
	}
	return filepath.Join(s.GetSnapshotDir(), "ntoconfig.db")
}

// GetAuditLog returns the audit log path (with fallback)
func (s *Settings) GetAuditLog() string {
	if s.AuditLog != "" {
		return s.AuditLog
	}
	return filepath.Join(filepath.Dir(DefaultSettingsPath()), "audit.log")
}

// Clear resets all settings to defaults
func (s *Settings) Clear() {
	*s = Settings{}
}

// key binds a settings name to its field.
type key struct {
	get func(*Settings) string
	set func(*Settings, string) error
}

func stringKey(field func(*Settings) *string) key {
	return key{
		get: func(s *Settings) string { return *field(s) },
		set: func(s *Settings, v string) error { *field(s) = v; return nil },
	}
}

func intKey(field func(*Settings) *int) key {
	return key{
		get: func(s *Settings) string {
			if n := *field(s); n != 0 {
				return strconv.Itoa(n)
			}
			return ""
		},
		set: func(s *Settings, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return fmt.Errorf("expected a non-negative integer, got %q", v)
			}
			*field(s) = n
			return nil
		},
	}
}

var keys = map[string]key{
	"user":          stringKey(func(s *Settings) *string { return &s.DefaultUser }),
	"port":          intKey(func(s *Settings) *int { return &s.Port }),
	"store":         {get: func(s *Settings) string { return s.Store }, set: setStore},
	"snapshot_dir":  stringKey(func(s *Settings) *string { return &s.SnapshotDir }),
	"redis_addr":    stringKey(func(s *Settings) *string { return &s.RedisAddr }),
	"redis_db":      intKey(func(s *Settings) *int { return &s.RedisDB }),
	"ssh_jump_host": stringKey(func(s *Settings) *string { return &s.SSHJumpHost }),
	"ssh_user":      stringKey(func(s *Settings) *string { return &s.SSHUser }),
	"s3_bucket":     stringKey(func(s *Settings) *string { return &s.S3Bucket }),
	"s3_prefix":     stringKey(func(s *Settings) *string { return &s.S3Prefix }),
	"s3_region":     stringKey(func(s *Settings) *string { return &s.S3Region }),
	"s3_endpoint":   stringKey(func(s *Settings) *string { return &s.S3Endpoint }),
	"sqlite_path":   stringKey(func(s *Settings) *string { return &s.SQLitePath }),
	"parallel":      intKey(func(s *Settings) *int { return &s.Parallel }),
	"audit_log":     stringKey(func(s *Settings) *string { return &s.AuditLog }),
}

// Drivers lists the valid values of the store setting.
var Drivers = []string{"fs", "memory", "redis", "s3", "sqlite"}

func setStore(s *Settings, v string) error {
	if !slices.Contains(Drivers, v) {
		return fmt.Errorf("unknown store %q (valid: fs, memory, redis, s3, sqlite)", v)
	}
	s.Store = v
	return nil
}

// Keys returns the settable names in sorted order.
func Keys() []string {
	out := make([]string, 0, len(keys))
	for name := range keys {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Get returns the raw value of a setting, "" when unset.
func (s *Settings) Get(name string) (string, error) {
	k, ok := keys[name]
	if !ok {
		return "", fmt.Errorf("unknown setting: %s", name)
	}
	return k.get(s), nil
}

// Set parses and assigns a setting.
func (s *Settings) Set(name, value string) error {
	k, ok := keys[name]
	if !ok {
		return fmt.Errorf("unknown setting: %s", name)
	}
	if err := k.set(s, value); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
