package main

import (
	"context"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bortok/ixvscripts/pkg/audit"
	"github.com/bortok/ixvscripts/pkg/fanout"
	"github.com/bortok/ixvscripts/pkg/metrics"
	"github.com/bortok/ixvscripts/pkg/settings"
	"github.com/bortok/ixvscripts/pkg/store"
	"github.com/bortok/ixvscripts/pkg/util"
)

// storeConfig merges flags, settings and environment into a store config.
func (a *app) storeConfig() (store.Config, error) {
	s := a.settings
	driver := a.storeDriver
	if driver == "" {
		driver = s.GetStore()
	}
	if !slices.Contains(settings.Drivers, driver) {
		return store.Config{}, usageErrorf("unknown store %q (valid: %s)", driver, strings.Join(settings.Drivers, ", "))
	}

	dir := a.dir
	if dir == "" {
		dir = s.GetSnapshotDir()
	}
	sqlitePath := s.GetSQLitePath()
	if a.dir != "" && s.SQLitePath == "" {
		sqlitePath = filepath.Join(a.dir, "ntoconfig.db")
	}

	cfg := store.Config{
		Driver:     store.Driver(driver),
		Dir:        dir,
		SQLitePath: sqlitePath,
		Redis:      store.RedisConfig{Addr: s.RedisAddr, DB: s.RedisDB},
		S3: store.S3Config{
			Bucket:    s.S3Bucket,
			Prefix:    s.S3Prefix,
			Region:    s.S3Region,
			Endpoint:  s.S3Endpoint,
			PathStyle: s.S3Endpoint != "",
		},
	}
	if s.SSHJumpHost != "" {
		cfg.Redis.Tunnel = &store.TunnelConfig{
			Host:       s.SSHJumpHost,
			User:       s.SSHUser,
			Password:   a.getenv("NTOCONFIG_SSH_PASSWORD"),
			KeyFile:    a.getenv("NTOCONFIG_SSH_KEY"),
			KnownHosts: a.getenv("NTOCONFIG_SSH_KNOWN_HOSTS"),
		}
	}
	return cfg, nil
}

func (a *app) openStore(ctx context.Context) (store.Store, error) {
	cfg, err := a.storeConfig()
	if err != nil {
		return nil, err
	}
	return store.Open(ctx, cfg)
}

// openAudit opens the audit log. Failure to open it is not fatal.
func (a *app) openAudit() audit.Logger {
	l, err := audit.NewFileLogger(a.settings.GetAuditLog(), audit.DefaultRotation)
	if err != nil {
		util.Warnf("Could not initialize audit logging: %v", err)
		return audit.Discard{}
	}
	return l
}

func (a *app) runner(verb string) *fanout.Runner {
	opts := fanout.Options{Parallel: a.parallel}
	if a.verbose {
		opts.Progress = fanout.NewConsoleProgressTo(util.Logger.Out, verb, true)
	}
	return fanout.NewRunner(opts)
}

// writeMetrics exports rec when --metrics-file is set.
func (a *app) writeMetrics(rec *metrics.Recorder) {
	if a.metricsFile == "" {
		return
	}
	if err := rec.WriteTextfile(a.metricsFile); err != nil {
		util.Warnf("Could not write metrics: %v", err)
	}
}
