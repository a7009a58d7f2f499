package store

import (
	"context"
	"fmt"

	"github.com/bortok/ixvscripts/pkg/util"
)

// Config selects and configures a driver. Only the section matching Driver
// is read.
type Config struct {
	Driver     Driver
	Dir        string
	Redis      RedisConfig
	S3         S3Config
	SQLitePath string
}

// Open returns the Store for cfg.Driver. An empty driver means fs.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverFS
	}
	util.WithField("driver", string(driver)).Debug("opening snapshot store")

	switch driver {
	case DriverFS:
		return NewFS(cfg.Dir), nil
	case DriverMemory:
		return NewMemory(), nil
	case DriverRedis:
		return NewRedis(ctx, cfg.Redis)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	case DriverSQLite:
		path := cfg.SQLitePath
		if path == "" {
			return nil, fmt.Errorf("sqlite store: path is required: %w", util.ErrInvalidConfig)
		}
		return NewSQLite(path)
	default:
		return nil, fmt.Errorf("unknown store driver %q: %w", driver, util.ErrInvalidConfig)
	}
}
