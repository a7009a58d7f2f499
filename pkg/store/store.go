// Package store persists captured snapshots, one per device host.
//
// Every driver keeps both encodings of a snapshot: the compact form, which
// is the only one read back, and the pretty form for humans and diff
// tools. Loading a host that was never saved returns an error wrapping
// util.ErrNotFound.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/bortok/ixvscripts/pkg/snapshot"
	"github.com/bortok/ixvscripts/pkg/util"
)

// Store is a snapshot repository keyed by device host.
type Store interface {
	Save(ctx context.Context, host string, snap *snapshot.Snapshot) error
	Load(ctx context.Context, host string) (*snapshot.Snapshot, error)
	// List returns the hosts with a saved snapshot, sorted.
	List(ctx context.Context) ([]string, error)
	Close() error
}

// Driver names a Store implementation.
type Driver string

const (
	DriverFS     Driver = "fs"
	DriverMemory Driver = "memory"
	DriverRedis  Driver = "redis"
	DriverS3     Driver = "s3"
	DriverSQLite Driver = "sqlite"
)

const (
	compactSuffix = "_config.txt"
	prettySuffix  = "_config.json"
)

// CompactName is the file or object name of the compact form.
func CompactName(host string) string {
	return util.SanitizeHost(host) + compactSuffix
}

// PrettyName is the file or object name of the pretty form.
func PrettyName(host string) string {
	return util.SanitizeHost(host) + prettySuffix
}

// hostFromName reverses CompactName.
func hostFromName(name string) (string, bool) {
	host, ok := strings.CutSuffix(name, compactSuffix)
	return host, ok && host != ""
}

// encoded holds both forms of one snapshot.
type encoded struct {
	compact []byte
	pretty  []byte
}

func encode(snap *snapshot.Snapshot) (encoded, error) {
	compact, err := snap.Marshal()
	if err != nil {
		return encoded{}, fmt.Errorf("encoding snapshot: %w", err)
	}
	pretty, err := snap.MarshalPretty()
	if err != nil {
		return encoded{}, fmt.Errorf("encoding snapshot: %w", err)
	}
	return encoded{compact: compact, pretty: pretty}, nil
}

func decode(host string, data []byte) (*snapshot.Snapshot, error) {
	snap, err := snapshot.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("snapshot for %s: %w", host, err)
	}
	return snap, nil
}

func notFound(host string) error {
	return fmt.Errorf("no snapshot saved for %s: %w", host, util.ErrNotFound)
}
