package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/bortok/ixvscripts/pkg/snapshot"
)

// FS keeps snapshots as <dir>/<host>_config.txt and <dir>/<host>_config.json.
type FS struct {
	dir string
}

// NewFS returns a filesystem store rooted at dir. The directory is created
// on first save.
func NewFS(dir string) *FS {
	if dir == "" {
		dir = "."
	}
	return &FS{dir: dir}
}

// Dir returns the root directory.
func (s *FS) Dir() string {
	return s.dir
}

func (s *FS) Save(ctx context.Context, host string, snap *snapshot.Snapshot) error {
	enc, err := encode(snap)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	// The pretty file goes first so a crash never leaves a compact file
	// without its readable twin.
	if err := writeFileAtomic(filepath.Join(s.dir, PrettyName(host)), enc.pretty); err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(s.dir, CompactName(host)), enc.compact)
}

func (s *FS) Load(ctx context.Context, host string) (*snapshot.Snapshot, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, CompactName(host)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(host)
		}
		return nil, err
	}
	return decode(host, data)
}

func (s *FS) List(ctx context.Context) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*"+compactSuffix))
	if err != nil {
		return nil, err
	}
	hosts := make([]string, 0, len(matches))
	for _, m := range matches {
		if host, ok := hostFromName(filepath.Base(m)); ok {
			hosts = append(hosts, host)
		}
	}
	slices.Sort(hosts)
	return hosts, nil
}

func (s *FS) Close() error { return nil }

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".ntoconfig-*")
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
