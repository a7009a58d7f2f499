package store

import (
	"context"
	"slices"
	"sync"

	"github.com/bortok/ixvscripts/pkg/snapshot"
	"github.com/bortok/ixvscripts/pkg/util"
)

// Memory is a process-local store, used in tests and dry runs.
type Memory struct {
	mu    sync.RWMutex
	items map[string]encoded
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]encoded)}
}

func (s *Memory) Save(ctx context.Context, host string, snap *snapshot.Snapshot) error {
	enc, err := encode(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[util.SanitizeHost(host)] = enc
	return nil
}

func (s *Memory) Load(ctx context.Context, host string) (*snapshot.Snapshot, error) {
	s.mu.RLock()
	enc, ok := s.items[util.SanitizeHost(host)]
	s.mu.RUnlock()
	if !ok {
		return nil, notFound(host)
	}
	return decode(host, enc.compact)
}

// Pretty returns the stored pretty form.
func (s *Memory) Pretty(host string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	enc, ok := s.items[util.SanitizeHost(host)]
	return enc.pretty, ok
}

func (s *Memory) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hosts := make([]string, 0, len(s.items))
	for host := range s.items {
		hosts = append(hosts, host)
	}
	slices.Sort(hosts)
	return hosts, nil
}

func (s *Memory) Close() error { return nil }
