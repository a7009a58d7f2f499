package fanout

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHosts(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"single", "10.0.0.1\n", []string{"10.0.0.1"}},
		{"no trailing newline", "10.0.0.1\n10.0.0.2", []string{"10.0.0.1", "10.0.0.2"}},
		{"first field only", "10.0.0.1  vision-a lab rack 3\n\t10.0.0.2\tb\n", []string{"10.0.0.1", "10.0.0.2"}},
		{"comments and blanks", "# lab\n\n10.0.0.1\n   \n  # spare\n10.0.0.2\n", []string{"10.0.0.1", "10.0.0.2"}},
		{"duplicates dropped", "a\nb\na\n", []string{"a", "b"}},
		{"windows line endings", "a\r\nb\r\n", []string{"a", "b"}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseHosts(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadHostsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hosts.txt")
	require.NoError(t, os.WriteFile(path, []byte("h1\n#h2\nh3 x\n"), 0644))

	hosts, err := ReadHostsFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"h1", "h3"}, hosts)

	_, err = ReadHostsFile(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorContains(t, err, "reading hosts file")
}

func TestRunner_ResultsInHostOrder(t *testing.T) {
	boom := errors.New("boom")
	r := NewRunner(Options{})
	results := r.Run(context.Background(), []string{"a", "b", "c"}, func(ctx context.Context, host string) (string, error) {
		if host == "b" {
			return "", boom
		}
		return "done " + host, nil
	})

	require.Len(t, results, 3)
	for i, h := range []string{"a", "b", "c"} {
		assert.Equal(t, h, results[i].Host)
		assert.True(t, results[i].Started)
		assert.True(t, results[i].Done)
	}
	assert.True(t, results[0].OK())
	assert.Equal(t, "done a", results[0].Detail)
	assert.ErrorIs(t, results[1].Err, boom)
	assert.False(t, results[1].OK())
	assert.Equal(t, 1, Failed(results))
}

func TestRunner_ParallelBound(t *testing.T) {
	var running, peak int32
	r := NewRunner(Options{Parallel: 2})
	hosts := []string{"h1", "h2", "h3", "h4", "h5", "h6"}

	results := r.Run(context.Background(), hosts, func(ctx context.Context, host string) (string, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return "", nil
	})

	assert.Equal(t, 0, Failed(results))
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestRunner_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	results := NewRunner(Options{}).Run(ctx, []string{"a", "b"}, func(ctx context.Context, host string) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", nil
	})

	assert.Zero(t, atomic.LoadInt32(&calls))
	for _, res := range results {
		assert.False(t, res.Started)
		assert.ErrorIs(t, res.Err, context.Canceled)
	}
	assert.Equal(t, 2, Failed(results))
}

func TestRunner_CancelStopsNewHosts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var seen []string
	results := NewRunner(Options{Parallel: 1}).Run(ctx, []string{"a", "b", "c"}, func(ctx context.Context, host string) (string, error) {
		mu.Lock()
		seen = append(seen, host)
		mu.Unlock()
		if host == "a" {
			cancel()
		}
		return "", nil
	})

	assert.Equal(t, []string{"a"}, seen)
	assert.False(t, results[1].Started)
	assert.False(t, results[2].Started)
	assert.ErrorIs(t, results[2].Err, context.Canceled)
}

func TestRunner_ReturnsWithoutWaitingAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	slowStarted := make(chan struct{})

	results := NewRunner(Options{}).Run(ctx, []string{"slow", "trigger"}, func(ctx context.Context, host string) (string, error) {
		if host == "slow" {
			close(slowStarted)
			<-release
			return "", nil
		}
		<-slowStarted
		cancel()
		return "", nil
	})

	assert.True(t, results[0].Started)
	assert.False(t, results[0].Done)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
}

func TestConsoleProgress(t *testing.T) {
	var buf bytes.Buffer
	r := NewRunner(Options{Progress: NewConsoleProgressTo(&buf, "capture", true)})
	r.Run(context.Background(), []string{"10.0.0.1", "10.0.0.2"}, func(ctx context.Context, host string) (string, error) {
		if host == "10.0.0.2" {
			return "", errors.New("connection refused")
		}
		return "12 objects", nil
	})

	out := buf.String()
	assert.Contains(t, out, "capture: 2 devices")
	assert.Contains(t, out, "10.0.0.1 ...")
	assert.Contains(t, out, "12 objects")
	assert.Contains(t, out, "connection refused")
	assert.Contains(t, out, "started")
	assert.Contains(t, out, "1/2 ok")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "250ms", formatDuration(250*time.Millisecond))
	assert.Equal(t, "1.5s", formatDuration(1500*time.Millisecond))
}
