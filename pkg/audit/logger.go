package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/bortok/ixvscripts/pkg/util"
)

// Logger records and queries audit events.
type Logger interface {
	Log(event *Event) error
	Query(filter Filter) ([]*Event, error)
	Close() error
}

// FileLogger appends events to a JSON-lines file, one line per write, and
// rotates it by size. It is safe for use by several device workers at once.
type FileLogger struct {
	path     string
	rotation RotationConfig

	mu   sync.Mutex
	file *os.File
	size int64
}

// RotationConfig bounds the audit log on disk.
type RotationConfig struct {
	MaxSize    int64 // bytes before rotation, 0 disables
	MaxBackups int   // rotated files to keep, 0 keeps all
}

// DefaultRotation is used by the CLI.
var DefaultRotation = RotationConfig{
	MaxSize:    10 * 1024 * 1024,
	MaxBackups: 10,
}

// backupStamp names rotated files so that they sort oldest first.
const backupStamp = "20060102-150405.000000000"

// NewFileLogger opens (creating if needed) the log at path.
func NewFileLogger(path string, rotation RotationConfig) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating audit log directory: %w", err)
	}
	l := &FileLogger{path: path, rotation: rotation}
	if err := l.open(); err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	return l, nil
}

func (l *FileLogger) open() error {
	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}
	l.file, l.size = file, info.Size()
	return nil
}

// Log appends event. The file is rotated first when the line would take it
// past MaxSize.
func (l *FileLogger) Log(event *Event) error {
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding audit event: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return fmt.Errorf("audit log %s is closed", l.path)
	}
	if limit := l.rotation.MaxSize; limit > 0 && l.size > 0 && l.size+int64(len(line)) > limit {
		if err := l.rotate(); err != nil {
			return fmt.Errorf("rotating audit log: %w", err)
		}
	}
	n, err := l.file.Write(line)
	l.size += int64(n)
	return err
}

// Query returns matching events newest first, reading rotated backups as
// well as the live file. Offset and Limit apply after ordering.
func (l *FileLogger) Query(filter Filter) ([]*Event, error) {
	l.mu.Lock()
	files, err := l.backups()
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}
	files = append(files, l.path)

	var events []*Event
	for _, path := range files {
		found, err := readEvents(path, filter)
		if err != nil {
			return nil, err
		}
		events = append(events, found...)
	}
	slices.Reverse(events)

	events = events[min(filter.Offset, len(events)):]
	if filter.Limit > 0 && filter.Limit < len(events) {
		events = events[:filter.Limit]
	}
	if events == nil {
		events = []*Event{}
	}
	return events, nil
}

// readEvents scans one file in write order. A missing file holds no
// events; malformed lines are skipped with a warning.
func readEvents(path string, filter Filter) ([]*Event, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var events []*Event
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for line := 1; scanner.Scan(); line++ {
		var event Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			util.Warnf("audit: skipping malformed entry %s:%d: %v", filepath.Base(path), line, err)
			continue
		}
		if filter.matches(&event) {
			events = append(events, &event)
		}
	}
	return events, scanner.Err()
}

// Close closes the log. Further Log calls fail; Query keeps working.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (f Filter) matches(event *Event) bool {
	switch {
	case f.Device != "" && event.Device != f.Device:
		return false
	case f.User != "" && event.User != f.User:
		return false
	case f.Operation != "" && event.Operation != f.Operation:
		return false
	case f.ObjectType != "" && event.ObjectType != f.ObjectType:
		return false
	case f.RunID != "" && event.RunID != f.RunID:
		return false
	case !f.StartTime.IsZero() && event.Timestamp.Before(f.StartTime):
		return false
	case !f.EndTime.IsZero() && event.Timestamp.After(f.EndTime):
		return false
	case f.SuccessOnly && !event.Success:
		return false
	case f.FailureOnly && event.Success:
		return false
	}
	return true
}

// rotate moves the live file aside and prunes old backups. The caller
// holds l.mu.
func (l *FileLogger) rotate() error {
	if err := l.file.Close(); err != nil {
		return err
	}
	l.file = nil
	if err := os.Rename(l.path, l.path+"."+time.Now().Format(backupStamp)); err != nil {
		return err
	}
	if err := l.open(); err != nil {
		return err
	}

	if l.rotation.MaxBackups <= 0 {
		return nil
	}
	backups, err := l.backups()
	if err != nil || len(backups) <= l.rotation.MaxBackups {
		return err
	}
	for _, path := range backups[:len(backups)-l.rotation.MaxBackups] {
		os.Remove(path)
	}
	return nil
}

// backups lists rotated files oldest first.
func (l *FileLogger) backups() ([]string, error) {
	matches, err := filepath.Glob(l.path + ".*")
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// Discard is a Logger that drops everything.
type Discard struct{}

func (Discard) Log(*Event) error                { return nil }
func (Discard) Query(Filter) ([]*Event, error) { return []*Event{}, nil }
func (Discard) Close() error                   { return nil }
