// Package fanout runs one capture or replay per device host concurrently.
package fanout

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ParseHosts reads a hosts list: one host per line, first whitespace
// separated field used, blank lines and lines starting with # skipped.
// Duplicates are dropped, keeping the first occurrence.
func ParseHosts(r io.Reader) ([]string, error) {
	var hosts []string
	seen := make(map[string]bool)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		host := strings.Fields(line)[0]
		if seen[host] {
			continue
		}
		seen[host] = true
		hosts = append(hosts, host)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return hosts, nil
}

// ReadHostsFile parses the hosts file at path.
func ReadHostsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading hosts file: %w", err)
	}
	defer f.Close()

	hosts, err := ParseHosts(f)
	if err != nil {
		return nil, fmt.Errorf("reading hosts file %s: %w", path, err)
	}
	return hosts, nil
}
