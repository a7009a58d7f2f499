package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bortok/ixvscripts/pkg/audit"
	"github.com/bortok/ixvscripts/pkg/cli"
)

func newAuditCmd(a *app) *cobra.Command {
	var (
		filter   audit.Filter
		last     string
		asJSON   bool
		showDiff bool
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "View the audit log",
		Long: `View the audit log of device changes made by replay.

Every create and modify is logged with the device, user, object and
outcome, including dry runs.

Examples:
  ntoconfig audit --device 10.36.74.18
  ntoconfig audit --last 24h --failures
  ntoconfig audit --run <run-id> --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if last != "" {
				d, err := parseSince(last)
				if err != nil {
					return usageErrorf("invalid duration: %s", last)
				}
				filter.StartTime = time.Now().Add(-d)
			}

			log, err := audit.NewFileLogger(a.settings.GetAuditLog(), audit.RotationConfig{})
			if err != nil {
				return err
			}
			defer log.Close()

			events, err := log.Query(filter)
			if err != nil {
				return fmt.Errorf("querying audit log: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(out).Encode(events)
			}
			if len(events) == 0 {
				fmt.Fprintln(out, "No audit events found")
				return nil
			}

			headers := []string{"TIMESTAMP", "USER", "DEVICE", "OPERATION", "OBJECT", "STATUS"}
			if showDiff {
				headers = append(headers, "FIELDS")
			}
			t := cli.NewTableTo(out, headers...)
			for _, e := range events {
				status := "ok"
				switch {
				case !e.Success:
					status = "failed"
				case e.DryRun:
					status = "dry-run"
				}
				row := []string{
					e.Timestamp.Format("2006-01-02 15:04:05"),
					e.User,
					e.Device,
					e.Operation,
					objectLabel(e),
					cli.Status(status),
				}
				if showDiff {
					row = append(row, strings.Join(e.Fields, ","))
				}
				t.Row(row...)
			}
			t.Flush()
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&filter.Device, "device", "", "Filter by device")
	f.StringVar(&filter.User, "user", "", "Filter by user")
	f.StringVar(&filter.RunID, "run", "", "Filter by replay run id")
	f.StringVar(&filter.ObjectType, "type", "", "Filter by object type")
	f.StringVar(&last, "last", "", "Show events from last duration (e.g., 24h, 7d)")
	f.IntVar(&filter.Limit, "limit", 100, "Maximum events to show")
	f.BoolVar(&filter.FailureOnly, "failures", false, "Show only failed operations")
	f.BoolVar(&asJSON, "json", false, "Print events as JSON")
	f.BoolVar(&showDiff, "fields", false, "Show the fields sent")
	return cmd
}

// objectLabel renders "filter 7 -> 901".
func objectLabel(e *audit.Event) string {
	if e.ObjectType == "" {
		return ""
	}
	s := e.ObjectType + " " + e.OriginalID
	if e.ResolvedID != "" && e.ResolvedID != e.OriginalID {
		s += " -> " + e.ResolvedID
	}
	return s
}

// parseSince accepts time.ParseDuration syntax plus a whole-day "Nd" form.
func parseSince(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}
