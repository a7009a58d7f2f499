package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bortok/ixvscripts/pkg/cli"
	"github.com/bortok/ixvscripts/pkg/fanout"
	"github.com/bortok/ixvscripts/pkg/metrics"
	"github.com/bortok/ixvscripts/pkg/policy"
	"github.com/bortok/ixvscripts/pkg/replay"
	"github.com/bortok/ixvscripts/pkg/snapshot"
	"github.com/bortok/ixvscripts/pkg/util"
)

func newReplayCmd(a *app) *cobra.Command {
	var (
		dev        deviceFlags
		from       string
		dryRun     bool
		typesFlag  string
		policyFile string
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay stored snapshots onto devices",
		Long: `Replay a stored snapshot onto each device.

Objects are applied in order icon, port, port_group, filter. Ports and
icons are looked up by name on the target, port groups and filters are
created, and every id reference is rewritten to the target's ids. Only
properties the policy marks writable are sent.

By default each host gets its own snapshot back; --from replays the
snapshot of another host instead.

  ntoconfig replay -u admin -H 10.36.74.18 --from 10.36.74.17
  ntoconfig replay -u admin -f hosts.txt --dry-run
  ntoconfig replay -u admin -H 10.36.74.17 --types port,filter`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			hosts, err := dev.hosts()
			if err != nil {
				return err
			}
			types, err := parseTypes(typesFlag)
			if err != nil {
				return err
			}
			pol := policy.Default()
			if policyFile != "" {
				if pol, err = policy.LoadFile(policyFile); err != nil {
					return usageErrorf("%v", err)
				}
			}
			if err := dev.credentials(a); err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			auditLog := a.openAudit()
			defer auditLog.Close()

			rec := metrics.NewRecorder()
			runID := uuid.NewString()
			util.WithRun(runID).Debugf("replay starting on %s", cli.Plural(len(hosts), "device"))

			var (
				mu      sync.Mutex
				reports = make(map[string]*replay.Report)
			)
			results := a.runner("replay").Run(ctx, hosts, func(ctx context.Context, host string) (string, error) {
				source := from
				if source == "" {
					source = host
				}
				snap, err := st.Load(ctx, source)
				if err != nil {
					return "", err
				}
				gw, err := newGateway(dev.visionConfig(a, host))
				if err != nil {
					return "", err
				}

				start := time.Now()
				report, runErr := replay.New(gw, replay.Options{
					Policy:  pol,
					Types:   types,
					DryRun:  dryRun,
					Device:  host,
					User:    dev.user,
					RunID:   runID,
					Audit:   auditLog,
					Metrics: rec,
				}).Run(ctx, snap)
				rec.Device("replay", runErr, time.Since(start))

				mu.Lock()
				reports[host] = report
				mu.Unlock()

				sum := report.Summary()
				detail := fmt.Sprintf("%d ok, %d failed, %d skipped", sum.OK, sum.Failed, sum.Skipped)
				if dryRun {
					detail += " (dry run)"
				}
				return detail, runErr
			})
			a.writeMetrics(rec)

			// Hosts still in flight after a cancel may report late.
			mu.Lock()
			done := maps.Clone(reports)
			mu.Unlock()

			out := cmd.OutOrStdout()
			printResults(out, results)
			printFailures(out, results, done)
			if a.verbose {
				printMappings(out, results, done)
			}
			return nil
		},
	}

	dev.register(cmd)
	f := cmd.Flags()
	f.StringVar(&from, "from", "", "Replay the snapshot captured from this host")
	f.BoolVar(&dryRun, "dry-run", false, "Look objects up but create and modify nothing")
	f.StringVar(&typesFlag, "types", "", "Comma-separated object types to replay (default all)")
	f.StringVar(&policyFile, "policy", "", "YAML property policy replacing the built-in one")
	return cmd
}

func parseTypes(s string) ([]snapshot.ObjectType, error) {
	var types []snapshot.ObjectType
	for _, name := range util.SplitCommaSeparated(s) {
		t, err := snapshot.ParseObjectType(name)
		if err != nil {
			return nil, usageErrorf("--types: %v", err)
		}
		types = append(types, t)
	}
	return types, nil
}

func printFailures(w io.Writer, results []fanout.Result, reports map[string]*replay.Report) {
	t := cli.NewTableTo(w, "DEVICE", "TYPE", "ID", "NAME", "STATE", "ERROR")
	for _, r := range results {
		report, ok := reports[r.Host]
		if !ok {
			continue
		}
		for _, res := range report.Failures() {
			t.Row(r.Host, string(res.Type), string(res.OriginalID), res.Name, string(res.State), res.Err.Error())
		}
	}
	if t.Len() == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", cli.Bold("Failed objects"))
	t.Flush()
}

func printMappings(w io.Writer, results []fanout.Result, reports map[string]*replay.Report) {
	t := cli.NewTableTo(w, "DEVICE", "ORIGINAL", "RESOLVED")
	for _, r := range results {
		report, ok := reports[r.Host]
		if !ok {
			continue
		}
		for _, m := range report.Mappings {
			t.Row(r.Host, string(m.Original), string(m.Resolved))
		}
	}
	if t.Len() == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", cli.Bold("Id mappings"))
	t.Flush()
}
