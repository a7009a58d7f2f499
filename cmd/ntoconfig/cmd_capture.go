package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bortok/ixvscripts/pkg/capture"
	"github.com/bortok/ixvscripts/pkg/cli"
	"github.com/bortok/ixvscripts/pkg/metrics"
	"github.com/bortok/ixvscripts/pkg/snapshot"
)

func newCaptureCmd(a *app) *cobra.Command {
	var (
		dev        deviceFlags
		portGroups bool
	)

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture device configuration into snapshots",
		Long: `Capture enabled ports and all filters from each device and save one
snapshot per host in the snapshot store.

Port groups are captured only with --port-groups; replay recreates them
from scratch on the target.

  ntoconfig capture -u admin -H 10.36.74.17
  ntoconfig capture -u admin -f hosts.txt --parallel 4
  ntoconfig capture -u admin -H 10.36.74.17 --store s3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			hosts, err := dev.hosts()
			if err != nil {
				return err
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

			rec := metrics.NewRecorder()
			results := a.runner("capture").Run(ctx, hosts, func(ctx context.Context, host string) (string, error) {
				start := time.Now()
				snap, err := captureHost(ctx, a, &dev, host, portGroups, rec)
				rec.Device("capture", err, time.Since(start))
				if err != nil {
					return "", err
				}
				if err := st.Save(ctx, host, snap); err != nil {
					return "", err
				}
				return countsDetail(snap), nil
			})
			a.writeMetrics(rec)

			printResults(cmd.OutOrStdout(), results)
			return nil
		},
	}

	dev.register(cmd)
	cmd.Flags().BoolVar(&portGroups, "port-groups", false, "Also capture port groups")
	return cmd
}

func captureHost(ctx context.Context, a *app, dev *deviceFlags, host string, portGroups bool, rec *metrics.Recorder) (*snapshot.Snapshot, error) {
	gw, err := newGateway(dev.visionConfig(a, host))
	if err != nil {
		return nil, err
	}
	return capture.Run(ctx, gw, capture.Options{PortGroups: portGroups, Device: host, Metrics: rec})
}

// countsDetail summarises a snapshot as "2 ports, 1 port group, 3 filters".
func countsDetail(snap *snapshot.Snapshot) string {
	c := snap.Counts()
	s := fmt.Sprintf("%s, ", cli.Plural(c[snapshot.TypePort], "port"))
	if n := c[snapshot.TypePortGroup]; n > 0 {
		s += fmt.Sprintf("%s, ", cli.Plural(n, "port group"))
	}
	return s + cli.Plural(c[snapshot.TypeFilter], "filter")
}
