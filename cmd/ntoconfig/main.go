// ntoconfig captures the configuration of Vision packet brokers and replays
// it onto other devices, typically ones running older firmware that cannot
// import the native export format.
//
//	ntoconfig capture -u admin -H 10.36.74.17              # save a snapshot
//	ntoconfig replay  -u admin -H 10.36.74.18 --from 10.36.74.17
//	ntoconfig replay  -u admin -f hosts.txt --dry-run      # preview every host
//	ntoconfig show 10.36.74.17                             # inspect a snapshot
//
// Snapshots live in a store selected with --store (fs, memory, redis, s3,
// sqlite). Object ids change between devices; replay looks ports and icons
// up by name, recreates port groups and filters, and rewrites every
// reference to the ids the target device assigned.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bortok/ixvscripts/pkg/settings"
	"github.com/bortok/ixvscripts/pkg/util"
)

// errUsage marks invalid invocations; they exit with status 2.
var errUsage = errors.New("usage")

func usageErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

// app is the state shared by every command of one invocation.
type app struct {
	settings *settings.Settings
	getenv   func(string) string

	verbose     bool
	jsonLog     bool
	storeDriver string
	dir         string
	parallel    int
	metricsFile string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one invocation and returns the process exit status.
func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(&app{getenv: os.Getenv})
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return 0
	}
	if errors.Is(err, errUsage) || strings.HasPrefix(err.Error(), "unknown command") {
		fmt.Fprintf(stderr, "ntoconfig: %s\nRun 'ntoconfig --help' for usage.\n", strings.TrimPrefix(err.Error(), "usage: "))
		return 2
	}
	fmt.Fprintf(stderr, "ntoconfig: %v\n", err)
	return 1
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "ntoconfig",
		Short: "Capture and replay packet-broker configuration",
		Long: `ntoconfig captures ports, port groups and filters from Vision packet
brokers into portable snapshots and replays them onto other devices.

  ntoconfig capture -u <user> -H <host>            # save a snapshot
  ntoconfig replay  -u <user> -H <host> [--dry-run] # apply it
  ntoconfig show <host>                            # inspect it`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageErrorf("%v", err)
	})

	pf := root.PersistentFlags()
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Verbose output")
	pf.BoolVar(&a.jsonLog, "json-log", false, "Log in JSON format")
	pf.StringVar(&a.storeDriver, "store", "", "Snapshot store: "+strings.Join(settings.Drivers, ", "))
	pf.StringVar(&a.dir, "dir", "", "Snapshot directory for the fs and sqlite stores")
	pf.IntVar(&a.parallel, "parallel", -1, "Maximum devices handled at once (0 = all)")
	pf.StringVar(&a.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")

	root.AddGroup(
		&cobra.Group{ID: "device", Title: "Device Operations:"},
		&cobra.Group{ID: "meta", Title: "Snapshots & Meta:"},
	)
	for _, cmd := range []*cobra.Command{newCaptureCmd(a), newReplayCmd(a)} {
		cmd.GroupID = "device"
		root.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{newShowCmd(a), newSettingsCmd(a), newAuditCmd(a), newVersionCmd()} {
		cmd.GroupID = "meta"
		root.AddCommand(cmd)
	}
	return root
}

// init loads settings and configures logging before any command runs.
func (a *app) init() error {
	util.ConfigureLogging(a.verbose, a.jsonLog)

	s, err := settings.Load()
	if err != nil {
		util.Warnf("Could not load settings: %v", err)
		s = &settings.Settings{}
	}
	s.ApplyEnv(a.getenv)
	a.settings = s

	if a.parallel < 0 {
		a.parallel = s.Parallel
	}
	return nil
}
