package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bortok/ixvscripts/pkg/cli"
	"github.com/bortok/ixvscripts/pkg/snapshot"
)

func newShowCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show [host]",
		Short: "Show stored snapshots",
		Long: `Without a host, list the hosts with a stored snapshot. With a host,
print its object counts and objects, or the pretty JSON form with --json.

  ntoconfig show
  ntoconfig show 10.36.74.17
  ntoconfig show 10.36.74.17 --json`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 1 {
				return usageErrorf("show takes at most one host")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				hosts, err := st.List(ctx)
				if err != nil {
					return err
				}
				if len(hosts) == 0 {
					fmt.Fprintln(out, "No snapshots stored")
					return nil
				}
				t := cli.NewTableTo(out, "HOST")
				for _, h := range hosts {
					t.Row(h)
				}
				t.Flush()
				return nil
			}

			host := args[0]
			snap, err := st.Load(ctx, host)
			if err != nil {
				return err
			}
			if asJSON {
				data, err := snap.MarshalPretty()
				if err != nil {
					return err
				}
				out.Write(data)
				fmt.Fprintln(out)
				return nil
			}

			counts := snap.Counts()
			fmt.Fprintf(out, "Snapshot: %s\n", cli.Bold(host))
			for _, typ := range snapshot.KnownTypes {
				if n := counts[typ]; n > 0 {
					fmt.Fprintf(out, "  %s\n", cli.DotPad(string(typ), 14)+" "+strconv.Itoa(n))
				}
			}
			fmt.Fprintln(out)

			t := cli.NewTableTo(out, "TYPE", "ID", "NAME", "PROPERTIES")
			for _, obj := range snap.All() {
				t.Row(string(obj.Type), string(obj.OriginalID), obj.Name, strconv.Itoa(len(obj.Properties)))
			}
			t.Flush()
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the pretty JSON form")
	return cmd
}
