package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bortok/ixvscripts/pkg/cli"
	"github.com/bortok/ixvscripts/pkg/settings"
)

func newSettingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage persistent settings",
		Long: `Manage persistent settings stored in ~/.ntoconfig/settings.json.

Settings provide defaults for flags:
  - user:         Used when -u is not specified
  - port:         Web API port (-r flag default)
  - store:        Snapshot store (--store flag default)
  - snapshot_dir: Directory of the fs store (--dir flag default)

Examples:
  ntoconfig settings show
  ntoconfig settings set user admin
  ntoconfig settings set store s3
  ntoconfig settings set s3_bucket nto-snapshots
  ntoconfig settings clear`,
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show current settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Settings file: %s\n\n", settings.DefaultSettingsPath())

			t := cli.NewTableTo(out, "SETTING", "VALUE")
			for _, name := range settings.Keys() {
				v, _ := a.settings.Get(name)
				if v == "" {
					v = cli.Dim("(not set)")
				}
				t.Row(name, v)
			}
			t.Flush()
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <setting> <value>",
		Short: "Set a setting value",
		Long: "Set a persistent setting value.\n\nAvailable settings:\n  " +
			strings.Join(settings.Keys(), "\n  "),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := settings.Load()
			if err != nil {
				s = &settings.Settings{}
			}
			if err := s.Set(args[0], args[1]); err != nil {
				return usageErrorf("%v", err)
			}
			if err := s.Save(); err != nil {
				return fmt.Errorf("saving settings: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s set to: %s\n", args[0], args[1])
			return nil
		},
	}

	getCmd := &cobra.Command{
		Use:   "get <setting>",
		Short: "Get a setting value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.settings.Get(args[0])
			if err != nil {
				return usageErrorf("%v", err)
			}
			if v == "" {
				v = "(not set)"
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear all settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := &settings.Settings{}
			if err := s.Save(); err != nil {
				return fmt.Errorf("saving settings: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Settings cleared")
			return nil
		},
	}

	cmd.AddCommand(showCmd, setCmd, getCmd, clearCmd)
	return cmd
}
