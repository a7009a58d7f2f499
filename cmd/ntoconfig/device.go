package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/bortok/ixvscripts/pkg/fanout"
	"github.com/bortok/ixvscripts/pkg/gateway"
	"github.com/bortok/ixvscripts/pkg/vision"
)

// newGateway connects to one device. Tests replace it.
var newGateway = func(cfg vision.Config) (gateway.Gateway, error) {
	return vision.New(cfg)
}

// stdinIsTerminal reports whether a password can be prompted for.
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// deviceFlags are the connection flags shared by capture and replay.
type deviceFlags struct {
	user      string
	password  string
	host      string
	hostsFile string
	port      int
	insecure  bool
	timeout   time.Duration
}

func (f *deviceFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.user, "user", "u", "", "Web API user (default from settings)")
	fl.StringVarP(&f.password, "password", "p", "", "Web API password (prompted when omitted)")
	fl.StringVarP(&f.host, "host", "H", "", "Device host or IP")
	fl.StringVarP(&f.hostsFile, "hosts-file", "f", "", "File with one device host per line")
	fl.IntVarP(&f.port, "port", "r", 0, "Web API port (default from settings, else 8000)")
	fl.BoolVar(&f.insecure, "insecure", true, "Skip TLS certificate verification")
	fl.DurationVar(&f.timeout, "timeout", vision.DefaultTimeout, "Timeout per API request")
}

// hosts returns the target hosts from -H or -f, exactly one of which must
// be given.
func (f *deviceFlags) hosts() ([]string, error) {
	switch {
	case f.host != "" && f.hostsFile != "":
		return nil, usageErrorf("use either -H or -f, not both")
	case f.host != "":
		return []string{f.host}, nil
	case f.hostsFile != "":
		hosts, err := fanout.ReadHostsFile(f.hostsFile)
		if err != nil {
			return nil, usageErrorf("%v", err)
		}
		if len(hosts) == 0 {
			return nil, usageErrorf("no hosts in %s", f.hostsFile)
		}
		return hosts, nil
	}
	return nil, usageErrorf("a device is required: use -H <host> or -f <hosts-file>")
}

// credentials resolves the user and password, prompting for the password
// on a terminal.
func (f *deviceFlags) credentials(a *app) error {
	if f.user == "" {
		f.user = a.settings.DefaultUser
	}
	if f.user == "" {
		return usageErrorf("a user is required: use -u <user> or 'ntoconfig settings set user <name>'")
	}
	if f.password != "" {
		return nil
	}
	if !stdinIsTerminal() {
		return usageErrorf("a password is required: use -p <password>")
	}
	fmt.Fprintf(os.Stderr, "Password for %s: ", f.user)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}
	if len(pw) == 0 {
		return usageErrorf("a password is required")
	}
	f.password = string(pw)
	return nil
}

func (f *deviceFlags) visionConfig(a *app, host string) vision.Config {
	port := f.port
	if port == 0 {
		port = a.settings.GetPort()
	}
	return vision.Config{
		Host:     host,
		Port:     port,
		Username: f.user,
		Password: f.password,
		Insecure: f.insecure,
		Timeout:  f.timeout,
	}
}
