// Package cli implements the nbsftp command.
package cli

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

// Execute runs the nbsftp command. An interrupt cancels the running operation.
func Execute(version string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return newRootCmd(version).ExecuteContext(ctx)
}

func newRootCmd(version string) *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "nbsftp",
		Short:         "Transfer and manage files over SFTP",
		Long:          "nbsftp runs one SFTP operation against a remote server over a non-blocking session.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default $XDG_CONFIG_HOME/nbsftp/config.yaml)")
	flags.String("host", "", "server host name or address")
	flags.Int("port", 0, "server port (default 22)")
	flags.String("user", "", "login user")
	flags.String("password", "", "login password")
	flags.String("identity", "", "private key file for public key login")
	flags.String("passphrase", "", "passphrase of the private key")
	flags.String("known-hosts", "", "known_hosts file (default ~/.ssh/known_hosts)")
	flags.Duration("timeout", 0, "bound on each remote operation (default 30s)")
	flags.String("log-level", "", "log level: trace, debug, info, warn, error")
	flags.String("log-format", "", "log format: console, json")
	flags.StringVar(&a.metricsFile, "metrics-file", "", "write session metrics to this file in Prometheus text format")

	cmd.AddCommand(
		newLsCmd(a),
		newStatCmd(a),
		newPwdCmd(a),
		newInfoCmd(a),
		newGetCmd(a),
		newPutCmd(a),
		newMkdirCmd(a),
		newRmdirCmd(a),
		newRmCmd(a),
		newMvCmd(a),
	)

	return cmd
}
