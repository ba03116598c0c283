// Command myolink reads EMG windows from a serial sensor, classifies the
// intended movement and drives an actuator, logging every cycle.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/banshee-data/myolink/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "myolink",
		Short: "EMG gesture acquisition and actuation",
		Long: `myolink streams windows from an EMG sensor, extracts time-domain features,
classifies the intended movement and sends the matching actuator command.
Every cycle is appended to a timing log and a training log.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetVersionTemplate(version.String() + "\n")

	root.AddCommand(newRunCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	})
	return root
}
