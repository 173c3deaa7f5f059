package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := buildRoot().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// globalFlags holds persistent flags shared by all commands.
type globalFlags struct {
	ConfigPath string
	APIURL     string
}

func buildRoot() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "hostling",
		Short:         "Lifecycle reconciliation daemon for hosted bots and websites",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to hostling.toml")
	root.PersistentFlags().StringVar(&flags.APIURL, "api-url", "", "daemon API base URL (default http://127.0.0.1:8211/api)")

	root.AddCommand(
		createServeCommand(flags),
		createStartCommand(flags),
		createStopCommand(flags),
		createRestartCommand(flags),
		createStatusCommand(flags),
		createListCommand(flags),
		createReconcileCommand(flags),
	)
	return root
}
