package main

import (
	"github.com/spf13/cobra"
)

var version = "dev"

// newRootCmd builds the command tree; with no subcommand it runs the daemon
func newRootCmd() *cobra.Command {
	run := newRunCmd()

	root := &cobra.Command{
		Use:   "budwatch",
		Short: "Collect SensorPush temperature and humidity readings",
		Long: `budwatch polls the SensorPush cloud for the latest readings of every sensor
on the account and stores them in a relational database.

All settings come from the environment (BUDWATCH_*), for example:
  BUDWATCH_EMAIL, BUDWATCH_PASSWORD    SensorPush account
  BUDWATCH_DB_DRIVER                   sqlite | postgres | memory
  BUDWATCH_POLL_INTERVAL               60s

Quick Start:
  budwatch run                         # ingest until interrupted
  budwatch check                       # verify storage and API access
  budwatch readings <sensor-id>        # show recent readings`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          run.RunE,
	}

	root.AddCommand(
		run,
		newMigrateCmd(),
		newCheckCmd(),
		newReadingsCmd(),
		newSensorsCmd(),
	)
	return root
}
