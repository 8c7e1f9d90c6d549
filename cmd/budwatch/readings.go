package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/quentinrf/budwatch/internal/display"
)

const defaultReadingsLimit = 20

func newReadingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "readings <sensor-id> [limit]",
		Short: "Print the most recent readings of a sensor as YAML",
		Long: `Print the most recent readings of a sensor, newest first, with the
temperature in both units and the time in BUDWATCH_DISPLAY_TZ.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit := defaultReadingsLimit
			if len(args) == 2 {
				n, err := strconv.Atoi(args[1])
				if err != nil || n <= 0 {
					return fmt.Errorf("limit must be a positive integer, got %q", args[1])
				}
				limit = n
			}

			cfg, err := loadConfig(true)
			if err != nil {
				return err
			}
			formatter, err := display.NewFormatter(cfg.DisplayZone)
			if err != nil {
				return err
			}

			repo, err := openRepository(cfg.DB)
			if err != nil {
				return err
			}
			defer repo.Close()

			readings, err := repo.ListReadings(cmd.Context(), args[0], limit)
			if err != nil {
				return fmt.Errorf("failed to list readings: %w", err)
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(formatter.Rows(readings)); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}
