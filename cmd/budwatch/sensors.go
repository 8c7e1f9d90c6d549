package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/quentinrf/budwatch/internal/domain"
)

type sensorEntry struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name,omitempty"`
}

func newSensorsCmd() *cobra.Command {
	sensors := &cobra.Command{
		Use:   "sensors",
		Short: "List or name sensors",
	}

	sensors.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print every known sensor as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(true)
			if err != nil {
				return err
			}
			repo, err := openRepository(cfg.DB)
			if err != nil {
				return err
			}
			defer repo.Close()

			list, err := repo.ListSensors(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list sensors: %w", err)
			}

			entries := make([]sensorEntry, 0, len(list))
			for _, s := range list {
				entries = append(entries, sensorEntry{ID: s.ID, Name: s.Name})
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			if err := enc.Encode(entries); err != nil {
				return err
			}
			return enc.Close()
		},
	})

	sensors.AddCommand(&cobra.Command{
		Use:   "set <sensor-id> <name>",
		Short: "Give a sensor a display name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(true)
			if err != nil {
				return err
			}
			repo, err := openRepository(cfg.DB)
			if err != nil {
				return err
			}
			defer repo.Close()

			sensor := domain.Sensor{ID: args[0], Name: args[1]}
			if err := repo.SaveSensor(cmd.Context(), sensor); err != nil {
				return fmt.Errorf("failed to save sensor: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %q\n", sensor.ID, sensor.DisplayName())
			return nil
		},
	})

	return sensors
}
