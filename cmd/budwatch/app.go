package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quentinrf/budwatch/internal/adapters/memory"
	"github.com/quentinrf/budwatch/internal/adapters/mock"
	"github.com/quentinrf/budwatch/internal/adapters/sensorpush"
	"github.com/quentinrf/budwatch/internal/adapters/sqlstore"
	"github.com/quentinrf/budwatch/internal/config"
	"github.com/quentinrf/budwatch/internal/domain"
	"github.com/quentinrf/budwatch/internal/ports"
	"github.com/quentinrf/budwatch/pkg/tlsconfig"
)

// loadConfig reads the environment and initializes the logger.
// storageOnly skips checks that only matter when talking to the cloud.
func loadConfig(storageOnly bool) (config.Config, error) {
	load := config.Load
	if storageOnly {
		load = config.LoadStorage
	}

	cfg, err := load()
	setupLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setupLogger(level, format string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

// openRepository opens the configured storage backend
func openRepository(db config.DBConfig) (domain.ReadingRepository, error) {
	switch db.Driver {
	case config.DriverMemory:
		log.Warn().Msg("using in-memory storage; readings are lost on exit")
		return memory.NewReadingRepository(), nil
	default:
		store, err := sqlstore.Open(db.Driver, db.DSN())
		if err != nil {
			return nil, err
		}
		log.Info().Str("driver", store.Dialect()).Str("host", db.Host).Str("path", db.Path).Msg("opened database")
		return store, nil
	}
}

// newCloud builds the configured sensor cloud client
func newCloud(cfg config.Config) (ports.SensorCloud, error) {
	switch cfg.APIType {
	case config.APIMock:
		log.Info().Msg("using mock sensor cloud")
		return mock.NewFakeCloud(nil, 75.0, 3.0), nil // 75±3°F grow tent
	default:
		opts := []sensorpush.Option{
			sensorpush.WithTimeout(cfg.FetchTimeout),
			sensorpush.WithLimit(cfg.SampleLimit),
		}
		if cfg.APICA != "" {
			tlsCfg, err := tlsconfig.LoadRootCAs(cfg.APICA)
			if err != nil {
				return nil, fmt.Errorf("BUDWATCH_API_CA: %w", err)
			}
			opts = append(opts, sensorpush.WithTLSConfig(tlsCfg))
		}
		return sensorpush.New(cfg.APIURL, cfg.Credentials, opts...), nil
	}
}
