package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	grpcAdapter "github.com/quentinrf/budwatch/internal/adapters/grpc"
	"github.com/quentinrf/budwatch/internal/adapters/httpapi"
	"github.com/quentinrf/budwatch/internal/adapters/mqtt"
	"github.com/quentinrf/budwatch/internal/config"
	"github.com/quentinrf/budwatch/internal/display"
	"github.com/quentinrf/budwatch/internal/metrics"
	"github.com/quentinrf/budwatch/internal/ports"
	"github.com/quentinrf/budwatch/pkg/tlsconfig"
)

const shutdownTimeout = 10 * time.Second

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Poll the sensor cloud and store readings until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runDaemon(ctx, cfg)
		},
	}
}

// runDaemon wires every component and blocks until ctx is cancelled
func runDaemon(ctx context.Context, cfg config.Config) error {
	log.Info().Str("version", version).Str("api", cfg.APIType).Msg("starting budwatch")

	repo, err := openRepository(cfg.DB)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer repo.Close()

	cloud, err := newCloud(cfg)
	if err != nil {
		return err
	}

	formatter, err := display.NewFormatter(cfg.DisplayZone)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	health := grpcAdapter.NewHealthHandler()
	opts := []ports.Option{
		ports.WithMetrics(metrics.New(reg)),
		ports.WithStatusReporter(health),
	}

	if cfg.MQTTBroker != "" {
		publisher, err := mqtt.Connect(cfg.MQTTBroker, cfg.MQTTTopic)
		if err != nil {
			// Ingestion continues without fan-out
			log.Error().Err(err).Str("broker", cfg.MQTTBroker).Msg("failed to connect to MQTT broker; publishing disabled")
		} else {
			defer publisher.Close()
			opts = append(opts, ports.WithPublisher(publisher))
			log.Info().Str("broker", cfg.MQTTBroker).Str("topic", cfg.MQTTTopic).Msg("publishing readings to MQTT")
		}
	}

	ingestor := ports.NewIngestor(cloud, cloud, repo, ports.Options{
		PollInterval:    cfg.PollInterval,
		AuthBackoff:     cfg.AuthBackoff,
		AuthMaxAttempts: cfg.AuthMaxAttempts,
		WriteTimeout:    cfg.WriteTimeout,
		Retention:       cfg.Retention,
	}, opts...)

	// gRPC health service
	if cfg.GRPCPort != "" {
		srv, err := startGRPC(cfg, health)
		if err != nil {
			return err
		}
		defer func() {
			health.Shutdown()
			srv.GracefulStop()
		}()
	}

	// Read API
	if cfg.HTTPPort != "" {
		srv := &http.Server{
			Addr:              ":" + cfg.HTTPPort,
			Handler:           httpapi.NewRouter(httpapi.NewHandler(repo, ingestor, formatter), reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info().Str("port", cfg.HTTPPort).Msg("HTTP server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("HTTP server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("HTTP server did not shut down cleanly")
			}
		}()
	}

	err = ingestor.Run(ctx)
	log.Info().Msg("shutting down...")
	return err
}

func startGRPC(cfg config.Config, health *grpcAdapter.HealthHandler) (*grpc.Server, error) {
	var tlsCfg *tls.Config
	if cfg.TLSCert != "" {
		c, err := tlsconfig.LoadServerTLS(cfg.TLSCert, cfg.TLSKey, cfg.TLSCA)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS config: %w", err)
		}
		tlsCfg = c
		log.Info().Msg("mTLS enabled")
	} else {
		log.Warn().Msg("TLS_CERT not set; starting gRPC without TLS (dev mode only)")
	}

	listener, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.GRPCPort, err)
	}

	srv := grpcAdapter.NewServer(health, tlsCfg)
	go func() {
		log.Info().Str("port", cfg.GRPCPort).Msg("gRPC server listening")
		if err := srv.Serve(listener); err != nil {
			log.Error().Err(err).Msg("gRPC server failed")
		}
	}()
	return srv, nil
}
