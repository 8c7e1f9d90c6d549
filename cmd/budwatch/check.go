package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	grpcAdapter "github.com/quentinrf/budwatch/internal/adapters/grpc"
	"github.com/quentinrf/budwatch/internal/config"
	"github.com/quentinrf/budwatch/internal/domain"
	"github.com/quentinrf/budwatch/pkg/tlsconfig"
)

const checkTimeout = 10 * time.Second

var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true).
			Underline(true)
)

var errChecksFailed = errors.New("one or more checks failed")

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify storage, SensorPush access and a running daemon",
		Long: `Check the health of a budwatch installation by verifying:
  • Storage is reachable and the schema exists
  • The configured account can authorize
  • Samples can be fetched and normalized
  • A running daemon answers gRPC health checks (when BUDWATCH_GRPC_PORT is set)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}
			return runChecks(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}
}

func runChecks(ctx context.Context, out io.Writer, cfg config.Config) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	failed := false
	fail := func(msg string, err error) {
		failed = true
		fmt.Fprintln(out, errorStyle.Render("✗ "+msg+":"), err)
	}

	fmt.Fprintln(out, sectionStyle.Render("budwatch check"))
	fmt.Fprintln(out)

	// Step 1: storage
	fmt.Fprintln(out, infoStyle.Render("Step 1: Opening storage..."))
	repo, err := openRepository(cfg.DB)
	if err != nil {
		fail("Storage unavailable", err)
	} else {
		defer repo.Close()
		checkStorage(ctx, out, repo, cfg.DB.Driver, fail)
	}
	fmt.Fprintln(out)

	// Step 2: authorize and fetch
	fmt.Fprintln(out, infoStyle.Render("Step 2: Contacting the sensor cloud..."))
	cloud, err := newCloud(cfg)
	if err != nil {
		fail("Client setup failed", err)
	} else if session, err := cloud.Authorize(ctx); err != nil {
		fail("Authorization failed", err)
	} else {
		fmt.Fprintln(out, successStyle.Render("✓ Authorized"), "token", session.Redacted())

		raw, err := cloud.FetchSamples(ctx, session)
		if err != nil {
			fail("Fetching samples failed", err)
		} else {
			readings, result := domain.Normalize(raw)
			fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✓ Fetched %d readings from %d sensors", len(readings), len(raw.Sensors))))
			if result.Skipped > 0 {
				fmt.Fprintln(out, warningStyle.Render(fmt.Sprintf("! %d readings would be skipped", result.Skipped)))
			}
		}
	}
	fmt.Fprintln(out)

	// Step 3: running daemon (informational)
	if cfg.GRPCPort != "" {
		fmt.Fprintln(out, infoStyle.Render("Step 3: Probing a running daemon..."))
		status, err := probeDaemon(ctx, cfg)
		switch {
		case err != nil:
			fmt.Fprintln(out, warningStyle.Render("! No daemon answered:"), err)
		case status == healthpb.HealthCheckResponse_SERVING:
			fmt.Fprintln(out, successStyle.Render("✓ Daemon is polling"))
		default:
			fmt.Fprintln(out, warningStyle.Render("! Daemon reports "+status.String()))
		}
		fmt.Fprintln(out)
	}

	if failed {
		return errChecksFailed
	}
	fmt.Fprintln(out, successStyle.Render("All checks passed"))
	return nil
}

// checkStorage pings repo and prints the age of each sensor's latest reading
func checkStorage(ctx context.Context, out io.Writer, repo domain.ReadingRepository, driver string, fail func(string, error)) {
	if err := repo.Ping(ctx); err != nil {
		fail("Storage ping failed", err)
		return
	}
	sensors, err := repo.ListSensors(ctx)
	if err != nil {
		fail("Listing sensors failed", err)
		return
	}

	fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✓ %s storage ready (%d known sensors)", driver, len(sensors))))
	for _, s := range sensors {
		if latest, err := repo.GetLatestReading(ctx, s.ID); err == nil {
			fmt.Fprintf(out, "   %s: last reading %s ago\n", s.DisplayName(), latest.Age(time.Now()).Round(time.Second))
		}
	}
}

// probeDaemon asks a local daemon for its ingestion health
func probeDaemon(ctx context.Context, cfg config.Config) (healthpb.HealthCheckResponse_ServingStatus, error) {
	creds := insecure.NewCredentials()
	if cfg.TLSCert != "" {
		tlsCfg, err := tlsconfig.LoadClientTLS(cfg.TLSCert, cfg.TLSKey, cfg.TLSCA)
		if err != nil {
			return healthpb.HealthCheckResponse_UNKNOWN, err
		}
		creds = credentials.NewTLS(tlsCfg)
	}

	conn, err := grpc.NewClient("localhost:"+cfg.GRPCPort, grpc.WithTransportCredentials(creds))
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: grpcAdapter.ServiceName})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.Status, nil
}
