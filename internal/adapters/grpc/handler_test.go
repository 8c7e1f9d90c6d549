package grpc

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// startTestServer creates an in-process gRPC server and returns a connected client.
// The server is stopped when the test ends.
func startTestServer(t *testing.T) (*HealthHandler, healthpb.HealthClient) {
	t.Helper()

	handler := NewHealthHandler()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	srv := NewServer(handler, nil)

	go srv.Serve(lis)
	t.Cleanup(func() {
		srv.GracefulStop()
	})

	conn, err := grpc.NewClient(
		lis.Addr().String(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return handler, healthpb.NewHealthClient(conn)
}

func check(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("Check(%q) failed: %v", service, err)
	}
	return resp.Status
}

func TestHealth_StartsNotServing(t *testing.T) {
	_, client := startTestServer(t)

	if got := check(t, client, ServiceName); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("expected NOT_SERVING before authorization, got %v", got)
	}
}

func TestHealth_FollowsIngestionState(t *testing.T) {
	handler, client := startTestServer(t)

	handler.SetServing(true)
	for _, service := range []string{"", ServiceName} {
		if got := check(t, client, service); got != healthpb.HealthCheckResponse_SERVING {
			t.Errorf("Check(%q) = %v, want SERVING", service, got)
		}
	}

	handler.SetServing(false)
	if got := check(t, client, ServiceName); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("expected NOT_SERVING after session loss, got %v", got)
	}
}

func TestHealth_Shutdown(t *testing.T) {
	handler, client := startTestServer(t)

	handler.SetServing(true)
	handler.Shutdown()
	handler.SetServing(true)

	if got := check(t, client, ServiceName); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("expected NOT_SERVING after shutdown, got %v", got)
	}
}

func TestHealth_UnknownService(t *testing.T) {
	_, client := startTestServer(t)

	_, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "budwatch.Unknown"})
	if status.Code(err) != codes.NotFound {
		t.Errorf("expected NotFound, got %v", err)
	}
}
