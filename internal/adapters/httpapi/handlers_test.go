package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/quentinrf/budwatch/internal/adapters/memory"
	"github.com/quentinrf/budwatch/internal/display"
	"github.com/quentinrf/budwatch/internal/domain"
	"github.com/quentinrf/budwatch/internal/metrics"
	"github.com/quentinrf/budwatch/internal/ports"
)

type fixedStatus struct {
	status ports.Status
}

func (f fixedStatus) Status() ports.Status {
	return f.status
}

var polling = ports.Status{State: ports.StatePolling, Authenticated: true, Ticks: 3}

func newTestServer(t *testing.T, status ports.Status) (*httptest.Server, *memory.ReadingRepository) {
	t.Helper()

	repo := memory.NewReadingRepository()
	formatter, err := display.NewFormatter(display.DefaultZone)
	if err != nil {
		t.Fatalf("NewFormatter failed: %v", err)
	}

	reg := prometheus.NewRegistry()
	metrics.New(reg).ObserveAuth(true)

	srv := httptest.NewServer(NewRouter(NewHandler(repo, fixedStatus{status}, formatter), reg))
	t.Cleanup(srv.Close)
	return srv, repo
}

func seed(t *testing.T, repo domain.ReadingRepository, sensorID string, observed time.Time, tempF float64) {
	t.Helper()
	r, err := domain.NewReading(sensorID, observed, tempF, 45)
	if err != nil {
		t.Fatalf("NewReading failed: %v", err)
	}
	if err := repo.SaveReading(context.Background(), r); err != nil {
		t.Fatalf("SaveReading failed: %v", err)
	}
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); out != nil && ct != "application/json" {
		t.Errorf("GET %s: content type %q", url, ct)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("GET %s: decode failed: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		status ports.Status
		want   int
	}{
		{"polling with session", polling, http.StatusOK},
		{"authenticating", ports.Status{State: ports.StateAuthenticating}, http.StatusServiceUnavailable},
		{"polling without session", ports.Status{State: ports.StatePolling}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, tt.status)

			var body healthResponse
			if code := getJSON(t, srv.URL+"/health", &body); code != tt.want {
				t.Errorf("status = %d, want %d", code, tt.want)
			}
			if body.State != tt.status.State.String() {
				t.Errorf("state = %q, want %q", body.State, tt.status.State.String())
			}
			if body.Storage != "ok" {
				t.Errorf("storage = %q", body.Storage)
			}
		})
	}
}

func TestListSensors(t *testing.T) {
	srv, repo := newTestServer(t, polling)

	var empty []sensorResponse
	if code := getJSON(t, srv.URL+"/api/sensors", &empty); code != http.StatusOK || empty == nil || len(empty) != 0 {
		t.Fatalf("expected 200 with [], got %d %v", code, empty)
	}

	seed(t, repo, "S1", time.Now(), 70)
	_ = repo.SaveSensor(context.Background(), domain.Sensor{ID: "S1", Name: "Tent"})

	var sensors []sensorResponse
	getJSON(t, srv.URL+"/api/sensors", &sensors)
	if len(sensors) != 1 || sensors[0] != (sensorResponse{ID: "S1", Name: "Tent"}) {
		t.Errorf("unexpected sensors %+v", sensors)
	}
}

func TestListReadings(t *testing.T) {
	srv, repo := newTestServer(t, polling)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seed(t, repo, "S1", base, 70)
	seed(t, repo, "S1", base.Add(time.Minute), 71)
	seed(t, repo, "S1", base.Add(2*time.Minute), 72)

	var rows []display.Row
	if code := getJSON(t, srv.URL+"/api/sensors/S1/readings?limit=2", &rows); code != http.StatusOK {
		t.Fatalf("unexpected status %d", code)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].TemperatureF != 72 || rows[0].TemperatureC != 22.2 {
		t.Errorf("expected newest first with Celsius, got %+v", rows[0])
	}
	// 2024-01-01 00:02 UTC is 2023-12-31 19:02 in New York
	if got := rows[0].ObservedAt.Format("2006-01-02 15:04"); got != "2023-12-31 19:02" {
		t.Errorf("observed_at in display zone = %s", got)
	}

	var none []display.Row
	if code := getJSON(t, srv.URL+"/api/sensors/unknown/readings", &none); code != http.StatusOK || none == nil {
		t.Errorf("expected 200 with [], got %d %v", code, none)
	}

	var bad errorResponse
	if code := getJSON(t, srv.URL+"/api/sensors/S1/readings?limit=zero", &bad); code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", code)
	}
}

func TestChart(t *testing.T) {
	srv, repo := newTestServer(t, polling)

	base := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	seed(t, repo, "S1", base.Add(time.Minute), 70)
	seed(t, repo, "S1", base, 68)

	var series struct {
		Timestamps  []string  `json:"timestamps"`
		Temperature []float64 `json:"temperature"`
		Humidity    []float64 `json:"humidity"`
	}
	if code := getJSON(t, srv.URL+"/api/sensor/S1", &series); code != http.StatusOK {
		t.Fatalf("unexpected status %d", code)
	}
	if len(series.Timestamps) != 2 {
		t.Fatalf("expected 2 points, got %+v", series)
	}
	// EDT in July: UTC-4, oldest first
	if series.Timestamps[0] != "2024-07-01 08:00:00" {
		t.Errorf("first timestamp = %s", series.Timestamps[0])
	}
	if series.Temperature[0] != 20 || series.Temperature[1] != 21.1 {
		t.Errorf("unexpected temperatures %v", series.Temperature)
	}

	if code := getJSON(t, srv.URL+"/api/sensor/S1?since=1h", &series); code != http.StatusOK || len(series.Timestamps) != 0 {
		t.Errorf("expected empty trailing window, got %d %v", code, series.Timestamps)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, polling)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()

	buf := new(strings.Builder)
	if _, err := io.Copy(buf, resp.Body); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `budwatch_auth_attempts_total{result="success"} 1`) {
		t.Errorf("metrics output missing auth counter:\n%s", buf.String())
	}
}

func TestUnknownRoute(t *testing.T) {
	srv, _ := newTestServer(t, polling)

	if code := getJSON(t, srv.URL+"/api/nope", nil); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}
