package domain

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestNewReading(t *testing.T) {
	observed := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		sensorID string
		observed time.Time
		tempF    float64
		humidity float64
		wantErr  error
	}{
		{
			name:     "valid reading",
			sensorID: "S1",
			observed: observed,
			tempF:    70.0,
			humidity: 45.0,
		},
		{
			name:     "zero values are valid",
			sensorID: "S1",
			observed: observed,
			tempF:    0,
			humidity: 0,
		},
		{
			name:     "missing sensor id",
			observed: observed,
			tempF:    70.0,
			humidity: 45.0,
			wantErr:  ErrMissingSensorID,
		},
		{
			name:     "missing timestamp",
			sensorID: "S1",
			tempF:    70.0,
			humidity: 45.0,
			wantErr:  ErrMissingObservedAt,
		},
		{
			name:     "infinite temperature",
			sensorID: "S1",
			observed: observed,
			tempF:    math.Inf(1),
			humidity: 45.0,
			wantErr:  ErrInvalidTemperature,
		},
		{
			name:     "saturated humidity kept as sent",
			sensorID: "S1",
			observed: observed,
			tempF:    70.0,
			humidity: 100.4,
		},
		{
			name:     "NaN humidity",
			sensorID: "S1",
			observed: observed,
			tempF:    70.0,
			humidity: math.NaN(),
			wantErr:  ErrInvalidHumidity,
		},
		{
			name:     "infinite humidity",
			sensorID: "S1",
			observed: observed,
			tempF:    70.0,
			humidity: math.Inf(-1),
			wantErr:  ErrInvalidHumidity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reading, err := NewReading(tt.sensorID, tt.observed, tt.tempF, tt.humidity)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}

			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}

			if reading.TemperatureF != tt.tempF {
				t.Errorf("expected temperature %v, got %v", tt.tempF, reading.TemperatureF)
			}
			if reading.HumidityPct != tt.humidity {
				t.Errorf("expected humidity %v, got %v", tt.humidity, reading.HumidityPct)
			}
		})
	}
}

func TestNewReading_StoresUTC(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	observed := time.Date(2024, 1, 1, 7, 0, 0, 0, est)

	reading, err := NewReading("S1", observed, 70, 45)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reading.ObservedAt.Location() != time.UTC {
		t.Errorf("expected UTC location, got %v", reading.ObservedAt.Location())
	}
	if reading.ObservedAt.Hour() != 12 {
		t.Errorf("expected hour 12 UTC, got %d", reading.ObservedAt.Hour())
	}
}

func TestSensor_DisplayName(t *testing.T) {
	tests := []struct {
		sensor Sensor
		want   string
	}{
		{sensor: Sensor{ID: "123.abc", Name: "Tent"}, want: "Tent"},
		{sensor: Sensor{ID: "123.abc"}, want: "123.abc"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.sensor.DisplayName(); got != tt.want {
				t.Errorf("DisplayName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSession(t *testing.T) {
	var zero Session
	if zero.Valid() {
		t.Error("zero session should be invalid")
	}
	if got := zero.Redacted(); got != "<none>" {
		t.Errorf("Redacted() = %q, want <none>", got)
	}

	s := NewSession("eyJhbGciOiJIUzI1NiJ9.payload.signature", time.Now())
	if !s.Valid() {
		t.Error("expected session with token to be valid")
	}
	if got := s.Redacted(); got != "eyJhbGci…" {
		t.Errorf("Redacted() = %q, want %q", got, "eyJhbGci…")
	}

	short := NewSession("abc", time.Now())
	if got := short.Redacted(); got != "…" {
		t.Errorf("short token Redacted() = %q, want fully hidden", got)
	}
}

func TestFetchError_Is(t *testing.T) {
	unauthorized := &FetchError{Reason: ReasonUnauthorized, StatusCode: 401}
	if !errors.Is(unauthorized, ErrUnauthorized) {
		t.Error("expected errors.Is(unauthorized, ErrUnauthorized)")
	}
	if errors.Is(unauthorized, ErrNoSession) {
		t.Error("unauthorized must not match ErrNoSession")
	}

	var wrapped error = &PersistError{SensorID: "S1", Err: unauthorized}
	var fe *FetchError
	if !errors.As(wrapped, &fe) || fe.Reason != ReasonUnauthorized {
		t.Errorf("expected to unwrap FetchError, got %v", wrapped)
	}
}
