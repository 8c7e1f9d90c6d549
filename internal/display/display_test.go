package display

import (
	"testing"
	"time"

	_ "time/tzdata"

	"github.com/quentinrf/budwatch/internal/domain"
)

func TestCelsius(t *testing.T) {
	tests := []struct {
		f    float64
		want float64
	}{
		{f: 70.0, want: 21.1},
		{f: 32.0, want: 0},
		{f: 212.0, want: 100},
		{f: -40.0, want: -40},
		{f: 98.6, want: 37},
		{f: 75.3, want: 24.1},
	}

	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			if got := Celsius(tt.f); got != tt.want {
				t.Errorf("Celsius(%v) = %v, want %v", tt.f, got, tt.want)
			}
		})
	}
}

func TestFormatter_Row(t *testing.T) {
	f, err := NewFormatter("")
	if err != nil {
		t.Fatalf("NewFormatter failed: %v", err)
	}

	r := &domain.Reading{
		ID:           7,
		SensorID:     "S1",
		SensorName:   "Tent",
		ObservedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		TemperatureF: 70.0,
		HumidityPct:  45.0,
	}

	row := f.Row(r)
	if row.TemperatureC != 21.1 {
		t.Errorf("expected 21.1C, got %v", row.TemperatureC)
	}
	if row.TemperatureF != 70.0 {
		t.Errorf("expected source temperature kept, got %v", row.TemperatureF)
	}
	// Midnight UTC on Jan 1st is 19:00 EST the day before
	if row.ObservedAt.Hour() != 19 || row.ObservedAt.Day() != 31 {
		t.Errorf("expected 2023-12-31 19:00 EST, got %v", row.ObservedAt)
	}
	if !row.ObservedAt.Equal(r.ObservedAt) {
		t.Error("conversion must not change the instant")
	}
	if r.ObservedAt.Location() != time.UTC {
		t.Error("source reading must not be modified")
	}
}

func TestFormatter_DaylightSaving(t *testing.T) {
	f, err := NewFormatter(DefaultZone)
	if err != nil {
		t.Fatalf("NewFormatter failed: %v", err)
	}

	summer := f.LocalTime(time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC))
	if summer.Hour() != 8 {
		t.Errorf("expected 08:00 EDT, got %v", summer)
	}
}

func TestFormatter_Series(t *testing.T) {
	f, err := NewFormatter("UTC")
	if err != nil {
		t.Fatalf("NewFormatter failed: %v", err)
	}

	readings := []*domain.Reading{
		{SensorID: "S1", ObservedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), TemperatureF: 70, HumidityPct: 45},
		{SensorID: "S1", ObservedAt: time.Date(2024, 1, 1, 0, 1, 0, 0, time.UTC), TemperatureF: 32, HumidityPct: 50},
	}

	s := f.Series(readings)
	if len(s.Timestamps) != 2 || s.Timestamps[1] != "2024-01-01 00:01:00" {
		t.Errorf("unexpected timestamps %v", s.Timestamps)
	}
	if s.Temperature[0] != 21.1 || s.Temperature[1] != 0 {
		t.Errorf("unexpected temperatures %v", s.Temperature)
	}
	if s.Humidity[1] != 50 {
		t.Errorf("unexpected humidity %v", s.Humidity)
	}

	empty := f.Series(nil)
	if empty.Timestamps == nil || len(empty.Timestamps) != 0 {
		t.Error("expected empty, non-nil series")
	}
}

func TestNewFormatter_UnknownZone(t *testing.T) {
	if _, err := NewFormatter("Mars/Olympus_Mons"); err == nil {
		t.Error("expected error for unknown zone")
	}
}
