// Package display holds the read-side conversions applied to stored readings.
// Storage keeps Fahrenheit and UTC; everything here is pure.
package display

import (
	"fmt"
	"math"
	"time"

	"github.com/quentinrf/budwatch/internal/domain"
)

// DefaultZone is the display timezone (US/Eastern)
const DefaultZone = "America/New_York"

// ChartTimeLayout is the timestamp format of chart series
const ChartTimeLayout = "2006-01-02 15:04:05"

// Celsius converts Fahrenheit to Celsius rounded to one decimal
func Celsius(f float64) float64 {
	return math.Round((f-32)*5/9*10) / 10
}

// Row is a reading prepared for consumers
type Row struct {
	ID           int64     `json:"id" yaml:"id"`
	SensorID     string    `json:"sensor_id" yaml:"sensor_id"`
	SensorName   string    `json:"sensor_name,omitempty" yaml:"sensor_name,omitempty"`
	ObservedAt   time.Time `json:"observed_at" yaml:"observed_at"`
	TemperatureC float64   `json:"temperature_c" yaml:"temperature_c"`
	TemperatureF float64   `json:"temperature_f" yaml:"temperature_f"`
	Humidity     float64   `json:"humidity" yaml:"humidity"`
}

// Series is the chart payload for one sensor
type Series struct {
	Timestamps  []string  `json:"timestamps"`
	Temperature []float64 `json:"temperature"`
	Humidity    []float64 `json:"humidity"`
}

// Formatter converts readings into a display timezone
type Formatter struct {
	loc *time.Location
}

// NewFormatter loads the named zone; empty means DefaultZone
func NewFormatter(zone string) (*Formatter, error) {
	if zone == "" {
		zone = DefaultZone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load display zone %q: %w", zone, err)
	}
	return &Formatter{loc: loc}, nil
}

// Location returns the display zone
func (f *Formatter) Location() *time.Location {
	return f.loc
}

// LocalTime converts a stored UTC time into the display zone.
// A time without zone information is interpreted as UTC.
func (f *Formatter) LocalTime(t time.Time) time.Time {
	return t.UTC().In(f.loc)
}

// Row converts a single reading
func (f *Formatter) Row(r *domain.Reading) Row {
	return Row{
		ID:           r.ID,
		SensorID:     r.SensorID,
		SensorName:   r.SensorName,
		ObservedAt:   f.LocalTime(r.ObservedAt),
		TemperatureC: Celsius(r.TemperatureF),
		TemperatureF: r.TemperatureF,
		Humidity:     r.HumidityPct,
	}
}

// Rows converts readings preserving order; never returns nil
func (f *Formatter) Rows(readings []*domain.Reading) []Row {
	rows := make([]Row, 0, len(readings))
	for _, r := range readings {
		rows = append(rows, f.Row(r))
	}
	return rows
}

// Series builds chart series in the order given
func (f *Formatter) Series(readings []*domain.Reading) Series {
	s := Series{
		Timestamps:  make([]string, 0, len(readings)),
		Temperature: make([]float64, 0, len(readings)),
		Humidity:    make([]float64, 0, len(readings)),
	}
	for _, r := range readings {
		s.Timestamps = append(s.Timestamps, f.LocalTime(r.ObservedAt).Format(ChartTimeLayout))
		s.Temperature = append(s.Temperature, Celsius(r.TemperatureF))
		s.Humidity = append(s.Humidity, r.HumidityPct)
	}
	return s
}
