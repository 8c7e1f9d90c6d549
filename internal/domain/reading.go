package domain

import (
	"math"
	"time"
)

// Reading represents a single temperature/humidity observation.
// Values are kept in source units: Fahrenheit and UTC.
type Reading struct {
	ID           int64
	SensorID     string
	SensorName   string // filled by read queries joined with sensors
	ObservedAt   time.Time
	TemperatureF float64
	HumidityPct  float64
}

// Sensor is a row of the sensors reference table
type Sensor struct {
	ID   string
	Name string
}

// DisplayName returns the sensor name, falling back to its id
func (s Sensor) DisplayName() string {
	if s.Name == "" {
		return s.ID
	}
	return s.Name
}

// NewReading creates a new reading with validation
func NewReading(sensorID string, observedAt time.Time, temperatureF, humidityPct float64) (*Reading, error) {
	if sensorID == "" {
		return nil, ErrMissingSensorID
	}
	if observedAt.IsZero() {
		return nil, ErrMissingObservedAt
	}
	if math.IsNaN(temperatureF) || math.IsInf(temperatureF, 0) {
		return nil, ErrInvalidTemperature
	}
	// Saturated sensors report slightly above 100; values are stored as sent
	if math.IsNaN(humidityPct) || math.IsInf(humidityPct, 0) {
		return nil, ErrInvalidHumidity
	}

	return &Reading{
		SensorID:     sensorID,
		ObservedAt:   observedAt.UTC(),
		TemperatureF: temperatureF,
		HumidityPct:  humidityPct,
	}, nil
}

// Age returns how long ago the reading was observed
func (r *Reading) Age(now time.Time) time.Duration {
	return now.Sub(r.ObservedAt)
}
