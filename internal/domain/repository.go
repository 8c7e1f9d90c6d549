package domain

import (
	"context"
	"time"
)

// ReadingRepository defines operations for storing/retrieving readings
// This is a PORT - adapters (SQLite, Postgres, Memory) will implement it
type ReadingRepository interface {
	// SaveReading persists a reading in its own transaction and sets its ID.
	// Returns ErrDuplicateReading if the sensor already has a reading at that time,
	// or a *PersistError for any storage failure.
	SaveReading(ctx context.Context, reading *Reading) error

	// GetReading retrieves a specific reading by ID
	GetReading(ctx context.Context, id int64) (*Reading, error)

	// ListSensors returns every sensor that has readings, with names where known
	ListSensors(ctx context.Context) ([]Sensor, error)

	// SaveSensor creates or renames an entry in the sensors reference table
	SaveSensor(ctx context.Context, sensor Sensor) error

	// ListReadings returns a sensor's readings, newest first. limit <= 0 means all.
	ListReadings(ctx context.Context, sensorID string, limit int) ([]*Reading, error)

	// GetReadingsInRange retrieves readings within time range, oldest first.
	// Uses a half-open interval: inclusive start, exclusive end [start, end).
	// An empty sensorID matches every sensor.
	GetReadingsInRange(ctx context.Context, sensorID string, start, end time.Time) ([]*Reading, error)

	// GetLatestReading retrieves the most recent reading of a sensor
	GetLatestReading(ctx context.Context, sensorID string) (*Reading, error)

	// DeleteOldReadings removes readings observed before now-olderThan
	DeleteOldReadings(ctx context.Context, olderThan time.Duration) (int64, error)

	// Ping checks that storage is reachable
	Ping(ctx context.Context) error

	Close() error
}
