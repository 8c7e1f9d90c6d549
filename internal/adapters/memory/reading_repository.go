package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/quentinrf/budwatch/internal/domain"
)

type readingKey struct {
	sensorID string
	observed int64
}

// ReadingRepository implements domain.ReadingRepository with in-memory storage
// This is perfect for development - no database setup needed
type ReadingRepository struct {
	mu       sync.RWMutex
	readings map[int64]*domain.Reading
	byKey    map[readingKey]int64
	names    map[string]string
	nextID   int64
}

// NewReadingRepository creates an empty in-memory repository
func NewReadingRepository() *ReadingRepository {
	return &ReadingRepository{
		readings: make(map[int64]*domain.Reading),
		byKey:    make(map[readingKey]int64),
		names:    make(map[string]string),
		nextID:   1,
	}
}

// SaveReading stores a copy of the reading and assigns its ID
func (r *ReadingRepository) SaveReading(ctx context.Context, reading *domain.Reading) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := readingKey{sensorID: reading.SensorID, observed: reading.ObservedAt.UnixNano()}
	if _, exists := r.byKey[key]; exists {
		return domain.ErrDuplicateReading
	}

	reading.ID = r.nextID
	r.nextID++

	stored := *reading
	stored.SensorName = ""
	r.readings[stored.ID] = &stored
	r.byKey[key] = stored.ID
	return nil
}

// GetReading retrieves a reading by ID
func (r *ReadingRepository) GetReading(ctx context.Context, id int64) (*domain.Reading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reading, exists := r.readings[id]
	if !exists {
		return nil, domain.ErrReadingNotFound
	}

	return r.withName(reading), nil
}

// ListSensors returns sensors with readings or a name, ordered by id
func (r *ReadingRepository) ListSensors(ctx context.Context) ([]domain.Sensor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	for _, reading := range r.readings {
		seen[reading.SensorID] = true
	}
	for id := range r.names {
		seen[id] = true
	}

	sensors := make([]domain.Sensor, 0, len(seen))
	for id := range seen {
		sensors = append(sensors, domain.Sensor{ID: id, Name: r.names[id]})
	}
	sort.Slice(sensors, func(i, j int) bool {
		return sensors[i].ID < sensors[j].ID
	})

	return sensors, nil
}

// SaveSensor creates or renames a sensor
func (r *ReadingRepository) SaveSensor(ctx context.Context, sensor domain.Sensor) error {
	if sensor.ID == "" {
		return domain.ErrMissingSensorID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.names[sensor.ID] = sensor.Name
	return nil
}

// ListReadings returns a sensor's readings, newest first
func (r *ReadingRepository) ListReadings(ctx context.Context, sensorID string, limit int) ([]*domain.Reading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := r.filter(func(reading *domain.Reading) bool {
		return reading.SensorID == sensorID
	})

	// Sort by timestamp, newest first
	sort.Slice(results, func(i, j int) bool {
		if results[i].ObservedAt.Equal(results[j].ObservedAt) {
			return results[i].ID > results[j].ID
		}
		return results[i].ObservedAt.After(results[j].ObservedAt)
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// GetReadingsInRange returns readings in [start, end), oldest first
func (r *ReadingRepository) GetReadingsInRange(ctx context.Context, sensorID string, start, end time.Time) ([]*domain.Reading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := r.filter(func(reading *domain.Reading) bool {
		if sensorID != "" && reading.SensorID != sensorID {
			return false
		}
		return !reading.ObservedAt.Before(start) && reading.ObservedAt.Before(end)
	})

	// Sort by timestamp
	sort.Slice(results, func(i, j int) bool {
		if results[i].ObservedAt.Equal(results[j].ObservedAt) {
			return results[i].ID < results[j].ID
		}
		return results[i].ObservedAt.Before(results[j].ObservedAt)
	})

	return results, nil
}

// GetLatestReading returns the most recent reading of a sensor
func (r *ReadingRepository) GetLatestReading(ctx context.Context, sensorID string) (*domain.Reading, error) {
	readings, err := r.ListReadings(ctx, sensorID, 1)
	if err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return nil, domain.ErrReadingNotFound
	}
	return readings[0], nil
}

// DeleteOldReadings removes readings older than specified duration
func (r *ReadingRepository) DeleteOldReadings(ctx context.Context, olderThan time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)

	var deleted int64
	for id, reading := range r.readings {
		if reading.ObservedAt.Before(cutoff) {
			delete(r.readings, id)
			delete(r.byKey, readingKey{sensorID: reading.SensorID, observed: reading.ObservedAt.UnixNano()})
			deleted++
		}
	}

	return deleted, nil
}

// Ping always succeeds
func (r *ReadingRepository) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for the in-memory repository
func (r *ReadingRepository) Close() error {
	return nil
}

// Len returns the number of stored readings
func (r *ReadingRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.readings)
}

// filter returns copies of matching readings; callers hold the read lock
func (r *ReadingRepository) filter(keep func(*domain.Reading) bool) []*domain.Reading {
	results := []*domain.Reading{}
	for _, reading := range r.readings {
		if keep(reading) {
			results = append(results, r.withName(reading))
		}
	}
	return results
}

func (r *ReadingRepository) withName(reading *domain.Reading) *domain.Reading {
	out := *reading
	out.SensorName = r.names[reading.SensorID]
	return &out
}
