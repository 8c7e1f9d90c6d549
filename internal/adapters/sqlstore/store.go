// Package sqlstore implements domain.ReadingRepository on database/sql.
// SQLite (mattn/go-sqlite3) and PostgreSQL (pgx) share one set of queries.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/quentinrf/budwatch/internal/domain"
)

const readingColumns = `d.id, d.sensorid, COALESCE(s.name, ''), d.date, d.temperature, d.humidity
	FROM sensor_data d
	LEFT JOIN sensors s ON s.sensorid = d.sensorid`

// Store implements domain.ReadingRepository
type Store struct {
	db      *sql.DB
	dialect dialect
}

// Open connects to the database and creates the schema if needed.
// driver is "sqlite" or "postgres"; dsn is a file path or connection URL.
func Open(driver, dsn string) (*Store, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if d.name == sqliteDialect.name {
		// one writer at a time; also keeps :memory: databases on a single connection
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, dialect: d}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenSQLite creates a SQLite-backed store
func OpenSQLite(path string) (*Store, error) {
	return Open(sqliteDialect.name, path)
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

func (s *Store) q(query string) string {
	return s.dialect.rebind(query)
}

// Dialect reports the database flavour
func (s *Store) Dialect() string {
	return s.dialect.name
}

// SaveReading inserts one reading in its own transaction
func (s *Store) SaveReading(ctx context.Context, reading *domain.Reading) error {
	fail := func(err error) error {
		return &domain.PersistError{SensorID: reading.SensorID, ObservedAt: reading.ObservedAt, Err: err}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fail(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback() //nolint:errcheck // no-op once committed

	query := `INSERT INTO sensor_data (sensorid, date, temperature, humidity)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (sensorid, date) DO NOTHING
		RETURNING id`

	var id int64
	err = tx.QueryRowContext(ctx, s.q(query),
		reading.SensorID, reading.ObservedAt.UTC(), reading.TemperatureF, reading.HumidityPct,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrDuplicateReading
	}
	if err != nil {
		return fail(fmt.Errorf("failed to insert reading: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return fail(fmt.Errorf("failed to commit reading: %w", err))
	}

	reading.ID = id
	return nil
}

// GetReading retrieves a reading by ID
func (s *Store) GetReading(ctx context.Context, id int64) (*domain.Reading, error) {
	query := `SELECT ` + readingColumns + ` WHERE d.id = ?`

	reading, err := scanReading(s.db.QueryRowContext(ctx, s.q(query), id))
	if err == sql.ErrNoRows {
		return nil, domain.ErrReadingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query reading: %w", err)
	}
	return reading, nil
}

// ListSensors returns sensors that have readings or a name, ordered by id
func (s *Store) ListSensors(ctx context.Context) ([]domain.Sensor, error) {
	query := `
		SELECT ids.sensorid, COALESCE(s.name, '')
		FROM (SELECT sensorid FROM sensor_data UNION SELECT sensorid FROM sensors) ids
		LEFT JOIN sensors s ON s.sensorid = ids.sensorid
		ORDER BY ids.sensorid ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sensors: %w", err)
	}
	defer rows.Close()

	sensors := []domain.Sensor{}
	for rows.Next() {
		var sensor domain.Sensor
		if err := rows.Scan(&sensor.ID, &sensor.Name); err != nil {
			return nil, fmt.Errorf("failed to scan sensor: %w", err)
		}
		sensors = append(sensors, sensor)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sensors: %w", err)
	}
	return sensors, nil
}

// SaveSensor upserts a sensor name
func (s *Store) SaveSensor(ctx context.Context, sensor domain.Sensor) error {
	if sensor.ID == "" {
		return domain.ErrMissingSensorID
	}
	query := `INSERT INTO sensors (sensorid, name) VALUES (?, ?)
		ON CONFLICT (sensorid) DO UPDATE SET name = excluded.name`

	if _, err := s.db.ExecContext(ctx, s.q(query), sensor.ID, sensor.Name); err != nil {
		return fmt.Errorf("failed to save sensor: %w", err)
	}
	return nil
}

// ListReadings returns a sensor's readings, newest first
func (s *Store) ListReadings(ctx context.Context, sensorID string, limit int) ([]*domain.Reading, error) {
	query := `SELECT ` + readingColumns + `
		WHERE d.sensorid = ?
		ORDER BY d.date DESC, d.id DESC`
	args := []any{sensorID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	return s.queryReadings(ctx, query, args...)
}

// GetReadingsInRange returns readings in [start, end), oldest first
func (s *Store) GetReadingsInRange(ctx context.Context, sensorID string, start, end time.Time) ([]*domain.Reading, error) {
	conds := []string{"d.date >= ?", "d.date < ?"}
	args := []any{start.UTC(), end.UTC()}
	if sensorID != "" {
		conds = append(conds, "d.sensorid = ?")
		args = append(args, sensorID)
	}

	query := `SELECT ` + readingColumns + `
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY d.date ASC, d.id ASC`

	return s.queryReadings(ctx, query, args...)
}

// GetLatestReading returns the most recent reading of a sensor
func (s *Store) GetLatestReading(ctx context.Context, sensorID string) (*domain.Reading, error) {
	readings, err := s.ListReadings(ctx, sensorID, 1)
	if err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return nil, domain.ErrReadingNotFound
	}
	return readings[0], nil
}

// DeleteOldReadings removes readings older than specified duration
func (s *Store) DeleteOldReadings(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	result, err := s.db.ExecContext(ctx, s.q(`DELETE FROM sensor_data WHERE date < ?`), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old readings: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted readings: %w", err)
	}
	return n, nil
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) queryReadings(ctx context.Context, query string, args ...any) ([]*domain.Reading, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	readings := []*domain.Reading{}
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		readings = append(readings, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate readings: %w", err)
	}
	return readings, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReading(row scanner) (*domain.Reading, error) {
	var r domain.Reading
	if err := row.Scan(&r.ID, &r.SensorID, &r.SensorName, &r.ObservedAt, &r.TemperatureF, &r.HumidityPct); err != nil {
		return nil, err
	}
	r.ObservedAt = r.ObservedAt.UTC()
	return &r, nil
}
