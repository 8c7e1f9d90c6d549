package sqlstore

import (
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// dialect captures what differs between the supported databases.
// Queries are written with ? placeholders and rebound per dialect.
type dialect struct {
	name       string
	driverName string
	schema     []string
	numbered   bool // $1, $2 ... instead of ?
}

var sqliteDialect = dialect{
	name:       "sqlite",
	driverName: "sqlite3",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS sensors (
			sensorid TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS sensor_data (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sensorid TEXT NOT NULL,
			date DATETIME NOT NULL,
			temperature REAL NOT NULL,
			humidity REAL NOT NULL,
			UNIQUE (sensorid, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sensor_data_date ON sensor_data(date)`,
	},
}

var postgresDialect = dialect{
	name:       "postgres",
	driverName: "pgx",
	numbered:   true,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS sensors (
			sensorid TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS sensor_data (
			id BIGSERIAL PRIMARY KEY,
			sensorid TEXT NOT NULL,
			date TIMESTAMP NOT NULL,
			temperature DOUBLE PRECISION NOT NULL,
			humidity DOUBLE PRECISION NOT NULL,
			UNIQUE (sensorid, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sensor_data_date ON sensor_data(date)`,
	},
}

func dialectFor(name string) (dialect, error) {
	switch name {
	case "sqlite", "sqlite3":
		return sqliteDialect, nil
	case "postgres", "postgresql", "pgx":
		return postgresDialect, nil
	default:
		return dialect{}, fmt.Errorf("unsupported database %q", name)
	}
}

// rebind rewrites ? placeholders for numbered dialects
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
