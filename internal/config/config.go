// Package config reads budwatch settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/quentinrf/budwatch/internal/domain"
)

// Storage backends
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Sensor cloud implementations
const (
	APISensorPush = "sensorpush"
	APIMock       = "mock"
)

// DefaultAPIURL is the SensorPush cloud base URL
const DefaultAPIURL = "https://api.sensorpush.com/api/v1"

// Config holds application configuration
type Config struct {
	Credentials domain.Credentials
	APIURL      string
	APIType     string // "sensorpush" | "mock"
	APICA       string // optional CA bundle for the API's TLS certificate

	PollInterval    time.Duration
	FetchTimeout    time.Duration
	AuthBackoff     time.Duration
	AuthMaxAttempts int // 0 retries forever
	SampleLimit     int
	WriteTimeout    time.Duration
	Retention       time.Duration // 0 keeps readings forever

	DB DBConfig

	HTTPPort string // empty disables the read API
	GRPCPort string // empty disables the health service
	TLSCert  string // path to this service's certificate
	TLSKey   string // path to this service's private key
	TLSCA    string // path to the CA certificate

	MQTTBroker string // empty disables publishing
	MQTTTopic  string

	DisplayZone string
	LogLevel    string
	LogFormat   string // "console" | "json"
}

// DBConfig describes the relational store
type DBConfig struct {
	Driver   string // "sqlite" | "postgres" | "memory"
	Path     string // sqlite file
	Host     string
	Name     string
	User     string
	Password string
	SSLMode  string
}

// DSN returns the data source name for the configured driver
func (c DBConfig) DSN() string {
	switch c.Driver {
	case DriverPostgres:
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(c.User, c.Password),
			Host:     c.Host,
			Path:     "/" + c.Name,
			RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
		}
		return u.String()
	default:
		return c.Path
	}
}

// Load reads configuration from environment variables and validates all of it
func Load() (Config, error) {
	cfg, errs := parse()
	if err := cfg.Validate(); err != nil {
		errs = append(errs, err)
	}
	return cfg, errors.Join(errs...)
}

// LoadStorage is Load for commands that only touch the database
func LoadStorage() (Config, error) {
	cfg, errs := parse()
	if err := cfg.DB.Validate(); err != nil {
		errs = append(errs, err)
	}
	return cfg, errors.Join(errs...)
}

func parse() (Config, []error) {
	var errs []error
	duration := func(key string, def time.Duration) time.Duration {
		v := os.Getenv(key)
		if v == "" {
			return def
		}
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", key, v))
			return def
		}
		return d
	}
	integer := func(key string, def int) int {
		v := os.Getenv(key)
		if v == "" {
			return def
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			errs = append(errs, fmt.Errorf("%s: invalid number %q", key, v))
			return def
		}
		return n
	}

	cfg := Config{
		Credentials: domain.Credentials{
			Email:    os.Getenv("BUDWATCH_EMAIL"),
			Password: os.Getenv("BUDWATCH_PASSWORD"),
		},
		APIURL:  getenv("BUDWATCH_API_URL", DefaultAPIURL),
		APIType: getenv("BUDWATCH_API_TYPE", APISensorPush),
		APICA:   os.Getenv("BUDWATCH_API_CA"),

		PollInterval:    duration("BUDWATCH_POLL_INTERVAL", time.Minute),
		FetchTimeout:    duration("BUDWATCH_FETCH_TIMEOUT", 10*time.Second),
		AuthBackoff:     duration("BUDWATCH_AUTH_BACKOFF", time.Minute),
		AuthMaxAttempts: integer("BUDWATCH_AUTH_MAX_ATTEMPTS", 0),
		SampleLimit:     integer("BUDWATCH_SAMPLE_LIMIT", 1),
		WriteTimeout:    duration("BUDWATCH_WRITE_TIMEOUT", 10*time.Second),
		Retention:       duration("BUDWATCH_RETENTION", 0),

		DB: DBConfig{
			Driver:   getenv("BUDWATCH_DB_DRIVER", DriverSQLite),
			Path:     getenv("BUDWATCH_DB_PATH", "./budwatch.db"),
			Host:     getenv("BUDWATCH_SQL_SERVER", "localhost"),
			Name:     getenv("BUDWATCH_SQL_DATABASE", "BudWatch"),
			User:     getenv("BUDWATCH_SQL_USERNAME", "admin"),
			Password: os.Getenv("BUDWATCH_SQL_PASSWORD"),
			SSLMode:  getenv("BUDWATCH_SQL_SSLMODE", "disable"),
		},

		HTTPPort: lookup("BUDWATCH_HTTP_PORT", "8080"),
		GRPCPort: lookup("BUDWATCH_GRPC_PORT", "50051"),
		TLSCert:  os.Getenv("TLS_CERT"),
		TLSKey:   os.Getenv("TLS_KEY"),
		TLSCA:    os.Getenv("TLS_CA"),

		MQTTBroker: os.Getenv("BUDWATCH_MQTT_BROKER"),
		MQTTTopic:  getenv("BUDWATCH_MQTT_TOPIC", "budwatch/readings"),

		DisplayZone: getenv("BUDWATCH_DISPLAY_TZ", "America/New_York"),
		LogLevel:    getenv("BUDWATCH_LOG_LEVEL", "info"),
		LogFormat:   getenv("BUDWATCH_LOG_FORMAT", "console"),
	}

	return cfg, errs
}

// Validate checks combinations that cannot work
func (c Config) Validate() error {
	var errs []error

	switch c.APIType {
	case APISensorPush:
		if c.Credentials.Email == "" || c.Credentials.Password == "" {
			errs = append(errs, errors.New("BUDWATCH_EMAIL and BUDWATCH_PASSWORD are required"))
		}
	case APIMock:
	default:
		errs = append(errs, fmt.Errorf("BUDWATCH_API_TYPE: unknown %q", c.APIType))
	}

	if err := c.DB.Validate(); err != nil {
		errs = append(errs, err)
	}

	if c.PollInterval == 0 {
		errs = append(errs, errors.New("BUDWATCH_POLL_INTERVAL must be positive"))
	}
	if c.FetchTimeout == 0 {
		errs = append(errs, errors.New("BUDWATCH_FETCH_TIMEOUT must be positive"))
	}
	if c.SampleLimit == 0 {
		errs = append(errs, errors.New("BUDWATCH_SAMPLE_LIMIT must be at least 1"))
	}
	if c.TLSCert != "" && (c.TLSKey == "" || c.TLSCA == "") {
		errs = append(errs, errors.New("TLS_CERT requires TLS_KEY and TLS_CA"))
	}

	return errors.Join(errs...)
}

// Validate checks the storage settings
func (c DBConfig) Validate() error {
	switch c.Driver {
	case DriverSQLite:
		if c.Path == "" {
			return errors.New("BUDWATCH_DB_PATH is required for sqlite")
		}
	case DriverPostgres:
		if c.Host == "" || c.Name == "" {
			return errors.New("BUDWATCH_SQL_SERVER and BUDWATCH_SQL_DATABASE are required for postgres")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("BUDWATCH_DB_DRIVER: unknown %q", c.Driver)
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// lookup distinguishes unset (default) from explicitly empty (disabled)
func lookup(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}
