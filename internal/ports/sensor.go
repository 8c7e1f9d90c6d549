package ports

import (
	"context"

	"github.com/quentinrf/budwatch/internal/domain"
)

// SessionManager acquires sessions from the sensor cloud
// This is a PORT - adapters (SensorPush, Mock) will implement it
type SessionManager interface {
	// Authorize makes one attempt to obtain a session
	Authorize(ctx context.Context) (domain.Session, error)
}

// SampleFetcher retrieves the latest raw samples
type SampleFetcher interface {
	// FetchSamples makes one attempt; it fails with a *domain.FetchError
	FetchSamples(ctx context.Context, session domain.Session) (*domain.RawSample, error)
}

// SensorCloud is a remote API offering both operations
type SensorCloud interface {
	SessionManager
	SampleFetcher
}

// ReadingPublisher fans newly persisted readings out to other consumers
type ReadingPublisher interface {
	PublishReading(ctx context.Context, reading *domain.Reading) error
}

// StatusReporter is told whether ingestion is currently healthy
type StatusReporter interface {
	SetServing(serving bool)
}
