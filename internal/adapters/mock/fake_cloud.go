package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quentinrf/budwatch/internal/domain"
)

// DefaultSensors are reported when no sensor ids are given
var DefaultSensors = []string{"16800001.1", "16800002.1"}

// FakeCloud simulates the sensor cloud for development
// This implements the ports.SensorCloud interface
type FakeCloud struct {
	sensors   []string
	baseTempF float64
	variation float64
	now       func() time.Time

	mu     sync.Mutex
	tokens map[string]bool
}

// NewFakeCloud creates a cloud whose sensors return realistic values
// baseTempF: average temperature (e.g., 75 for a grow tent)
// variation: +/- range (e.g., 3 means 72-78)
func NewFakeCloud(sensors []string, baseTempF, variation float64) *FakeCloud {
	if len(sensors) == 0 {
		sensors = DefaultSensors
	}
	return &FakeCloud{
		sensors:   sensors,
		baseTempF: baseTempF,
		variation: variation,
		now:       time.Now,
		tokens:    make(map[string]bool),
	}
}

// Authorize always succeeds with a fresh token
func (c *FakeCloud) Authorize(ctx context.Context) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, &domain.AuthError{Err: err}
	}

	token := uuid.NewString()
	c.mu.Lock()
	c.tokens[token] = true
	c.mu.Unlock()

	return domain.NewSession(token, c.now()), nil
}

// Revoke invalidates every issued token, as if they had expired
func (c *FakeCloud) Revoke() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = make(map[string]bool)
}

// FetchSamples returns one reading per sensor observed at the current minute
// Polling twice within a minute yields the same observation times.
func (c *FakeCloud) FetchSamples(ctx context.Context, session domain.Session) (*domain.RawSample, error) {
	if !session.Valid() {
		return nil, &domain.FetchError{Reason: domain.ReasonNoSession}
	}

	c.mu.Lock()
	known := c.tokens[session.Token]
	c.mu.Unlock()
	if !known {
		return nil, &domain.FetchError{Reason: domain.ReasonUnauthorized, StatusCode: 401, Err: fmt.Errorf("token expired")}
	}
	if err := ctx.Err(); err != nil {
		return nil, &domain.FetchError{Reason: domain.ReasonNetwork, Err: err}
	}

	observed := c.now().UTC().Truncate(time.Minute).Format(domain.ObservedLayout)
	sample := &domain.RawSample{Sensors: make(map[string][]domain.RawReading, len(c.sensors))}
	for _, id := range c.sensors {
		// Random value around base ± variation
		temp := c.baseTempF + (rand.Float64()-0.5)*2*c.variation
		humidity := 40 + rand.Float64()*20

		sample.Sensors[id] = []domain.RawReading{{
			Observed:    mustJSON(observed),
			Temperature: mustJSON(round(temp)),
			Humidity:    mustJSON(round(humidity)),
		}}
	}

	return sample, nil
}

func round(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
