package ports

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quentinrf/budwatch/internal/domain"
	"github.com/quentinrf/budwatch/internal/metrics"
)

// State is the ingestion loop's position in its lifecycle
type State int32

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StatePolling
	StateReauthenticating
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StatePolling:
		return "polling"
	case StateReauthenticating:
		return "reauthenticating"
	default:
		return "unknown"
	}
}

const cleanupInterval = 24 * time.Hour

// Options tunes the ingestion loop
type Options struct {
	PollInterval    time.Duration
	AuthBackoff     time.Duration
	AuthMaxAttempts int           // 0 retries authorization forever
	WriteTimeout    time.Duration // bounds each save; 0 means unbounded
	Retention       time.Duration // 0 disables cleanup
}

// Status is a snapshot of the loop for health endpoints
type Status struct {
	State         State
	Authenticated bool
	Ticks         int64
	LastTick      time.Time
	LastSuccess   time.Time
	LastError     string
}

// Healthy reports whether the loop is polling with a session
func (s Status) Healthy() bool {
	return s.State == StatePolling && s.Authenticated
}

// TickReport summarizes one tick
type TickReport struct {
	ID         string
	Fetched    int
	Persisted  int
	Duplicates int
	Skipped    int
	Failed     int
	Err        error // fetch failure or recovered panic
}

// Ingestor polls the sensor cloud and persists readings.
// Run owns the session; ticks never overlap.
type Ingestor struct {
	sessions SessionManager
	fetcher  SampleFetcher
	repo     domain.ReadingRepository
	opts     Options

	publisher ReadingPublisher
	reporter  StatusReporter
	metrics   *metrics.Metrics
	now       func() time.Time

	session domain.Session

	mu     sync.RWMutex
	status Status
}

// Option configures optional collaborators
type Option func(*Ingestor)

// WithPublisher publishes every newly stored reading
func WithPublisher(p ReadingPublisher) Option {
	return func(i *Ingestor) { i.publisher = p }
}

// WithStatusReporter reports health transitions
func WithStatusReporter(r StatusReporter) Option {
	return func(i *Ingestor) { i.reporter = r }
}

// WithMetrics records Prometheus metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(i *Ingestor) { i.metrics = m }
}

// NewIngestor creates a new ingestion loop
func NewIngestor(sessions SessionManager, fetcher SampleFetcher, repo domain.ReadingRepository, opts Options, extra ...Option) *Ingestor {
	i := &Ingestor{
		sessions: sessions,
		fetcher:  fetcher,
		repo:     repo,
		opts:     opts,
		now:      time.Now,
	}
	for _, opt := range extra {
		opt(i)
	}
	return i
}

// Status returns the current snapshot; safe for concurrent use
func (i *Ingestor) Status() Status {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.status
}

// Run authenticates, then ticks every PollInterval until ctx is cancelled.
// It returns nil on cancellation, or the last error once AuthMaxAttempts is exhausted.
func (i *Ingestor) Run(ctx context.Context) error {
	log.Info().
		Dur("poll_interval", i.opts.PollInterval).
		Dur("auth_backoff", i.opts.AuthBackoff).
		Msg("starting ingestion loop")

	if err := i.authenticate(ctx); err != nil {
		if ctx.Err() != nil {
			log.Info().Msg("stopping ingestion loop")
			return nil
		}
		return err
	}

	var cleanup <-chan time.Time
	if i.opts.Retention > 0 {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		cleanup = ticker.C
		i.cleanup(ctx)
	}

	// Tick immediately on start
	i.Tick(ctx)

	timer := time.NewTimer(i.opts.PollInterval)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			i.Tick(ctx)
			timer.Reset(i.opts.PollInterval)

		case <-cleanup:
			i.cleanup(ctx)

		case <-ctx.Done():
			log.Info().Msg("stopping ingestion loop")
			return nil
		}
	}
}

// authenticate retries Authorize with a fixed backoff until it succeeds
func (i *Ingestor) authenticate(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		i.setState(StateAuthenticating)

		session, err := i.sessions.Authorize(ctx)
		i.metrics.ObserveAuth(err == nil)
		if err == nil {
			i.session = session
			i.setState(StatePolling)
			log.Info().Str("token", session.Redacted()).Int("attempt", attempt).Msg("authorized")
			return nil
		}

		i.recordError(err)
		log.Error().
			Err(err).
			Str("error_kind", "auth").
			Int("attempt", attempt).
			Dur("retry_in", i.opts.AuthBackoff).
			Msg("authorization failed")

		if i.opts.AuthMaxAttempts > 0 && attempt >= i.opts.AuthMaxAttempts {
			i.setState(StateUnauthenticated)
			return fmt.Errorf("giving up after %d authorization attempts: %w", attempt, err)
		}
		if !sleep(ctx, i.opts.AuthBackoff) {
			return ctx.Err()
		}
	}
}

// reauthenticate discards the session and makes a single attempt to replace it.
// On failure the loop keeps polling without a session; the next tick tries again.
func (i *Ingestor) reauthenticate(ctx context.Context, logger zerolog.Logger) {
	i.session = domain.Session{}
	i.setState(StateReauthenticating)

	session, err := i.sessions.Authorize(ctx)
	i.metrics.ObserveAuth(err == nil)
	if err != nil {
		i.recordError(err)
		logger.Error().Err(err).Str("error_kind", "auth").Msg("re-authorization failed; retrying next tick")
		i.setState(StatePolling)
		return
	}

	i.session = session
	i.setState(StatePolling)
	logger.Info().Str("token", session.Redacted()).Msg("re-authorized")
}

// Tick runs one ingestion cycle: fetch, normalize, persist each reading.
// Failures are logged and reported, never returned or propagated.
func (i *Ingestor) Tick(ctx context.Context) (report TickReport) {
	report.ID = uuid.NewString()
	start := i.now()
	logger := log.With().Str("tick_id", report.ID).Logger()
	outcome := metrics.TickOK

	defer func() {
		if p := recover(); p != nil {
			report.Err = fmt.Errorf("unexpected fault: %v", p)
			outcome = metrics.TickPanicked
			logger.Error().
				Str("error_kind", "panic").
				Interface("panic", p).
				Bytes("stack", debug.Stack()).
				Msg("unexpected fault during tick")
		}
		i.finishTick(report, outcome, start)
	}()

	raw, err := i.fetcher.FetchSamples(ctx, i.session)
	if err != nil {
		report.Err = err
		outcome = metrics.TickFetchFailed

		kind := "fetch"
		var fetchErr *domain.FetchError
		if errors.As(err, &fetchErr) {
			kind = fetchErr.Reason.String()
		}

		switch {
		case errors.Is(err, domain.ErrNoSession):
			outcome = metrics.TickNoSession
			logger.Warn().Str("error_kind", kind).Msg("no session; attempting re-authorization")
			i.reauthenticate(ctx, logger)
		case errors.Is(err, domain.ErrUnauthorized):
			logger.Warn().Err(err).Str("error_kind", kind).Msg("token rejected; attempting re-authorization")
			i.reauthenticate(ctx, logger)
		default:
			logger.Error().Err(err).Str("error_kind", kind).Msg("failed to fetch samples")
		}
		return report
	}

	readings, result := domain.Normalize(raw)
	report.Fetched = result.Total
	report.Skipped = result.Skipped
	for _, verr := range result.Errors {
		logger.Warn().
			Err(verr).
			Str("error_kind", "validation").
			Str("sensor_id", verr.SensorID).
			Str("field", verr.Field).
			Msg("skipping invalid reading")
	}

	for n, reading := range readings {
		if ctx.Err() != nil {
			logger.Warn().Int("remaining", len(readings)-n).Msg("shutdown requested; leaving remaining readings")
			break
		}
		i.persist(ctx, logger, reading, &report)
	}
	if report.Failed > 0 && report.Persisted+report.Duplicates == 0 {
		outcome = metrics.TickPersistFailed
	}

	logger.Info().
		Int("fetched", report.Fetched).
		Int("persisted", report.Persisted).
		Int("duplicates", report.Duplicates).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Dur("took", i.now().Sub(start)).
		Msg("tick complete")

	return report
}

// persist saves one reading. The write runs detached from ctx so a shutdown
// lets it finish instead of aborting mid-transaction.
func (i *Ingestor) persist(ctx context.Context, logger zerolog.Logger, reading *domain.Reading, report *TickReport) {
	writeCtx, cancel := i.writeContext(ctx)
	defer cancel()

	err := i.repo.SaveReading(writeCtx, reading)
	switch {
	case err == nil:
		report.Persisted++
	case errors.Is(err, domain.ErrDuplicateReading):
		report.Duplicates++
		logger.Debug().
			Str("sensor_id", reading.SensorID).
			Time("observed_at", reading.ObservedAt).
			Msg("reading already stored")
		return
	default:
		report.Failed++
		i.recordError(err)
		logger.Error().
			Err(err).
			Str("error_kind", "persist").
			Str("sensor_id", reading.SensorID).
			Time("observed_at", reading.ObservedAt).
			Msg("failed to save reading")
		return
	}

	if i.publisher == nil {
		return
	}
	if err := i.publisher.PublishReading(writeCtx, reading); err != nil {
		i.metrics.PublishFailed()
		logger.Warn().
			Err(err).
			Str("error_kind", "publish").
			Str("sensor_id", reading.SensorID).
			Msg("failed to publish reading")
	}
}

func (i *Ingestor) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if i.opts.WriteTimeout > 0 {
		return context.WithTimeout(detached, i.opts.WriteTimeout)
	}
	return context.WithCancel(detached)
}

func (i *Ingestor) cleanup(ctx context.Context) {
	n, err := i.repo.DeleteOldReadings(ctx, i.opts.Retention)
	if err != nil {
		log.Error().Err(err).Str("error_kind", "retention").Msg("failed to delete old readings")
		return
	}
	i.metrics.AddRetention(n)
	log.Info().Int64("deleted", n).Dur("retention", i.opts.Retention).Msg("deleted old readings")
}

func (i *Ingestor) finishTick(report TickReport, outcome string, start time.Time) {
	now := i.now()
	i.metrics.ObserveTick(outcome, now.Sub(start))
	i.metrics.AddReadings(metrics.ReadingsPersisted, report.Persisted)
	i.metrics.AddReadings(metrics.ReadingsDuplicate, report.Duplicates)
	i.metrics.AddReadings(metrics.ReadingsSkipped, report.Skipped)
	i.metrics.AddReadings(metrics.ReadingsFailed, report.Failed)

	i.mu.Lock()
	defer i.mu.Unlock()
	i.status.Ticks++
	i.status.LastTick = now
	if outcome == metrics.TickOK {
		i.status.LastSuccess = now
	}
	switch {
	case report.Err != nil:
		i.status.LastError = report.Err.Error()
	case outcome == metrics.TickOK && report.Failed == 0:
		i.status.LastError = ""
	}
}

func (i *Ingestor) setState(state State) {
	authenticated := i.session.Valid()

	i.mu.Lock()
	changed := i.status.State != state || i.status.Authenticated != authenticated
	i.status.State = state
	i.status.Authenticated = authenticated
	healthy := i.status.Healthy()
	i.mu.Unlock()

	if changed {
		log.Debug().Str("state", state.String()).Bool("authenticated", authenticated).Msg("ingestion state changed")
		if i.reporter != nil {
			i.reporter.SetServing(healthy)
		}
	}
}

func (i *Ingestor) recordError(err error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.status.LastError = err.Error()
}

// sleep waits for d or until ctx is done; it reports whether the full wait elapsed
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
