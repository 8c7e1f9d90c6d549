// Package httpapi serves a read-only JSON view of stored readings.
package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quentinrf/budwatch/internal/display"
	"github.com/quentinrf/budwatch/internal/domain"
	"github.com/quentinrf/budwatch/internal/ports"
)

// StatusSource reports the ingestion loop state
type StatusSource interface {
	Status() ports.Status
}

// Handler serves the read API
type Handler struct {
	repo      domain.ReadingRepository
	status    StatusSource
	formatter *display.Formatter
}

// NewHandler creates the read API handler
func NewHandler(repo domain.ReadingRepository, status StatusSource, formatter *display.Formatter) *Handler {
	return &Handler{
		repo:      repo,
		status:    status,
		formatter: formatter,
	}
}

// NewRouter wires routes, /metrics from gatherer, and the recovery and logging middleware
func NewRouter(h *Handler, gatherer prometheus.Gatherer) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.health).Methods("GET")
	r.HandleFunc("/api/sensors", h.listSensors).Methods("GET")
	r.HandleFunc("/api/sensors/{id}/readings", h.listReadings).Methods("GET")
	r.HandleFunc("/api/sensor/{id}", h.chart).Methods("GET")
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}

	logged := handlers.CustomLoggingHandler(io.Discard, r, logRequest)
	return handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{}))(logged)
}

// logRequest sends access logs to zerolog instead of the writer
func logRequest(_ io.Writer, p handlers.LogFormatterParams) {
	level := zerolog.DebugLevel
	if p.StatusCode >= http.StatusInternalServerError {
		level = zerolog.WarnLevel
	}

	log.WithLevel(level).
		Str("method", p.Request.Method).
		Str("path", p.URL.Path).
		Int("status", p.StatusCode).
		Int("size", p.Size).
		Dur("took", time.Since(p.TimeStamp)).
		Msg("http request")
}

type recoveryLogger struct{}

func (recoveryLogger) Println(v ...interface{}) {
	log.Error().Str("error_kind", "panic").Msg(fmt.Sprint(v...))
}
