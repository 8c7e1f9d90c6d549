package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// DefaultLimit caps /readings when no limit is given
const DefaultLimit = 500

// endOfTime bounds open-ended range queries
var endOfTime = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

type healthResponse struct {
	State         string     `json:"state"`
	Authenticated bool       `json:"authenticated"`
	Ticks         int64      `json:"ticks"`
	LastTick      *time.Time `json:"last_tick,omitempty"`
	LastSuccess   *time.Time `json:"last_success,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	Storage       string     `json:"storage"`
}

type sensorResponse struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// health is 200 only while polling with a session and storage answers
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	st := h.status.Status()
	resp := healthResponse{
		State:         st.State.String(),
		Authenticated: st.Authenticated,
		Ticks:         st.Ticks,
		LastTick:      optionalTime(st.LastTick),
		LastSuccess:   optionalTime(st.LastSuccess),
		LastError:     st.LastError,
		Storage:       "ok",
	}

	code := http.StatusOK
	if err := h.repo.Ping(r.Context()); err != nil {
		resp.Storage = err.Error()
		code = http.StatusServiceUnavailable
	}
	if !st.Healthy() {
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, resp)
}

func (h *Handler) listSensors(w http.ResponseWriter, r *http.Request) {
	sensors, err := h.repo.ListSensors(r.Context())
	if err != nil {
		h.internalError(w, err, "failed to list sensors")
		return
	}

	resp := make([]sensorResponse, 0, len(sensors))
	for _, s := range sensors {
		resp = append(resp, sensorResponse{ID: s.ID, Name: s.Name})
	}
	writeJSON(w, http.StatusOK, resp)
}

// listReadings returns display rows, newest first
func (h *Handler) listReadings(w http.ResponseWriter, r *http.Request) {
	sensorID := mux.Vars(r)["id"]

	limit := DefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	readings, err := h.repo.ListReadings(r.Context(), sensorID, limit)
	if err != nil {
		h.internalError(w, err, "failed to list readings")
		return
	}

	writeJSON(w, http.StatusOK, h.formatter.Rows(readings))
}

// chart returns the series for one sensor, oldest first.
// An optional ?since=24h restricts it to a trailing window.
func (h *Handler) chart(w http.ResponseWriter, r *http.Request) {
	sensorID := mux.Vars(r)["id"]

	var start time.Time
	if v := r.URL.Query().Get("since"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "since must be a positive duration"})
			return
		}
		start = time.Now().Add(-d)
	}

	readings, err := h.repo.GetReadingsInRange(r.Context(), sensorID, start, endOfTime)
	if err != nil {
		h.internalError(w, err, "failed to load chart data")
		return
	}

	writeJSON(w, http.StatusOK, h.formatter.Series(readings))
}

func (h *Handler) internalError(w http.ResponseWriter, err error, msg string) {
	log.Error().Err(err).Str("error_kind", "read_api").Msg(msg)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("failed to write response")
	}
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
