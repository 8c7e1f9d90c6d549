package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ObservedLayout is the timestamp format used by the sensor cloud (UTC)
const ObservedLayout = "2006-01-02T15:04:05.000000Z"

// observedParseLayout accepts 1 to 6 fractional digits; ParseObserved enforces the count
const observedParseLayout = "2006-01-02T15:04:05.999999Z"

// RawSample is the unvalidated /samples payload: sensor id -> readings
type RawSample struct {
	Sensors map[string][]RawReading `json:"sensors"`
}

// RawReading keeps each field as raw JSON so a bad value only costs that reading.
// Fields the cloud sends beyond these three are ignored.
type RawReading struct {
	Observed    json.RawMessage `json:"observed"`
	Temperature json.RawMessage `json:"temperature"`
	Humidity    json.RawMessage `json:"humidity"`

	malformed error // element was not a JSON object
}

// UnmarshalJSON never fails, so one malformed element cannot drop its siblings.
// Normalize reports it as a skipped reading.
func (r *RawReading) UnmarshalJSON(data []byte) error {
	var fields struct {
		Observed    json.RawMessage `json:"observed"`
		Temperature json.RawMessage `json:"temperature"`
		Humidity    json.RawMessage `json:"humidity"`
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		*r = RawReading{malformed: fmt.Errorf("not a reading object: %w", err)}
		return nil
	}
	*r = RawReading{Observed: fields.Observed, Temperature: fields.Temperature, Humidity: fields.Humidity}
	return nil
}

// NormalizeResult summarizes one normalization pass
type NormalizeResult struct {
	Total    int
	Accepted int
	Skipped  int
	Errors   []*ValidationError
}

// Normalize validates a raw payload and converts it into readings.
// Invalid readings are skipped and reported; an empty result is not an error.
// Sensors are visited in id order, readings in payload order.
func Normalize(raw *RawSample) ([]*Reading, NormalizeResult) {
	var result NormalizeResult
	if raw == nil || len(raw.Sensors) == 0 {
		return nil, result
	}

	ids := make([]string, 0, len(raw.Sensors))
	for id := range raw.Sensors {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var readings []*Reading
	for _, id := range ids {
		for i, rr := range raw.Sensors[id] {
			result.Total++
			reading, verr := normalizeOne(id, i, rr)
			if verr != nil {
				result.Skipped++
				result.Errors = append(result.Errors, verr)
				continue
			}
			result.Accepted++
			readings = append(readings, reading)
		}
	}

	return readings, result
}

func normalizeOne(sensorID string, index int, rr RawReading) (*Reading, *ValidationError) {
	fail := func(field string, err error) *ValidationError {
		return &ValidationError{SensorID: sensorID, Index: index, Field: field, Err: err}
	}

	if rr.malformed != nil {
		return nil, fail("", rr.malformed)
	}
	if absent(rr.Observed) {
		return nil, fail("observed", ErrMissingField)
	}
	if absent(rr.Temperature) {
		return nil, fail("temperature", ErrMissingField)
	}
	if absent(rr.Humidity) {
		return nil, fail("humidity", ErrMissingField)
	}

	var observed string
	if err := json.Unmarshal(rr.Observed, &observed); err != nil {
		return nil, fail("observed", fmt.Errorf("not a string: %w", err))
	}
	observedAt, err := ParseObserved(observed)
	if err != nil {
		return nil, fail("observed", err)
	}

	var temperature, humidity float64
	if err := json.Unmarshal(rr.Temperature, &temperature); err != nil {
		return nil, fail("temperature", fmt.Errorf("not a number: %w", err))
	}
	if err := json.Unmarshal(rr.Humidity, &humidity); err != nil {
		return nil, fail("humidity", fmt.Errorf("not a number: %w", err))
	}

	reading, err := NewReading(sensorID, observedAt, temperature, humidity)
	if err != nil {
		return nil, fail("", err)
	}
	return reading, nil
}

// ParseObserved parses a cloud timestamp such as 2024-01-01T00:00:00.000000Z.
// The fraction is required and has 1 to 6 digits.
func ParseObserved(s string) (time.Time, error) {
	if n := fractionDigits(s); n < 1 || n > 6 {
		return time.Time{}, fmt.Errorf("malformed timestamp %q: expected 1 to 6 fractional digits", s)
	}
	t, err := time.Parse(observedParseLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// fractionDigits counts the characters between the last '.' and the trailing Z
func fractionDigits(s string) int {
	dot := strings.LastIndexByte(s, '.')
	if dot < 0 || !strings.HasSuffix(s, "Z") {
		return 0
	}
	return len(s) - dot - 2
}

func absent(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) == 0 || bytes.Equal(v, []byte("null"))
}
