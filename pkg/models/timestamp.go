package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrEmptyTimestamp = errors.New("empty timestamp")

// epochMillisThreshold separates epoch seconds from epoch milliseconds.
// 1e12 seconds is roughly the year 33658.
const epochMillisThreshold = 1e12

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseBackendTimestamp decodes the timestamp forms the backend emits:
//
//   - a JSON number: epoch seconds (milliseconds when >= 1e12)
//   - a JSON string holding such a number
//   - a JSON string in ISO-8601 form; a missing zone means UTC
//
// null, "" and missing values return ErrEmptyTimestamp.
func ParseBackendTimestamp(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, ErrEmptyTimestamp
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, fmt.Errorf("timestamp: %w", err)
		}
		return ParseTimestampString(s)
	}

	n, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %s: not a number or string", raw)
	}
	return fromEpoch(n), nil
}

// ParseTimestampString is ParseBackendTimestamp for values already unquoted.
func ParseTimestampString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrEmptyTimestamp
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return fromEpoch(n), nil
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp %q: unrecognized format", s)
}

func fromEpoch(n float64) time.Time {
	if n >= epochMillisThreshold {
		return time.UnixMilli(int64(n)).UTC()
	}
	sec := int64(n)
	nsec := int64((n - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}

// BackendTime is a time.Time that decodes with ParseBackendTimestamp and
// encodes as RFC 3339.
type BackendTime struct {
	time.Time
}

func (t *BackendTime) UnmarshalJSON(data []byte) error {
	parsed, err := ParseBackendTimestamp(data)
	if errors.Is(err, ErrEmptyTimestamp) {
		t.Time = time.Time{}
		return nil
	}
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t BackendTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// ID is an identifier the backend may send as a JSON string or number.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}
