package visit

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Visit is one append-only browsing fragment. Repeat visits are expected.
type Visit struct {
	ID          int64      `json:"id"`
	PageID      int64      `json:"page_id"`
	UserID      string     `json:"user_id"`
	SessionID   string     `json:"session_id"`
	ScrollDepth *float64   `json:"scroll_depth"`
	VisitStart  *time.Time `json:"visit_start"`
	VisitEnd    *time.Time `json:"visit_end"`
}

// Duration is VisitEnd-VisitStart when both ends are known.
func (v Visit) Duration() (time.Duration, bool) {
	return Duration(v.VisitStart, v.VisitEnd)
}

func Duration(start, end *time.Time) (time.Duration, bool) {
	if start == nil || end == nil {
		return 0, false
	}
	return end.Sub(*start), true
}

// ParseScrollDepth accepts a JSON number or numeric string. Anything else,
// including null, NaN and infinities, yields nil. Values outside [0,1] are
// kept as received.
func ParseScrollDepth(raw json.RawMessage) *float64 {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return finite(f)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return finite(f)
}

func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp accepts ISO-8601 with or without a zone ("Z" or offset).
// Zone-less values are read as UTC. Unparseable input yields nil.
func ParseTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
