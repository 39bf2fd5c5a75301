package worker

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"trailmark/features/taxonomy"
	"trailmark/features/visit"
)

// ErrInvalidMessage marks a payload that can never be processed: it is
// not JSON or fails validation. Such messages go to the dead-letter path.
var ErrInvalidMessage = errors.New("invalid message")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Message is a user action as it travels raw -> processed. Keys this type
// does not know are carried through untouched so every stage only adds
// fields.
type Message struct {
	URL         string   `json:"url,omitempty" validate:"max=4096"`
	Text        string   `json:"text,omitempty"`
	Title       string   `json:"title,omitempty" validate:"max=1024"`
	UserID      string   `json:"user_id" validate:"required,max=255"`
	SessionID   string   `json:"session_id" validate:"required,max=255"`
	ScrollDepth *float64 `json:"scroll_depth"`
	VisitStart  string   `json:"visit_start,omitempty"`
	VisitEnd    string   `json:"visit_end,omitempty"`
	Keywords    string   `json:"keywords,omitempty"`
	SearchQuery string   `json:"search_query,omitempty"`

	// Set by the enrich stage.
	Summary *string          `json:"summary,omitempty"`
	Labels  []taxonomy.Label `json:"labels,omitempty"`

	CorrelationID string `json:"correlation_id,omitempty"`

	extra map[string]json.RawMessage
}

var knownKeys = map[string]bool{
	"url": true, "text": true, "title": true, "user_id": true, "session_id": true,
	"scroll_depth": true, "scrollDepth": true, "visit_start": true, "visit_end": true,
	"keywords": true, "search_query": true, "summary": true, "labels": true,
	"correlation_id": true,
}

// UnmarshalJSON accepts scroll_depth or scrollDepth (normalized to
// ScrollDepth) and keywords as a string or a list of strings. An
// unparseable scroll depth becomes nil instead of an error.
func (m *Message) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	if fields == nil {
		return errors.New("message must be a JSON object")
	}

	*m = Message{}
	str := func(key string, dst *string) error {
		raw, ok := fields[key]
		if !ok || isNull(raw) {
			return nil
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
		return nil
	}

	for key, dst := range map[string]*string{
		"url":            &m.URL,
		"text":           &m.Text,
		"title":          &m.Title,
		"user_id":        &m.UserID,
		"session_id":     &m.SessionID,
		"visit_start":    &m.VisitStart,
		"visit_end":      &m.VisitEnd,
		"search_query":   &m.SearchQuery,
		"correlation_id": &m.CorrelationID,
	} {
		if err := str(key, dst); err != nil {
			return err
		}
	}

	if raw, ok := fields["scroll_depth"]; ok && !isNull(raw) {
		m.ScrollDepth = visit.ParseScrollDepth(raw)
	} else if raw, ok := fields["scrollDepth"]; ok {
		m.ScrollDepth = visit.ParseScrollDepth(raw)
	}

	if raw, ok := fields["keywords"]; ok && !isNull(raw) {
		kw, err := decodeKeywords(raw)
		if err != nil {
			return fmt.Errorf("field keywords: %w", err)
		}
		m.Keywords = kw
	}

	if raw, ok := fields["summary"]; ok && !isNull(raw) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("field summary: %w", err)
		}
		m.Summary = &s
	}

	if raw, ok := fields["labels"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &m.Labels); err != nil {
			return fmt.Errorf("field labels: %w", err)
		}
	}

	for key, raw := range fields {
		if knownKeys[key] {
			continue
		}
		if m.extra == nil {
			m.extra = make(map[string]json.RawMessage)
		}
		m.extra[key] = raw
	}
	return nil
}

func (m Message) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.extra)+14)
	for k, v := range m.extra {
		out[k] = v
	}

	type plain Message
	b, err := json.Marshal(plain(m))
	if err != nil {
		return nil, err
	}
	var known map[string]json.RawMessage
	if err := json.Unmarshal(b, &known); err != nil {
		return nil, err
	}
	for k, v := range known {
		out[k] = v
	}
	if m.Summary != nil && len(m.Labels) == 0 {
		out["labels"] = json.RawMessage("[]")
	}
	return json.Marshal(out)
}

// Validate reports ErrInvalidMessage with the failing fields.
func (m *Message) Validate() error {
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return nil
}

// ParseMessage decodes and validates a queue body.
func ParseMessage(body []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Action converts an enriched message into the persistence input.
func (m *Message) Action() visit.Action {
	a := visit.Action{
		URL:         m.URL,
		Text:        m.Text,
		Title:       m.Title,
		Labels:      m.Labels,
		Keywords:    m.Keywords,
		SearchQuery: m.SearchQuery,
		UserID:      m.UserID,
		SessionID:   m.SessionID,
		ScrollDepth: m.ScrollDepth,
		VisitStart:  visit.ParseTimestamp(m.VisitStart),
		VisitEnd:    visit.ParseTimestamp(m.VisitEnd),
	}
	if m.Summary != nil {
		a.Summary = *m.Summary
	}
	return a
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func decodeKeywords(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return "", err
	}
	return strings.Join(list, ","), nil
}
