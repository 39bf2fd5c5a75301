package job

import (
	"encoding/json"
	"time"
)

// Job is a message that could not be processed and was parked for
// manual inspection. Retry republishes Payload to Topic.
type Job struct {
	ID        string          `json:"id"`
	Topic     string          `json:"topic"`
	Handler   string          `json:"handler"`
	Payload   json.RawMessage `json:"payload"`
	Error     string          `json:"error"`
	Retries   int             `json:"retries"`
	CreatedAt time.Time       `json:"created_at"`
}

// MarshalJSON renders a payload that is not valid JSON as a string so
// poison messages can still be listed.
func (j Job) MarshalJSON() ([]byte, error) {
	type alias Job
	if len(j.Payload) == 0 || json.Valid(j.Payload) {
		return json.Marshal(alias(j))
	}
	raw, err := json.Marshal(string(j.Payload))
	if err != nil {
		return nil, err
	}
	a := alias(j)
	a.Payload = raw
	return json.Marshal(a)
}
