package taxonomy

import (
	"encoding/json"
	"errors"
	"strings"
)

var ErrUnknownRoot = errors.New("unknown root category")

// DefaultRoots is the fixed root taxonomy offered to the summarizer and
// seeded into root_categories at startup.
var DefaultRoots = []string{
	"Technology",
	"Science",
	"Business",
	"Finance",
	"Politics",
	"Society",
	"Health",
	"Education",
	"Entertainment",
	"Sports",
	"Travel",
	"Food",
	"Lifestyle",
	"Art",
}

type RootCategory struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type SubCategory struct {
	ID     int64  `json:"id"`
	RootID int64  `json:"root_id"`
	Name   string `json:"name"`
}

// Label tags a page with one root category and any number of sub-categories.
// On the wire "sub" may be a single string or a list; "subs" is accepted as
// an alias. It is always written back as a list.
type Label struct {
	Root string   `json:"root"`
	Subs []string `json:"sub"`
}

func (l *Label) UnmarshalJSON(b []byte) error {
	var raw struct {
		Root string          `json:"root"`
		Sub  json.RawMessage `json:"sub"`
		Subs json.RawMessage `json:"subs"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	subs, err := decodeSubs(raw.Sub)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		if subs, err = decodeSubs(raw.Subs); err != nil {
			return err
		}
	}

	l.Root = strings.TrimSpace(raw.Root)
	l.Subs = subs
	return nil
}

func decodeSubs(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		if one = strings.TrimSpace(one); one == "" {
			return nil, nil
		}
		return []string{one}, nil
	}

	var many []string
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(many))
	for _, s := range many {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}
