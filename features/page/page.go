package page

import "trailmark/features/taxonomy"

type SourceType string

const (
	SourceWeb  SourceType = "web"
	SourceChat SourceType = "chat"
)

// SourceTypeFor classifies content: anything without a URL is chat text.
func SourceTypeFor(url string) SourceType {
	if url == "" {
		return SourceChat
	}
	return SourceWeb
}

// Page is the deduplicated content record keyed by ContentHash.
// Summary is nil until enrichment has produced one.
type Page struct {
	ID          int64            `json:"id"`
	URL         string           `json:"url"`
	ContentHash string           `json:"url_hash"`
	Title       string           `json:"title"`
	Summary     *string          `json:"summary"`
	Labels      []taxonomy.Label `json:"labels"`
	Keywords    string           `json:"keywords,omitempty"`
	SearchQuery string           `json:"search_query,omitempty"`
	SourceType  SourceType       `json:"source_type"`
}

// Cached is a prior enrichment result.
type Cached struct {
	Summary string
	Labels  []taxonomy.Label
}

// Resolved is the outcome of resolving a page for a visit.
type Resolved struct {
	ID      int64
	Summary string
}
