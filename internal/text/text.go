// Package text holds the string handling shared by the enrich and persist
// stages: bounded truncation, content hashing and tolerant JSON extraction
// from model output.
package text

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MaxInputChars bounds the text that is hashed and sent to the summarizer.
	MaxInputChars = 1000

	// FallbackSummaryChars bounds the summary used when the summarizer fails.
	FallbackSummaryChars = 200
)

// Truncate returns the first n characters (runes) of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Hash is the hex sha256 of s. It is a dedup key, not a security primitive.
func Hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// ContentHash keys a page: the URL when present, otherwise the truncated text.
func ContentHash(url, body string) string {
	if url != "" {
		return Hash(url)
	}
	return Hash(Truncate(body, MaxInputChars))
}

var (
	leadingFence  = regexp.MustCompile("(?i)^```(?:json)?\\s*")
	trailingFence = regexp.MustCompile("\\s*```$")
)

// ExtractJSON strips an optional markdown code fence around a JSON document.
//
// Accepted grammar, after trimming surrounding whitespace:
//
//	body        = fenced | bare
//	fenced      = "```" [ "json" ] ws bare ws "```"
//
// The "json" tag is matched case-insensitively and the closing fence may be
// missing. Anything else is returned trimmed and unchanged.
func ExtractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = leadingFence.ReplaceAllString(s, "")
	s = trailingFence.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
