// Package topics extracts a short topic summary from recent conversation
// history, surfaced as the "context" field of a chat response.
//
// Summarize is pure and side-effect-free so the orchestrator can run it
// concurrently with sentiment classification.
package topics

import (
	"strings"

	"github.com/stanchat/stan/internal/store"
)

const (
	// HistoryWindow is the number of recent turns scanned for topics.
	HistoryWindow = 10

	// MaxTopics caps the summary length.
	MaxTopics = 3

	// prefix and fallback for the formatted summary string.
	summaryPrefix  = "Recent topics: "
	generalSummary = summaryPrefix + "general conversation"
)

// vocabulary maps topic names to the tokens that signal them. Topic names
// appear in the summary in first-occurrence order across the scanned turns.
// The vocabulary is configurable data, not a contract; only the summary
// format is.
var vocabulary = []struct {
	name   string
	tokens []string
}{
	{"weather", []string{"weather", "rain", "sunny", "snow", "forecast", "temperature"}},
	{"technology", []string{"technology", "computer", "software", "internet", "ai", "robot"}},
	{"work", []string{"work", "job", "office", "meeting", "project", "promotion", "career"}},
	{"health", []string{"health", "doctor", "exercise", "sleep", "tired", "sick"}},
	{"programming", []string{"programming", "code", "coding", "python", "bug", "algorithm"}},
	{"food", []string{"food", "eat", "hungry", "dinner", "lunch", "cooking"}},
	{"music", []string{"music", "song", "listen", "concert", "band"}},
}

// Summarize scans the last HistoryWindow turns for topic vocabulary and
// returns a formatted summary: "Recent topics: a, b" with topics in
// first-occurrence order, deduplicated, capped at MaxTopics. When nothing
// matches it returns "Recent topics: general conversation".
func Summarize(turns []store.Turn) string {
	if len(turns) > HistoryWindow {
		turns = turns[len(turns)-HistoryWindow:]
	}

	var matched []string
	seen := make(map[string]bool)

	for _, turn := range turns {
		lower := strings.ToLower(turn.Text)
		for _, topic := range vocabulary {
			if seen[topic.name] {
				continue
			}
			if containsToken(lower, topic.tokens) {
				seen[topic.name] = true
				matched = append(matched, topic.name)
			}
		}
	}

	if len(matched) == 0 {
		return generalSummary
	}
	if len(matched) > MaxTopics {
		matched = matched[:MaxTopics]
	}
	return summaryPrefix + strings.Join(matched, ", ")
}

// containsToken reports whether any token appears as a word in lower.
// Word-boundary matching keeps "ai" from firing inside "again".
func containsToken(lower string, tokens []string) bool {
	for _, tok := range tokens {
		idx := 0
		for {
			i := strings.Index(lower[idx:], tok)
			if i < 0 {
				break
			}
			start := idx + i
			end := start + len(tok)
			if boundary(lower, start-1) && boundary(lower, end) {
				return true
			}
			idx = end
		}
	}
	return false
}

// boundary reports whether position i is outside the string or a
// non-alphanumeric byte.
func boundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	c := s[i]
	return !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9')
}
