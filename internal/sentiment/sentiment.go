// Package sentiment classifies utterances into coarse sentiment labels.
//
// Classification is a lightweight lexical heuristic used for response
// selection and context display, not a validated NLP model. The function is
// pure and safe to run concurrently with other per-request work.
package sentiment

import "strings"

// Label is a coarse sentiment classification of an utterance.
type Label string

// The four defined sentiment labels.
const (
	Positive    Label = "positive"
	Negative    Label = "negative"
	Questioning Label = "questioning"
	Neutral     Label = "neutral"
)

// Cue lists are evaluated in tier order with first-match-wins semantics.
// Emotional cues outrank interrogative phrasing: an emotionally charged
// question ("I'm so sad, what should I do?") classifies by its emotion, not
// by its trailing question mark. Ties within a tier resolve by cue position.
var (
	negativeCues = []string{
		"sad", "terrible", "awful", "horrible", "worried", "angry",
		"upset", "depressed", "frustrated", "anxious", "miserable",
		"rough day", "going wrong", "stressed", "lonely",
	}

	positiveCues = []string{
		"great", "wonderful", "excited", "happy", "amazing", "awesome",
		"fantastic", "excellent", "love", "glad", "delighted", "thrilled",
		"promotion", "good news",
	}

	questionWords = []string{
		"what", "how", "why", "when", "where", "can", "could", "would",
	}
)

// Classify returns the sentiment label for text. Matching is
// case-insensitive; empty or whitespace-only input is neutral.
func Classify(text string) Label {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return Neutral
	}

	for _, cue := range negativeCues {
		if strings.Contains(lower, cue) {
			return Negative
		}
	}
	for _, cue := range positiveCues {
		if strings.Contains(lower, cue) {
			return Positive
		}
	}
	if isInterrogative(lower) {
		return Questioning
	}
	return Neutral
}

// isInterrogative reports whether text ends with a question mark or starts
// with a question word.
func isInterrogative(lower string) bool {
	if strings.HasSuffix(lower, "?") {
		return true
	}
	first, _, _ := strings.Cut(lower, " ")
	for _, w := range questionWords {
		if first == w {
			return true
		}
	}
	return false
}

// Valid reports whether l is one of the four defined labels.
func Valid(l Label) bool {
	switch l {
	case Positive, Negative, Questioning, Neutral:
		return true
	}
	return false
}
