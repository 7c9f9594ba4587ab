// Package intent assigns each utterance exactly one category from a fixed
// closed set. The category selects the fallback template family; it is
// independent of sentiment ("what's the weather?" is a question_weather
// intent with questioning sentiment).
package intent

import "strings"

// Category is an utterance's purpose, from the closed set below.
type Category string

// The closed set of intent categories.
const (
	Greeting           Category = "greeting"
	Farewell           Category = "farewell"
	Gratitude          Category = "gratitude"
	Compliment         Category = "compliment"
	EmotionNegative    Category = "emotion_negative"
	EmotionPositive    Category = "emotion_positive"
	QuestionCapability Category = "question_capability"
	QuestionIdentity   Category = "question_identity"
	QuestionWeather    Category = "question_weather"
	QuestionTime       Category = "question_time"
	JokeRequest        Category = "joke_request"
	Unknown            Category = "unknown"
)

// rules is the ordered rule list. Earlier rules win: "thanks, you're amazing"
// is gratitude, not compliment. Each rule matches on presence of any of its
// cues in the lowercased utterance.
var rules = []struct {
	category Category
	cues     []string
}{
	{Greeting, []string{"hello", "hi there", "hey", "good morning", "good afternoon", "good evening", "greetings"}},
	{Farewell, []string{"goodbye", "bye", "see you", "farewell", "good night", "take care"}},
	{Gratitude, []string{"thank", "thanks", "appreciate", "grateful"}},
	{JokeRequest, []string{"joke", "funny", "make me laugh", "humor"}},
	{QuestionWeather, []string{"weather", "raining", "sunny", "forecast", "temperature outside"}},
	{QuestionTime, []string{"what time", "time is it", "what's the date", "what day"}},
	{QuestionCapability, []string{"what can you", "help me", "what do you do", "can you do", "your capabilities", "able to"}},
	{QuestionIdentity, []string{"your name", "who are you", "what are you", "how old are you", "about yourself"}},
	{Compliment, []string{"amazing", "awesome", "smart", "you're great", "you are great", "brilliant", "impressive", "well done"}},
	{EmotionNegative, []string{"sad", "terrible", "awful", "worried", "angry", "upset", "depressed", "rough day", "going wrong", "frustrated", "anxious"}},
	{EmotionPositive, []string{"happy", "excited", "wonderful", "fantastic", "great day", "promotion", "good news", "delighted"}},
}

// Detect returns the category for text. Matching is case-insensitive with
// first-match-wins against the ordered rule list; the default is Unknown.
func Detect(text string) Category {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return Unknown
	}

	// "hi" is a cue only as a standalone word; substring matching would fire
	// on "this" or "which".
	if first, _, _ := strings.Cut(lower, " "); first == "hi" || first == "hi!" || first == "hi," {
		return Greeting
	}

	for _, rule := range rules {
		for _, cue := range rule.cues {
			if strings.Contains(lower, cue) {
				return rule.category
			}
		}
	}
	return Unknown
}

// All returns every category in the closed set, Unknown last.
// Used to validate the fallback template table's structural invariant.
func All() []Category {
	return []Category{
		Greeting, Farewell, Gratitude, Compliment,
		EmotionNegative, EmotionPositive,
		QuestionCapability, QuestionIdentity, QuestionWeather, QuestionTime,
		JokeRequest, Unknown,
	}
}
