package fallback

import (
	"github.com/stanchat/stan/internal/intent"
	"github.com/stanchat/stan/internal/sentiment"
)

// templates is the default table: every intent category carries at least
// three variants so repeated traffic does not feel mechanical. The table is
// configurable data; the structural invariant (no empty category, unknown
// present) is enforced by New.
var templates = map[intent.Category][]string{
	intent.Greeting: {
		"Hello! It's great to hear from you. How can I help today?",
		"Hi there! What's on your mind?",
		"Hey! Good to see you. What would you like to talk about?",
		"Hello! I was hoping someone would stop by. How are you doing?",
	},
	intent.Farewell: {
		"Goodbye! It was lovely chatting with you.",
		"Take care! Come back any time you want to talk.",
		"See you later! I enjoyed our conversation.",
	},
	intent.Gratitude: {
		"You're very welcome! Happy to help.",
		"Any time! That's what I'm here for.",
		"My pleasure! Let me know if there's anything else.",
	},
	intent.Compliment: {
		"That's very kind of you to say! I do my best.",
		"Thank you! You're pretty great yourself.",
		"Aw, thanks! Comments like that make my day.",
	},
	intent.EmotionNegative: {
		"That sounds really tough. Do you want to talk about what's going on?",
		"I'm sorry you're going through this. I'm here to listen.",
		"That must be hard. Sometimes putting it into words helps a little.",
	},
	intent.EmotionPositive: {
		"That's wonderful to hear! I'm glad you're feeling good.",
		"That's fantastic news! Tell me more.",
		"Love that energy! What's got you feeling so good?",
	},
	intent.QuestionCapability: {
		"I can chat about whatever's on your mind, keep track of our conversation, and try to brighten your day. What would you like to do?",
		"I'm a conversational assistant: ask me questions, tell me how you're feeling, or just chat. What sounds good?",
		"Mostly I'm here to talk! I remember our conversation and do my best to respond helpfully. Try me.",
	},
	intent.QuestionIdentity: {
		"I'm Stan, a conversational assistant. I'm here to chat whenever you like.",
		"My name is Stan! I'm a chatbot built to keep you company and help where I can.",
		"I'm Stan. Age is a fuzzy concept for software, but I like to think I'm young at heart.",
	},
	intent.QuestionWeather: {
		"I can't see outside, sadly, but I hope it's pleasant where you are! How's your day going?",
		"I don't have a window to check the weather, but I'd love to hear what it's like where you are.",
		"No weather sensors here, I'm afraid! Is it nice out?",
	},
	intent.QuestionTime: {
		"I'm not much of a clock, but your device should know! Is there something you're planning?",
		"Time flies when we're chatting! I don't track the clock, though.",
		"I lose track of time in here, honestly. What are you up to today?",
	},
	intent.JokeRequest: {
		"Why don't scientists trust atoms? Because they make up everything!",
		"I told my computer I needed a break, and it said 'no problem, I'll go to sleep.'",
		"Why did the scarecrow win an award? Because he was outstanding in his field!",
		"What do you call a fake noodle? An impasta!",
	},
	intent.Unknown: {
		"That's interesting! Tell me more about that.",
		"I'm not sure I fully follow, but I'd like to. Can you say more?",
		"Hmm, let me think about that. What makes you bring it up?",
		"Good question! What's your own take on it?",
	},
}

// registers overrides the template family for the emotion categories when
// the independently computed sentiment agrees with the intent. Sentiment and
// intent combine here: a negative-sentiment negative-emotion message gets an
// acknowledging register, anything else falls back to the category default,
// which redirects more cheerfully.
var registers = map[intent.Category]map[sentiment.Label][]string{
	intent.EmotionNegative: {
		sentiment.Negative: {
			"I'm really sorry you're feeling this way. Whatever it is, you don't have to carry it alone.",
			"That sounds genuinely hard. I'm here, and I'm listening.",
			"It's okay to feel down sometimes. Do you want to tell me what happened?",
		},
	},
	intent.EmotionPositive: {
		sentiment.Positive: {
			"Yes! That's the kind of news I love to hear. Congratulations!",
			"That's amazing! You deserve to enjoy this moment.",
			"Fantastic! Days like this are worth celebrating.",
		},
	},
}

// emptyInputTemplates answer an empty-after-trim message conversationally
// instead of rejecting it.
var emptyInputTemplates = []string{
	"I didn't catch anything there. What's on your mind?",
	"Looks like your message came through empty! Want to try again?",
	"A moment of silence is fine too. I'm here when you're ready to chat.",
}
