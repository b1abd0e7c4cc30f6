package service

import "strings"

// GreetingResponse is returned for trivial conversational turns without
// touching the embedder, the index or context assembly.
const GreetingResponse = "Hi! I'm here to help you with questions about your documents. What would you like to know?"

var greetingPhrases = []string{
	"hi",
	"hello",
	"hey",
	"yo",
	"howdy",
	"greetings",
	"good morning",
	"good afternoon",
	"good evening",
}

// IsGreeting reports whether text is a trivial greeting: after lowering,
// trimming and stripping punctuation it must equal a known phrase, or start
// with a multi-word phrase. A greeting followed by a real question
// ("hi, what's the refund policy?") is not a greeting.
func IsGreeting(text string) bool {
	normalized := normalizeGreeting(text)
	if normalized == "" {
		return false
	}
	for _, phrase := range greetingPhrases {
		if normalized == phrase {
			return true
		}
		if strings.Contains(phrase, " ") && strings.HasPrefix(normalized, phrase+" ") {
			return true
		}
	}
	return false
}

func normalizeGreeting(text string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ':
			sb.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}
