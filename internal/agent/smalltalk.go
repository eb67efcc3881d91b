package agent

import (
	"strings"
	"time"

	"github.com/otto-ai/otto/internal/classifier"
)

const emptyReply = "I didn't catch that. What would you like me to do?"

var greetings = []string{
	"Hey! How can I help?",
	"Hello! What's on your mind?",
	"Hi there! Need a hand?",
}

// cannedReply answers small talk without a model round trip.
func cannedReply(intent *classifier.Intent, text string) string {
	if intent.Subcategory == classifier.SubEmpty {
		return emptyReply
	}
	if isAcknowledgement(strings.ToLower(strings.TrimSpace(text))) {
		return "Got it. Anything else I can do?"
	}
	return randomGreeting()
}

// isAcknowledgement matches exact standalone acknowledgements only.
// "ok" starting a sentence is not one.
func isAcknowledgement(msg string) bool {
	msg = strings.TrimRight(msg, "!.,?")
	for _, a := range []string{"thanks", "thank you", "thx", "got it", "cool", "ok", "okay"} {
		if msg == a {
			return true
		}
	}
	return false
}

func randomGreeting() string {
	return greetings[time.Now().UnixNano()%int64(len(greetings))]
}
