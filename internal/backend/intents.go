package backend

import "strings"

var intents = map[string]string{
	"hello":              "Hello! How can I assist you today?",
	"how are you":        "I'm just a bot, but I'm doing great! How about you?",
	"what is your name":  "I am your personal assistant Dollar.",
	"goodbye":            "Goodbye! Have a great day!",
	"thank you":          "You're welcome!",
	"what's the weather": "Please provide your location, and I'll check the weather for you.",
	"help":               "Of course! What do you need help with?",
	"who are you":        "I am your assistant Dollar ,I am created by Kaustubh Gautam.",
}

// Predefined answers text when it is, ignoring case, one of the canned
// prompts. Only exact matches count.
func Predefined(text string) (string, bool) {
	reply, ok := intents[strings.ToLower(text)]
	return reply, ok
}
