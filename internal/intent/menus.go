package intent

import (
	"strings"

	"github.com/comigor/ethiochat/internal/message"
)

// Quick-reply ids with local behaviour.
const (
	ReplyLogin            = "login"
	ReplySignup           = "signup"
	ReplyContinueBrowsing = "continue-browsing"
	ReplyHuman            = "human"
	ReplyHumanAgent       = "human-agent"
	ReplyEmergencyYes     = "emergency-yes"
	ReplyContinueWithBot  = "continue"
	ReplyEndHuman         = "human-end"
	ReplyDetails          = "details"
	ReplyWeatherCheck     = "weather-check"

	PrefixFAQ     = "faq-"
	PrefixWeather = "weather-"
)

type option = message.QuickReplyOption

var menus = map[Category][]option{
	CategoryWeather: {
		{ID: "weather-addis-ababa", Text: "Weather in Addis Ababa"},
		{ID: "weather-gondar", Text: "Weather in Gondar"},
		{ID: "weather-lalibela", Text: "Weather in Lalibela"},
		{ID: "weather-bahir-dar", Text: "Weather in Bahir Dar"},
	},
	CategoryVisa: {
		{ID: "visa-apply", Text: "How to apply for a visa"},
		{ID: "visa-requirements", Text: "Visa requirements"},
		{ID: "visa-duration", Text: "Visa duration"},
		{ID: "visa-cost", Text: "Visa cost"},
	},
	CategoryDestination: {
		{ID: "destination-lalibela", Text: "Explore Lalibela"},
		{ID: "destination-gondar", Text: "Explore Gondar"},
		{ID: "destination-axum", Text: "Explore Axum"},
		{ID: "destination-simien", Text: "Explore Simien Mountains"},
	},
	CategoryFeedback: {
		{ID: "feedback-positive", Text: "Share positive feedback"},
		{ID: "feedback-issue", Text: "Report an issue"},
		{ID: "feedback-suggestion", Text: "Suggest an improvement"},
	},
	CategorySafety: {
		{ID: "faq-safety", Text: "Safety tips"},
		{ID: "emergency-yes", Text: "Connect me with support"},
		{ID: "faq-transport", Text: "Getting around safely"},
	},
	CategoryDefault: {
		{ID: "faq-visa", Text: "Visa requirements"},
		{ID: "faq-currency", Text: "Currency information"},
		{ID: "faq-safety", Text: "Safety tips"},
		{ID: ReplyWeatherCheck, Text: "Check weather"},
		{ID: ReplyHumanAgent, Text: "Speak to a human"},
	},
}

// Menu returns a copy of the fixed menu for c. Unknown categories get the
// default menu.
func Menu(c Category) []message.QuickReplyOption {
	m, ok := menus[c]
	if !ok {
		m = menus[CategoryDefault]
	}
	out := make([]option, len(m))
	copy(out, m)
	return out
}

// AuthMenu is offered whenever the user must authenticate.
func AuthMenu() []message.QuickReplyOption {
	return []option{
		{ID: ReplyLogin, Text: "Log in"},
		{ID: ReplySignup, Text: "Sign up"},
		{ID: ReplyContinueBrowsing, Text: "Continue browsing"},
	}
}

// HandoffMenu is the default menu plus a way back to the assistant.
func HandoffMenu() []message.QuickReplyOption {
	return append(Menu(CategoryDefault), option{ID: ReplyContinueWithBot, Text: "Continue with bot"})
}

// SuggestionMenu turns backend suggestions into quick replies that send
// their label.
func SuggestionMenu(suggestions []string) []message.QuickReplyOption {
	var out []option
	for _, s := range suggestions {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, option{ID: "suggestion-" + slug(s), Text: s})
	}
	return out
}

// LocationMenu builds a weather location picker from place names.
func LocationMenu(places []string) []message.QuickReplyOption {
	out := make([]option, 0, len(places))
	for _, p := range places {
		out = append(out, option{ID: PrefixWeather + slug(p), Text: "Weather in " + p})
	}
	return out
}

func slug(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "-")
}
