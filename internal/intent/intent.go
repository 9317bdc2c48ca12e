// Package intent classifies free-text messages with ordered keyword tables.
// Classification only picks quick-reply menus and local routes; it never
// changes what is sent to the backend.
package intent

import (
	"strings"

	"github.com/comigor/ethiochat/internal/message"
)

// Category selects the quick-reply menu that follows a reply.
type Category string

const (
	CategoryWeather     Category = "weather"
	CategoryVisa        Category = "visa"
	CategoryDestination Category = "destination"
	CategoryFeedback    Category = "feedback"
	CategorySafety      Category = "safety"
	CategoryDefault     Category = "default"
)

// Intent selects how the controller handles a message.
type Intent string

const (
	IntentHuman     Intent = "human"
	IntentWeather   Intent = "weather"
	IntentItinerary Intent = "itinerary"
	IntentBooking   Intent = "booking"
	IntentOther     Intent = "other"
)

type rule[T any] struct {
	keywords []string
	result   T
}

func (r rule[T]) matches(lower string) bool {
	for _, k := range r.keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

func firstMatch[T any](rules []rule[T], text string, fallback T) T {
	lower := strings.ToLower(text)
	for _, r := range rules {
		if r.matches(lower) {
			return r.result
		}
	}
	return fallback
}

var categoryRules = []rule[Category]{
	{keywords: []string{"weather", "temperature", "forecast"}, result: CategoryWeather},
	{keywords: []string{"visa"}, result: CategoryVisa},
	{keywords: []string{"destination", "lalibela", "gondar", "axum", "simien", "harar", "bahir dar", "danakil"}, result: CategoryDestination},
	{keywords: []string{"feedback"}, result: CategoryFeedback},
	{keywords: []string{"safety", "safe", "emergency", "danger"}, result: CategorySafety},
}

var intentRules = []rule[Intent]{
	{keywords: []string{"speak to a human", "talk to a human", "human agent", "live agent", "real person", "representative"}, result: IntentHuman},
	{keywords: []string{"weather", "temperature", "forecast"}, result: IntentWeather},
	{keywords: []string{"itinerary", "schedule"}, result: IntentItinerary},
	{keywords: []string{"booking", "reservation", "book a", "book my"}, result: IntentBooking},
}

// Classify returns the menu category of text. First match in table order wins.
func Classify(text string) Category {
	return firstMatch(categoryRules, text, CategoryDefault)
}

// Detect returns the routing intent of text.
func Detect(text string) Intent {
	return firstMatch(intentRules, text, IntentOther)
}

// SuppressesQuickReplies reports whether replies for in already render a
// self-contained card and must not be followed by a menu.
func (in Intent) SuppressesQuickReplies() bool {
	switch in {
	case IntentWeather, IntentItinerary, IntentBooking:
		return true
	}
	return false
}

// FollowUp derives the menu shown after a successful reply to text. It
// returns nil when the detected intent suppresses quick replies.
func FollowUp(text string) []message.QuickReplyOption {
	if Detect(text).SuppressesQuickReplies() {
		return nil
	}
	return Menu(Classify(text))
}
