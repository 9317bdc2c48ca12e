// Package weather resolves place names to weather snapshots for the chat
// weather card.
package weather

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/comigor/ethiochat/internal/message"
)

// DefaultLocation names the aggregate entry returned for unknown places.
const DefaultLocation = "Ethiopia"

var ErrEmptyLocation = errors.New("weather: empty location")

// Provider looks up the weather for a place name.
type Provider interface {
	Lookup(ctx context.Context, location string) (message.WeatherData, error)
}

var fixtures = []message.WeatherData{
	{Location: "Addis Ababa", Temperature: "22°C", Condition: "Sunny", Humidity: "45%", Forecast: []message.ForecastDay{
		{Day: "Tomorrow", Temperature: "23°C", Condition: "Partly cloudy"},
		{Day: "Day after", Temperature: "21°C", Condition: "Light rain"},
	}},
	{Location: "Lalibela", Temperature: "24°C", Condition: "Clear", Humidity: "30%", Forecast: []message.ForecastDay{
		{Day: "Tomorrow", Temperature: "25°C", Condition: "Clear"},
		{Day: "Day after", Temperature: "23°C", Condition: "Sunny"},
	}},
	{Location: "Gondar", Temperature: "26°C", Condition: "Partly cloudy", Humidity: "40%", Forecast: []message.ForecastDay{
		{Day: "Tomorrow", Temperature: "27°C", Condition: "Sunny"},
		{Day: "Day after", Temperature: "25°C", Condition: "Partly cloudy"},
	}},
	{Location: "Axum", Temperature: "28°C", Condition: "Sunny", Humidity: "25%"},
	{Location: "Harar", Temperature: "25°C", Condition: "Clear", Humidity: "35%"},
	{Location: "Bahir Dar", Temperature: "27°C", Condition: "Partly cloudy", Humidity: "50%"},
	{Location: "Danakil Depression", Temperature: "38°C", Condition: "Hot", Humidity: "15%"},
	{Location: "Simien Mountains", Temperature: "15°C", Condition: "Cloudy", Humidity: "60%"},
}

var fallback = message.WeatherData{
	Location: DefaultLocation, Temperature: "23°C", Condition: "Mostly sunny", Humidity: "40%",
	Forecast: []message.ForecastDay{
		{Day: "Tomorrow", Temperature: "24°C", Condition: "Sunny"},
		{Day: "Day after", Temperature: "22°C", Condition: "Scattered showers"},
	},
}

// aliases maps shorter spellings people type to fixture names.
var aliases = map[string]string{
	"addis":    "Addis Ababa",
	"aksum":    "Axum",
	"bahirdar": "Bahir Dar",
	"danakil":  "Danakil Depression",
	"simien":   "Simien Mountains",
	"semien":   "Simien Mountains",
}

func key(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Locations lists the known place names in display order.
func Locations() []string {
	out := make([]string, len(fixtures))
	for i, f := range fixtures {
		out[i] = f.Location
	}
	return out
}

// Static serves the fixture table after an optional simulated delay.
type Static struct {
	Delay time.Duration
	index map[string]message.WeatherData
}

func NewStatic(delay time.Duration) *Static {
	idx := make(map[string]message.WeatherData, len(fixtures)+len(aliases))
	for _, f := range fixtures {
		idx[key(f.Location)] = f
	}
	for alias, name := range aliases {
		idx[alias] = idx[key(name)]
	}
	return &Static{Delay: delay, index: idx}
}

// Lookup returns the fixture for location, or the Ethiopia aggregate when the
// place is unknown. Only an empty location is an error.
func (s *Static) Lookup(ctx context.Context, location string) (message.WeatherData, error) {
	k := key(location)
	if k == "" {
		return message.WeatherData{}, ErrEmptyLocation
	}
	if s.Delay > 0 {
		t := time.NewTimer(s.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return message.WeatherData{}, ctx.Err()
		case <-t.C:
		}
	}
	d, ok := s.index[k]
	if !ok {
		d = fallback
	}
	return clone(d), nil
}

func clone(d message.WeatherData) message.WeatherData {
	if d.Forecast != nil {
		d.Forecast = append([]message.ForecastDay(nil), d.Forecast...)
	}
	return d
}

var placeAfterIn = regexp.MustCompile(`(?i)\b(?:in|at|for)\s+([\p{L}][\p{L}\s'-]*)`)

// ExtractLocation finds the place a weather request is about. Known names
// win; otherwise the words after "in", "at" or "for" are used.
func ExtractLocation(text string) (string, bool) {
	lower := key(text)
	for _, f := range fixtures {
		if strings.Contains(lower, key(f.Location)) {
			return f.Location, true
		}
	}
	for alias, name := range aliases {
		if strings.Contains(lower, alias) {
			return name, true
		}
	}
	m := placeAfterIn.FindAllStringSubmatch(text, -1)
	if len(m) == 0 {
		return "", false
	}
	words := strings.Fields(strings.ToLower(m[len(m)-1][1]))
	for len(words) > 0 && timeWords[words[len(words)-1]] {
		words = words[:len(words)-1]
	}
	if len(words) == 0 || words[0] == "the" {
		return "", false
	}
	return strings.Join(words, " "), true
}

var timeWords = map[string]bool{"today": true, "tomorrow": true, "now": true, "tonight": true, "week": true, "this": true, "like": true}
