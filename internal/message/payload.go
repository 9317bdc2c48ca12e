package message

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Payload is the variant data attached to weather, itinerary and options
// messages.
type Payload interface {
	Kind() Type
	Check() error
}

// QuickReplyOption is a pre-labeled button. ID is a routing key whose prefix
// selects the action family (weather-, faq-, ...).
type QuickReplyOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type ForecastDay struct {
	Day         string `json:"day"`
	Temperature string `json:"temperature"`
	Condition   string `json:"condition"`
}

type WeatherData struct {
	Location    string        `json:"location"`
	Temperature string        `json:"temperature"`
	Condition   string        `json:"condition"`
	Humidity    string        `json:"humidity"`
	Forecast    []ForecastDay `json:"forecast,omitempty"`
}

func (*WeatherData) Kind() Type { return TypeWeather }

func (d *WeatherData) Check() error {
	switch {
	case strings.TrimSpace(d.Location) == "":
		return errors.New("weather: empty location")
	case strings.TrimSpace(d.Temperature) == "":
		return errors.New("weather: empty temperature")
	case strings.TrimSpace(d.Condition) == "":
		return errors.New("weather: empty condition")
	}
	return nil
}

type ItineraryStop struct {
	Name  string `json:"name"`
	Days  int    `json:"days"`
	Hotel string `json:"hotel,omitempty"`
}

type ItineraryData struct {
	StartDate    string          `json:"start_date"`
	EndDate      string          `json:"end_date"`
	Destinations []ItineraryStop `json:"destinations"`
}

func (*ItineraryData) Kind() Type { return TypeItinerary }

func (d *ItineraryData) Check() error {
	if len(d.Destinations) == 0 {
		return errors.New("itinerary: no destinations")
	}
	for i, s := range d.Destinations {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("itinerary: destination %d has no name", i)
		}
		if s.Days < 0 {
			return fmt.Errorf("itinerary: destination %q has negative days", s.Name)
		}
	}
	return nil
}

type OptionsData struct {
	Options []QuickReplyOption `json:"options"`
}

func (*OptionsData) Kind() Type { return TypeOptions }

func (d *OptionsData) Check() error {
	if len(d.Options) == 0 {
		return errors.New("options: empty menu")
	}
	for i, o := range d.Options {
		if o.ID == "" || o.Text == "" {
			return fmt.Errorf("options: entry %d needs id and text", i)
		}
	}
	return nil
}

// DecodePayload turns a raw backend payload into the typed payload for typ.
// It fails when typ carries no payload or raw does not describe a
// well-formed one.
func DecodePayload(typ Type, raw json.RawMessage) (Payload, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("%w: %s", ErrMissingData, typ)
	}
	var p Payload
	switch typ {
	case TypeWeather:
		p = &WeatherData{}
	case TypeItinerary:
		p = &ItineraryData{}
	case TypeOptions:
		p = &OptionsData{}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedData, typ)
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedData, err)
	}
	if err := p.Check(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedData, err)
	}
	return p, nil
}

// FromRemote builds a message from backend fields. Unknown types and types
// whose payload is missing or malformed degrade to plain text.
func FromRemote(sender Sender, content, typ string, raw json.RawMessage) Message {
	t := Type(strings.ToLower(strings.TrimSpace(typ)))
	if t.CarriesData() {
		if p, err := DecodePayload(t, raw); err == nil {
			return newMessage(sender, t, content, p)
		}
	}
	return newMessage(sender, TypeText, content, nil)
}
