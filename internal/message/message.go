package message

import (
	"errors"
	"fmt"
	"time"

	"github.com/comigor/ethiochat/internal/ident"
)

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderBot    Sender = "bot"
	SenderSystem Sender = "system"
)

// Type selects how a message is rendered and which payload it carries.
type Type string

const (
	TypeText      Type = "text"
	TypeWeather   Type = "weather"
	TypeItinerary Type = "itinerary"
	TypeOptions   Type = "options"
	TypeLoading   Type = "loading"
)

// CarriesData reports whether messages of type t must have a payload.
func (t Type) CarriesData() bool {
	switch t {
	case TypeWeather, TypeItinerary, TypeOptions:
		return true
	}
	return false
}

var (
	ErrUnknownType    = errors.New("unknown message type")
	ErrUnknownSender  = errors.New("unknown message sender")
	ErrMissingData    = errors.New("message type requires a payload")
	ErrUnexpectedData = errors.New("message type does not carry a payload")
	ErrMalformedData  = errors.New("message payload is malformed")
)

// Message is a single entry of the conversation log.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	Type      Type      `json:"type"`
	Data      Payload   `json:"data,omitempty"`
}

// Validate checks that Data is present and well-formed exactly when Type
// carries a payload.
func (m Message) Validate() error {
	switch m.Sender {
	case SenderUser, SenderBot, SenderSystem:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSender, m.Sender)
	}
	switch m.Type {
	case TypeText, TypeLoading, TypeWeather, TypeItinerary, TypeOptions:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, m.Type)
	}
	if !m.Type.CarriesData() {
		if m.Data != nil {
			return fmt.Errorf("%w: %s", ErrUnexpectedData, m.Type)
		}
		return nil
	}
	if m.Data == nil {
		return fmt.Errorf("%w: %s", ErrMissingData, m.Type)
	}
	if m.Data.Kind() != m.Type {
		return fmt.Errorf("%w: %s message with %s payload", ErrMalformedData, m.Type, m.Data.Kind())
	}
	if err := m.Data.Check(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedData, err)
	}
	return nil
}

func newMessage(sender Sender, typ Type, content string, data Payload) Message {
	return Message{
		ID:        ident.New(),
		Content:   content,
		Sender:    sender,
		Timestamp: time.Now(),
		Type:      typ,
		Data:      data,
	}
}

// Text builds a plain text message.
func Text(sender Sender, content string) Message {
	return newMessage(sender, TypeText, content, nil)
}

// Loading builds a transient placeholder shown while a card is produced.
func Loading(content string) Message {
	return newMessage(SenderBot, TypeLoading, content, nil)
}

// Weather builds a weather card.
func Weather(d WeatherData) Message {
	return newMessage(SenderBot, TypeWeather, "Weather in "+d.Location, &d)
}

// Itinerary builds an itinerary card.
func Itinerary(content string, d ItineraryData) Message {
	if content == "" {
		content = "Your current itinerary"
	}
	return newMessage(SenderBot, TypeItinerary, content, &d)
}

// Options builds a quick-reply menu. An empty option list yields a text
// message so the payload invariant holds.
func Options(content string, opts []QuickReplyOption) Message {
	if content == "" {
		content = "Options"
	}
	if len(opts) == 0 {
		return Text(SenderBot, content)
	}
	cp := make([]QuickReplyOption, len(opts))
	copy(cp, opts)
	return newMessage(SenderBot, TypeOptions, content, &OptionsData{Options: cp})
}
