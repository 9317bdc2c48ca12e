package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/comigor/ethiochat/internal/api"
)

var (
	// ErrBusy is returned while a reply is pending; the input is disabled.
	ErrBusy         = errors.New("chat: a reply is still pending")
	ErrEmptyMessage = errors.New("chat: message is empty")
	ErrNotInHandoff = errors.New("chat: no human session to end")
	ErrClosed       = errors.New("chat: controller closed")
)

// Failure is the class of a failed send. Every class is recovered locally
// and surfaces as one chat message.
type Failure int

const (
	NoFailure Failure = iota
	NoCredential
	SessionInvalid
	AuthExpired
	ServerError
	NetworkFailure
)

func (f Failure) String() string {
	switch f {
	case NoFailure:
		return "none"
	case NoCredential:
		return "no_credential"
	case SessionInvalid:
		return "session_invalid"
	case AuthExpired:
		return "auth_expired"
	case ServerError:
		return "server_error"
	case NetworkFailure:
		return "network_failure"
	}
	return "unknown"
}

// Classify maps a backend error onto the failure taxonomy. A reply timeout
// is a network failure.
func Classify(err error) Failure {
	switch {
	case err == nil:
		return NoFailure
	case api.IsAuthExpired(err):
		return AuthExpired
	case api.IsSessionInvalid(err):
		return SessionInvalid
	case api.IsNetwork(err), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return NetworkFailure
	}
	return ServerError
}

const (
	guestWelcomeText = "**Welcome to EthioTravel Assistant!**\n\nPlease log in to access personalized travel assistance."
	authPromptText   = "**Please Log In**\n\nLog in to continue using the chatbot."
	sessionExpired   = "**Session Expired**\n\nYour session has expired. Please log in again."
	networkErrorText = "**Connection Issue**\n\nNetwork error. Please check your connection and try again."
	highDemandText   = "**High Demand**\n\nWe're experiencing high demand. Please try again in a moment."
	messageIssueText = "**Message Issue**\n\nThere was an issue with your message. Please try rephrasing."
	serverErrorTitle = "**Server Error**\n\n"
	serverErrorText  = "The server could not process your message. Please try again later."

	connectingText = "Connecting you to a human agent. Please wait a moment..."
	continueText   = "**Let's continue!**\n\nHow can I assist you with your Ethiopian adventure?"
	detailsText    = "**Support Details**\n\nPlease provide details for our support team (e.g., your query or contact info), and we'll follow up soon."
	locationPrompt = "Which location would you like to check the weather for?"
	emptyReplyText = "I'm not sure how to answer that yet. Could you rephrase?"

	menuPrompt   = "How else can I help?"
	authMenuTo   = "Choose an option:"
	pickLocation = "Pick a location:"
)

func welcomeText(name string) string {
	if name == "" {
		return "**Welcome!**\n\nHow can I help you plan your Ethiopian adventure today?"
	}
	return "**Welcome, " + name + "!**\n\nHow can I help you plan your Ethiopian adventure today?"
}

func agentGreeting(name string) string {
	return "Hi there! I'm " + name + " from the EthioTravel support team. How can I assist you today?"
}

// serverErrorMessage renders a non-2xx answer. Known backend texts get a
// friendlier wording.
func serverErrorMessage(err error) string {
	var se *api.StatusError
	if !errors.As(err, &se) || strings.TrimSpace(se.Message) == "" {
		return serverErrorTitle + serverErrorText
	}
	switch {
	case strings.Contains(se.Message, "Rate limit exceeded"):
		return highDemandText
	case strings.Contains(se.Message, "Invalid request data"):
		return messageIssueText
	}
	return serverErrorTitle + se.Message
}
