package chat

import (
	"github.com/comigor/ethiochat/internal/markup"
	"github.com/comigor/ethiochat/internal/message"
)

// View is a message as the view renders it.
type View struct {
	message.Message
	Spans []markup.Span `json:"spans"`
	// HTML is Spans rendered for web clients, with every text node escaped.
	HTML      string `json:"html"`
	Revealing bool   `json:"revealing,omitempty"`
}

// Snapshot is the whole view state at one point in time.
type Snapshot struct {
	Version       uint64 `json:"version"`
	State         State  `json:"state"`
	Messages      []View `json:"messages"`
	Typing        bool   `json:"typing"`
	InputDisabled bool   `json:"input_disabled"`
	Open          bool   `json:"open"`
	SessionID     string `json:"session_id,omitempty"`
	Navigation    string `json:"navigation,omitempty"`
	NewMessages   bool   `json:"new_messages"`
	// ScrollSeq grows every time a new message should scroll the view to
	// the bottom.
	ScrollSeq uint64 `json:"scroll_seq"`
}

// Last returns the newest message, if any.
func (s Snapshot) Last() (View, bool) {
	if len(s.Messages) == 0 {
		return View{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

func (c *Controller) snapshotLocked() Snapshot {
	views := make([]View, len(c.messages))
	for i, m := range c.messages {
		_, revealing := c.reveals[m.ID]
		spans := markup.Parse(m.Content)
		views[i] = View{Message: m, Spans: spans, HTML: markup.HTML(spans), Revealing: revealing}
	}
	return Snapshot{
		Version:       c.version,
		State:         c.stateLocked(),
		Messages:      views,
		Typing:        c.typing,
		InputDisabled: c.typing || c.loading || c.closed,
		Open:          c.open,
		SessionID:     c.sessions.Current(),
		Navigation:    c.navigation,
		NewMessages:   c.viewport.NewMessages(),
		ScrollSeq:     c.scrollSeq,
	}
}

// notifyLocked publishes the latest snapshot to every subscriber. Slow
// subscribers only ever see the newest state.
func (c *Controller) notifyLocked() {
	c.version++
	if len(c.subs) == 0 {
		return
	}
	s := c.snapshotLocked()
	for _, ch := range c.subs {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- s
		}
	}
}
