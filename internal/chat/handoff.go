package chat

import (
	"context"
	"time"

	"github.com/comigor/ethiochat/internal/intent"
	"github.com/comigor/ethiochat/internal/logger"
	"github.com/comigor/ethiochat/internal/message"
)

// InHandoff reports whether the conversation is with the human agent
// persona, including while a reply inside that conversation is pending.
func (c *Controller) InHandoff() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inHandoffLocked()
}

func (c *Controller) inHandoffLocked() bool {
	switch c.stateLocked() {
	case StateHumanHandoffRequested:
		return true
	case StateAwaitingReply:
		return c.resume == StateHumanHandoffRequested
	}
	return false
}

// EndHumanSession hands the conversation back to the assistant.
func (c *Controller) EndHumanSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	switch c.stateLocked() {
	case StateHumanHandoffRequested:
	case StateAwaitingReply:
		return ErrBusy
	default:
		return ErrNotInHandoff
	}
	logger.L.Info("human session ended")
	c.fireLocked(ctx, TriggerEndHandoff)
	return nil
}

func (c *Controller) supportDetails() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.stateLocked() != StateHumanHandoffRequested {
		return false
	}
	c.appendLocked(botText(detailsText))
	c.appendLocked(optionsMessage(menuPrompt, []message.QuickReplyOption{
		{ID: intent.ReplyContinueWithBot, Text: "Continue with bot"},
	}))
	return true
}

// scheduleAgentLocked lets the agent persona join after the handoff delay.
// A newer handoff or leaving the handoff supersedes a pending join.
func (c *Controller) scheduleAgentLocked() {
	c.stopHandoffLocked()
	c.handoffGen++
	gen := c.handoffGen

	c.wg.Add(1)
	t := time.AfterFunc(c.cfg.HandoffDelay, func() {
		defer c.wg.Done()
		c.agentJoined(gen)
	})
	c.handoffStop = func() {
		if t.Stop() {
			c.wg.Done()
		}
	}
}

func (c *Controller) stopHandoffLocked() {
	if c.handoffStop != nil {
		c.handoffStop()
		c.handoffStop = nil
	}
}

func (c *Controller) agentJoined(gen int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.handoffGen {
		return
	}
	c.handoffStop = nil
	if !c.inHandoffLocked() {
		return
	}
	logger.L.Info("agent persona joined", "agent", c.cfg.AgentName)
	c.appendLocked(botText(agentGreeting(c.cfg.AgentName)))
	c.appendLocked(optionsMessage(menuPrompt, intent.HandoffMenu()))
}
