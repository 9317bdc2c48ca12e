package chat

import (
	"context"

	"github.com/qmuntal/stateless"

	"github.com/comigor/ethiochat/internal/logger"
	"github.com/comigor/ethiochat/internal/message"
)

// State is the conversation state of the widget.
type State string

const (
	StateUnauthenticated       State = "Unauthenticated"
	StateIdle                  State = "Idle"
	StateAwaitingReply         State = "AwaitingReply"
	StateHumanHandoffRequested State = "HumanHandoffRequested"
)

// Trigger moves the controller between states.
type Trigger string

const (
	TriggerAuthenticated Trigger = "Authenticated"
	TriggerSend          Trigger = "Send"
	TriggerReplied       Trigger = "Replied"
	TriggerAuthFailed    Trigger = "AuthFailed"
	TriggerHandoff       Trigger = "Handoff"
	TriggerEndHandoff    Trigger = "EndHandoff"
)

// newMachine wires the transition table. Every action runs while c.mu is
// held by the caller of fireLocked.
func (c *Controller) newMachine() *stateless.StateMachine {
	fsm := stateless.NewStateMachine(StateUnauthenticated)

	// Unauthenticated: nothing may be sent until a credential shows up.
	fsm.Configure(StateUnauthenticated).
		Permit(TriggerAuthenticated, StateIdle).
		OnEntry(func(ctx context.Context, args ...any) error {
			c.stopHandoffLocked()
			return nil
		})

	fsm.Configure(StateIdle).
		Permit(TriggerSend, StateAwaitingReply).
		Permit(TriggerHandoff, StateHumanHandoffRequested).
		Ignore(TriggerAuthenticated).
		OnEntryFrom(TriggerEndHandoff, func(ctx context.Context, args ...any) error {
			c.stopHandoffLocked()
			c.appendLocked(botText(continueText))
			c.appendLocked(optionsMessage(menuPrompt, defaultMenu()))
			return nil
		})

	// AwaitingReply: single flight. The typing indicator is on exactly while
	// the machine is here.
	fsm.Configure(StateAwaitingReply).
		PermitDynamic(TriggerReplied, func(ctx context.Context, args ...any) (stateless.State, error) {
			return c.resume, nil
		}).
		Permit(TriggerAuthFailed, StateUnauthenticated).
		Permit(TriggerHandoff, StateHumanHandoffRequested).
		OnEntry(func(ctx context.Context, args ...any) error {
			c.typing = true
			return nil
		}).
		OnExit(func(ctx context.Context, args ...any) error {
			c.typing = false
			return nil
		})

	fsm.Configure(StateHumanHandoffRequested).
		Permit(TriggerSend, StateAwaitingReply).
		Permit(TriggerEndHandoff, StateIdle).
		OnEntryFrom(TriggerHandoff, func(ctx context.Context, args ...any) error {
			c.appendLocked(message.Text(message.SenderSystem, connectingText))
			c.scheduleAgentLocked()
			return nil
		})

	return fsm
}

func (c *Controller) stateLocked() State {
	return c.fsm.MustState().(State)
}

// fireLocked fires t and logs transitions the table does not allow; callers
// check the state first, so a failure here is a programming error.
func (c *Controller) fireLocked(ctx context.Context, t Trigger) {
	from := c.stateLocked()
	if err := c.fsm.FireCtx(context.WithoutCancel(ctx), t); err != nil {
		logger.L.Error("chat transition rejected", "trigger", t, "state", from, "error", err)
		return
	}
	logger.L.Debug("chat transition", "trigger", t, "from", from, "to", c.stateLocked())
	c.notifyLocked()
}
