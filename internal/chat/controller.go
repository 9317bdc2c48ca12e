// Package chat implements the session controller behind the travel
// assistant widget: the conversation state machine, the message log, quick
// replies, the weather and FAQ shortcuts, the simulated human handoff and
// recovery from every backend failure.
package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/qmuntal/stateless"

	"github.com/comigor/ethiochat/internal/api"
	"github.com/comigor/ethiochat/internal/auth"
	"github.com/comigor/ethiochat/internal/config"
	"github.com/comigor/ethiochat/internal/intent"
	"github.com/comigor/ethiochat/internal/logger"
	"github.com/comigor/ethiochat/internal/message"
	"github.com/comigor/ethiochat/internal/session"
	"github.com/comigor/ethiochat/internal/weather"
)

const (
	defaultReplyTimeout = 45 * time.Second
	defaultRevealDelay  = 50 * time.Millisecond
	defaultHandoffDelay = 3 * time.Second
	defaultAgentName    = "Abebe"
	defaultNearBottomPx = 100
)

// Deps are the collaborators of a Controller.
type Deps struct {
	Conversation api.Conversation
	Credentials  auth.Source
	Sessions     *session.Manager
	Weather      weather.Provider
}

// Controller owns the conversation of one widget. It is safe for concurrent
// use; at most one request to the backend is in flight at a time.
type Controller struct {
	conv     api.Conversation
	creds    auth.Source
	sessions *session.Manager
	weather  weather.Provider
	cfg      config.ChatConfig

	mu          sync.Mutex
	fsm         *stateless.StateMachine
	messages    []message.Message
	typing      bool
	loading     bool
	open        bool
	navigation  string
	initialized bool
	closed      bool
	// resume is where AwaitingReply returns to: Idle or the handoff.
	resume State

	viewport  *Viewport
	scrollSeq uint64
	version   uint64

	subs    map[int]chan Snapshot
	nextSub int

	reveals     map[string]*revealJob
	handoffGen  int
	handoffStop func()

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func withDefaults(cfg config.ChatConfig) config.ChatConfig {
	if cfg.ReplyTimeout <= 0 {
		cfg.ReplyTimeout = defaultReplyTimeout
	}
	if cfg.RevealDelay <= 0 {
		cfg.RevealDelay = defaultRevealDelay
	}
	if cfg.HandoffDelay <= 0 {
		cfg.HandoffDelay = defaultHandoffDelay
	}
	if cfg.AgentName == "" {
		cfg.AgentName = defaultAgentName
	}
	if cfg.NearBottomPx <= 0 {
		cfg.NearBottomPx = defaultNearBottomPx
	}
	return cfg
}

// New creates a controller in the Unauthenticated state. Call Init before
// showing it.
func New(deps Deps, cfg config.ChatConfig) *Controller {
	cfg = withDefaults(cfg)
	if deps.Weather == nil {
		deps.Weather = weather.NewStatic(0)
	}
	if deps.Credentials == nil {
		deps.Credentials = auth.Chain{}
	}
	base, cancel := context.WithCancel(context.Background())
	c := &Controller{
		conv:     deps.Conversation,
		creds:    deps.Credentials,
		sessions: deps.Sessions,
		weather:  deps.Weather,
		cfg:      cfg,
		open:     true,
		resume:   StateIdle,
		viewport: NewViewport(cfg.NearBottomPx),
		subs:     make(map[int]chan Snapshot),
		reveals:  make(map[string]*revealJob),
		base:     base,
		cancel:   cancel,
	}
	c.fsm = c.newMachine()
	return c
}

// Init checks for a credential. Without one the widget greets the guest and
// offers to log in; no request is made. With one it restores the stored
// session's history, or reveals a welcome when there is nothing to restore.
// Init only runs once.
func (c *Controller) Init(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.initialized {
		c.mu.Unlock()
		return nil
	}
	c.initialized = true

	cred, ok := c.creds.Credential(ctx)
	if !ok {
		logger.L.Info("no credential; greeting guest")
		c.appendLocked(botText(guestWelcomeText))
		c.appendLocked(optionsMessage(authMenuTo, intent.AuthMenu()))
		c.mu.Unlock()
		return nil
	}
	c.fireLocked(ctx, TriggerAuthenticated)
	stored, hasStored := c.sessions.Stored(ctx)
	c.loading = hasStored
	c.notifyLocked()
	c.mu.Unlock()

	var restored []message.Message
	if hasStored {
		restored = c.loadHistory(ctx, stored, cred.Token)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	if c.closed {
		return nil
	}
	for _, m := range restored {
		c.appendLocked(m)
	}
	if len(c.messages) == 0 {
		c.revealLocked(botText(welcomeText(cred.UserName)))
		c.appendLocked(optionsMessage(menuPrompt, defaultMenu()))
	}
	c.notifyLocked()
	return nil
}

func (c *Controller) loadHistory(ctx context.Context, sessionID, token string) []message.Message {
	hctx, cancel := context.WithTimeout(ctx, c.cfg.ReplyTimeout)
	defer cancel()

	resp, err := c.conv.History(hctx, sessionID, token)
	switch {
	case api.IsSessionGone(err), api.IsSessionInvalid(err):
		fresh := c.sessions.Replace(ctx)
		logger.L.Info("stored session is gone; starting fresh", "old_session_id", sessionID, "session_id", fresh, "error", err)
		return nil
	case err != nil:
		logger.L.Warn("loading conversation history failed", "session_id", sessionID, "error", err)
		return nil
	}
	c.sessions.Adopt(ctx, resp.SessionID)

	out := make([]message.Message, 0, len(resp.Messages))
	for _, h := range resp.Messages {
		m := message.FromRemote(senderOf(h.Sender), h.Content, h.Type, h.Data)
		if h.ID != "" {
			m.ID = string(h.ID)
		}
		if ts, err := time.Parse(time.RFC3339, h.CreatedAt); err == nil {
			m.Timestamp = ts
		}
		out = append(out, m)
	}
	logger.L.Info("restored conversation history", "session_id", sessionID, "messages", len(out))
	return out
}

func senderOf(s string) message.Sender {
	switch strings.ToLower(s) {
	case "user":
		return message.SenderUser
	case "system":
		return message.SenderSystem
	}
	return message.SenderBot
}

// SendOption tweaks a single Send.
type SendOption func(*sendRequest)

// Silently sends text without echoing it into the log.
func Silently() SendOption {
	return func(r *sendRequest) { r.showInUI = false }
}

type sendRequest struct {
	text     string
	showInUI bool
	faqTopic string
	handoff  bool
}

// Send posts text as the user. It returns ErrBusy while a reply is pending
// and ErrEmptyMessage for blank text; every backend failure is turned into a
// chat message instead of an error. Send blocks until the reply has been
// applied.
func (c *Controller) Send(ctx context.Context, text string, opts ...SendOption) error {
	req := sendRequest{text: text, showInUI: true}
	for _, o := range opts {
		o(&req)
	}
	return c.send(ctx, req)
}

func (c *Controller) send(ctx context.Context, req sendRequest) error {
	text := strings.TrimSpace(req.text)
	if text == "" {
		return ErrEmptyMessage
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.loading || c.stateLocked() == StateAwaitingReply {
		c.mu.Unlock()
		logger.L.Debug("send rejected; reply pending", "text", text)
		return ErrBusy
	}
	if c.stateLocked() == StateUnauthenticated {
		if _, ok := c.creds.Credential(ctx); !ok {
			c.promptLoginLocked(authPromptText)
			c.mu.Unlock()
			return nil
		}
		c.fireLocked(ctx, TriggerAuthenticated)
	}
	if req.showInUI {
		c.appendLocked(message.Text(message.SenderUser, text))
	}
	c.resume = c.stateLocked()
	c.fireLocked(ctx, TriggerSend)
	c.mu.Unlock()

	sessionID, _ := c.sessions.Resolve(ctx)
	cred, ok := c.creds.Credential(ctx)
	if !ok {
		logger.L.Info("credential vanished before send", "session_id", sessionID)
		c.mu.Lock()
		defer c.mu.Unlock()
		c.fireLocked(ctx, TriggerAuthFailed)
		c.promptLoginLocked(authPromptText)
		return nil
	}

	rctx, cancel := context.WithTimeout(ctx, c.cfg.ReplyTimeout)
	defer cancel()
	out := c.dispatch(rctx, req, text, sessionID, cred)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.applyLocked(ctx, out)
	return nil
}

// outcome is everything a dispatched send changes, applied in one go.
type outcome struct {
	trigger  Trigger
	reply    *message.Message
	reveal   bool
	replace  string
	messages []message.Message
}

func (c *Controller) dispatch(ctx context.Context, req sendRequest, text, sessionID string, cred auth.Credential) outcome {
	detected := intent.Detect(text)
	switch {
	case req.handoff || detected == intent.IntentHuman:
		logger.L.Info("human handoff requested", "session_id", sessionID)
		return outcome{trigger: TriggerHandoff}
	case req.faqTopic != "":
		answer, _ := intent.FAQAnswer(req.faqTopic)
		return outcome{trigger: TriggerReplied, messages: []message.Message{
			botText(answer),
			optionsMessage(menuPrompt, intent.Menu(intent.Classify(text))),
		}}
	case detected == intent.IntentWeather:
		return c.weatherOutcome(ctx, text)
	}
	return c.backendOutcome(ctx, text, sessionID, cred)
}

func (c *Controller) weatherOutcome(ctx context.Context, text string) outcome {
	place, ok := weather.ExtractLocation(text)
	if !ok {
		return outcome{trigger: TriggerReplied, messages: []message.Message{
			botText(locationPrompt),
			optionsMessage(pickLocation, intent.LocationMenu(weather.Locations())),
		}}
	}

	placeholder := message.Loading("Checking the weather in " + place + "...")
	c.mu.Lock()
	c.appendLocked(placeholder)
	c.mu.Unlock()

	data, err := c.weather.Lookup(ctx, place)
	if err != nil {
		logger.L.Warn("weather lookup failed", "location", place, "error", err)
		return outcome{trigger: TriggerReplied, replace: placeholder.ID, messages: []message.Message{
			systemText(networkErrorText),
			optionsMessage(menuPrompt, defaultMenu()),
		}}
	}
	return outcome{trigger: TriggerReplied, replace: placeholder.ID, messages: []message.Message{message.Weather(data)}}
}

func (c *Controller) backendOutcome(ctx context.Context, text, sessionID string, cred auth.Credential) outcome {
	req := api.SendRequest{Message: text, SessionID: sessionID, Token: cred.Token}
	resp, err := c.conv.Send(ctx, req)
	if Classify(err) == SessionInvalid {
		req.SessionID = c.sessions.Replace(ctx)
		logger.L.Info("backend rejected session; retrying once", "old_session_id", sessionID, "session_id", req.SessionID, "error", err)
		resp, err = c.conv.Send(ctx, req)
	}

	switch Classify(err) {
	case NoFailure:
	case AuthExpired:
		logger.L.Info("credential rejected by backend", "session_id", req.SessionID, "error", err)
		return outcome{trigger: TriggerAuthFailed, messages: []message.Message{
			systemText(sessionExpired),
			optionsMessage(authMenuTo, intent.AuthMenu()),
		}}
	case NetworkFailure:
		logger.L.Warn("send failed: network", "session_id", req.SessionID, "error", err)
		return outcome{trigger: TriggerReplied, messages: []message.Message{
			systemText(networkErrorText),
			optionsMessage(menuPrompt, defaultMenu()),
		}}
	default:
		logger.L.Warn("send failed: server", "session_id", req.SessionID, "error", err)
		return outcome{trigger: TriggerReplied, messages: []message.Message{
			systemText(serverErrorMessage(err)),
			optionsMessage(menuPrompt, defaultMenu()),
		}}
	}

	c.sessions.Adopt(ctx, resp.SessionID)

	content := resp.Response.Content
	if strings.TrimSpace(content) == "" {
		content = emptyReplyText
	}
	reply := message.FromRemote(message.SenderBot, content, resp.Response.Type, resp.Response.Data)
	if ts, err := time.Parse(time.RFC3339, resp.Response.Timestamp); err == nil {
		reply.Timestamp = ts
	}

	out := outcome{trigger: TriggerReplied, reply: &reply, reveal: c.cfg.RevealReplies && reply.Type == message.TypeText}
	if reply.Type != message.TypeText {
		return out
	}
	opts := intent.FollowUp(text)
	if len(opts) == 0 {
		return out
	}
	if suggested := intent.SuggestionMenu(resp.Response.Suggestions); len(suggested) > 0 {
		opts = suggested
	}
	out.messages = []message.Message{optionsMessage(menuPrompt, opts)}
	return out
}

func (c *Controller) applyLocked(ctx context.Context, out outcome) {
	c.fireLocked(ctx, out.trigger)

	msgs := out.messages
	if out.replace != "" {
		if len(msgs) > 0 && c.replaceLocked(out.replace, msgs[0]) {
			msgs = msgs[1:]
		} else {
			c.removeLocked(out.replace)
		}
	}
	if out.reply != nil {
		if out.reveal {
			c.revealLocked(*out.reply)
		} else {
			c.appendLocked(*out.reply)
		}
	}
	for _, m := range msgs {
		c.appendLocked(m)
	}
}

// Action is what the view must do after a quick reply.
type Action struct {
	Kind   ActionKind `json:"kind"`
	Target string     `json:"target,omitempty"`
}

type ActionKind string

const (
	ActionNone     ActionKind = "none"
	ActionNavigate ActionKind = "navigate"
	ActionClose    ActionKind = "close"
)

// ClickQuickReply routes a quick reply by id. Login, signup and continue
// browsing never reach the network; unknown ids send their label.
func (c *Controller) ClickQuickReply(ctx context.Context, id, text string) (Action, error) {
	none := Action{Kind: ActionNone}
	switch id {
	case intent.ReplyLogin:
		return c.navigate("/login"), nil
	case intent.ReplySignup:
		return c.navigate("/signup"), nil
	case intent.ReplyContinueBrowsing:
		c.SetOpen(false)
		return Action{Kind: ActionClose}, nil
	case intent.ReplyContinueWithBot, intent.ReplyEndHuman:
		if c.InHandoff() {
			return none, c.EndHumanSession(ctx)
		}
	case intent.ReplyDetails:
		if c.supportDetails() {
			return none, nil
		}
	case intent.ReplyHuman, intent.ReplyHumanAgent, intent.ReplyEmergencyYes:
		if text == "" {
			text = "Speak to a human"
		}
		return none, c.send(ctx, sendRequest{text: text, showInUI: true, handoff: true})
	}
	if topic, ok := intent.FAQTopic(id); ok {
		if text == "" {
			text = topic
		}
		return none, c.send(ctx, sendRequest{text: text, showInUI: true, faqTopic: topic})
	}
	if text == "" {
		text = id
	}
	return none, c.send(ctx, sendRequest{text: text, showInUI: true})
}

func (c *Controller) navigate(target string) Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.navigation = target
	c.notifyLocked()
	return Action{Kind: ActionNavigate, Target: target}
}

// SetOpen shows or hides the widget.
func (c *Controller) SetOpen(open bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open == open {
		return
	}
	c.open = open
	if open {
		c.navigation = ""
		c.viewport.ScrolledToBottom()
		c.scrollSeq++
	}
	c.notifyLocked()
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// ReportScroll feeds a scroll position from the view.
func (c *Controller) ReportScroll(scrollTop, scrollHeight, clientHeight float64, userInitiated bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	before := c.viewport.NewMessages()
	c.viewport.Report(scrollTop, scrollHeight, clientHeight, userInitiated)
	if before != c.viewport.NewMessages() {
		c.notifyLocked()
	}
}

// ScrolledToBottom clears the "new messages" affordance after the user
// followed it.
func (c *Controller) ScrolledToBottom() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.viewport.ScrolledToBottom()
	c.scrollSeq++
	c.notifyLocked()
}

// Snapshot returns a copy of the view state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe returns a channel that always holds the newest snapshot, and a
// function to unsubscribe. The channel is closed on unsubscribe or Close.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.snapshotLocked()
	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if s, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(s)
		}
	}
}

// Close stops pending reveals and the handoff timer and waits for them.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.cancel()
	c.stopHandoffLocked()
	c.mu.Unlock()

	c.wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	return nil
}

func (c *Controller) promptLoginLocked(text string) {
	c.appendLocked(systemText(text))
	c.appendLocked(optionsMessage(authMenuTo, intent.AuthMenu()))
}

func (c *Controller) indexLocked(id string) int {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Controller) appendLocked(m message.Message) {
	if err := m.Validate(); err != nil {
		logger.L.Error("dropping invalid message", "id", m.ID, "type", m.Type, "error", err)
		return
	}
	c.messages = append(c.messages, m)
	if c.viewport.Observe(m.Sender == message.SenderUser) {
		c.scrollSeq++
	}
	c.notifyLocked()
}

// replaceLocked swaps the message with id for m, keeping its position.
func (c *Controller) replaceLocked(id string, m message.Message) bool {
	i := c.indexLocked(id)
	if i < 0 || m.Validate() != nil {
		return false
	}
	c.messages[i] = m
	c.notifyLocked()
	return true
}

func (c *Controller) removeLocked(id string) {
	if i := c.indexLocked(id); i >= 0 {
		c.messages = append(c.messages[:i], c.messages[i+1:]...)
		c.notifyLocked()
	}
}

func botText(content string) message.Message {
	return message.Text(message.SenderBot, content)
}

func systemText(content string) message.Message {
	return message.Text(message.SenderSystem, content)
}

func optionsMessage(content string, opts []message.QuickReplyOption) message.Message {
	return message.Options(content, opts)
}

func defaultMenu() []message.QuickReplyOption {
	return intent.Menu(intent.CategoryDefault)
}
