package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/comigor/ethiochat/internal/auth"
	"github.com/comigor/ethiochat/internal/chat"
	"github.com/comigor/ethiochat/internal/config"
	"github.com/comigor/ethiochat/internal/logger"
	"github.com/comigor/ethiochat/internal/markup"
	"github.com/comigor/ethiochat/internal/message"
	"github.com/comigor/ethiochat/internal/storage"
)

const replHelp = `Type a message and press enter. Commands:
  /N            pick quick reply N
  /end          leave the human agent session
  /token T [N]  log in with access token T and display name N
  /logout       forget the stored token
  /quit         exit`

func repl(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.L.Warn("shutdown cleanup failed", "error", err)
		}
	}()

	term := newTerminal(a.ctrl, a.store, a.profile, out)
	snapshots, unsubscribe := a.ctrl.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for s := range snapshots {
			term.show(s)
		}
	}()
	defer func() {
		unsubscribe()
		<-done
	}()

	term.println(replHelp)
	if err := a.ctrl.Init(ctx); err != nil {
		return err
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := term.handle(ctx, line)
			if err != nil {
				term.println("! " + err.Error())
			}
			if quit {
				return nil
			}
		}
	}
}

// terminal renders snapshots as a scrolling transcript and turns typed lines
// into controller calls.
type terminal struct {
	ctrl    *chat.Controller
	store   storage.Store
	profile *auth.Profile
	out     io.Writer

	mu      sync.Mutex
	printed    map[string]string
	options    []message.QuickReplyOption
	navigation string
}

func newTerminal(ctrl *chat.Controller, store storage.Store, profile *auth.Profile, out io.Writer) *terminal {
	return &terminal{ctrl: ctrl, store: store, profile: profile, out: out, printed: make(map[string]string)}
}

// show prints every settled message not printed yet. Messages still being
// revealed and loading placeholders wait for their final form.
func (t *terminal) show(s chat.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, v := range s.Messages {
		if v.Revealing || v.Type == message.TypeLoading {
			continue
		}
		if prev, ok := t.printed[v.ID]; ok && prev == v.Content {
			continue
		}
		t.printed[v.ID] = v.Content
		fmt.Fprint(t.out, render(v))
		if opts, ok := v.Data.(*message.OptionsData); ok {
			t.options = opts.Options
		}
	}
	if s.Navigation != "" && s.Navigation != t.navigation {
		fmt.Fprintf(t.out, "-> open %s to continue\n", s.Navigation)
	}
	t.navigation = s.Navigation
}

func render(v chat.View) string {
	var b strings.Builder
	prefix := map[message.Sender]string{
		message.SenderUser:   "you",
		message.SenderBot:    "bot",
		message.SenderSystem: "***",
	}[v.Sender]
	if text := strings.TrimRight(markup.PlainText(v.Spans), "\n"); text != "" {
		for _, line := range strings.Split(text, "\n") {
			fmt.Fprintf(&b, "%s> %s\n", prefix, line)
		}
	}
	switch d := v.Data.(type) {
	case *message.OptionsData:
		for i, o := range d.Options {
			fmt.Fprintf(&b, "    [%d] %s\n", i+1, o.Text)
		}
	case *message.WeatherData:
		fmt.Fprintf(&b, "    %s: %s, %s, humidity %s\n", d.Location, d.Temperature, d.Condition, d.Humidity)
		for _, f := range d.Forecast {
			fmt.Fprintf(&b, "      %s: %s, %s\n", f.Day, f.Temperature, f.Condition)
		}
	case *message.ItineraryData:
		fmt.Fprintf(&b, "    %s to %s\n", d.StartDate, d.EndDate)
		for _, s := range d.Destinations {
			fmt.Fprintf(&b, "      %s (%d days) %s\n", s.Name, s.Days, s.Hotel)
		}
	}
	return b.String()
}

func (t *terminal) println(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, s)
}

func (t *terminal) option(n int) (message.QuickReplyOption, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n < 1 || n > len(t.options) {
		return message.QuickReplyOption{}, false
	}
	return t.options[n-1], true
}

// handle runs one typed line and reports whether the session should end.
func (t *terminal) handle(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		if line == "" {
			return false, nil
		}
		return false, t.ctrl.Send(ctx, line)
	}

	fields := strings.Fields(line[1:])
	if len(fields) == 0 {
		t.println(replHelp)
		return false, nil
	}
	switch fields[0] {
	case "quit", "exit":
		return true, nil
	case "help":
		t.println(replHelp)
		return false, nil
	case "end":
		return false, t.ctrl.EndHumanSession(ctx)
	case "token":
		if len(fields) < 2 {
			return false, errors.New("usage: /token TOKEN [NAME]")
		}
		if err := auth.SaveToken(ctx, t.store, fields[1]); err != nil {
			return false, err
		}
		if len(fields) > 2 && t.profile != nil {
			t.profile.SetUserName(strings.Join(fields[2:], " "))
		}
		t.println("token saved")
		return false, nil
	case "logout":
		return false, auth.SaveToken(ctx, t.store, "")
	}

	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return false, fmt.Errorf("unknown command %q", fields[0])
	}
	opt, ok := t.option(n)
	if !ok {
		return false, fmt.Errorf("no quick reply %d", n)
	}
	action, err := t.ctrl.ClickQuickReply(ctx, opt.ID, opt.Text)
	if err != nil {
		return false, err
	}
	if action.Kind == chat.ActionClose {
		t.println("(chat minimized)")
		t.ctrl.SetOpen(true)
	}
	return false, nil
}
