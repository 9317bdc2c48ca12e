package chat

import (
	"context"
	"strings"
	"time"

	"github.com/comigor/ethiochat/internal/message"
)

type revealJob struct {
	cancel context.CancelFunc
}

// Reveal shows m word by word. The message takes its place in the log
// immediately (empty at first) and is replaced in place by id at every step,
// so once the reveal finishes it is identical to m. Revealing an id again
// cancels the earlier reveal. Reveal never blocks Send.
func (c *Controller) Reveal(m message.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.revealLocked(m)
}

func (c *Controller) revealLocked(m message.Message) {
	if err := m.Validate(); err != nil {
		c.appendLocked(m)
		return
	}
	if prev, ok := c.reveals[m.ID]; ok {
		prev.cancel()
		delete(c.reveals, m.ID)
	}

	partial := m
	partial.Content = ""
	ctx, cancel := context.WithCancel(c.base)
	job := &revealJob{cancel: cancel}
	c.reveals[m.ID] = job
	if i := c.indexLocked(m.ID); i >= 0 {
		c.messages[i] = partial
		c.notifyLocked()
	} else {
		c.appendLocked(partial)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		c.runReveal(ctx, job, m)
	}()
}

func (c *Controller) runReveal(ctx context.Context, job *revealJob, m message.Message) {
	ticker := time.NewTicker(c.cfg.RevealDelay)
	defer ticker.Stop()
	defer c.forgetReveal(m.ID, job)

	var shown strings.Builder
	for _, word := range strings.SplitAfter(m.Content, " ") {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		shown.WriteString(word)
		if !c.revealStep(ctx, m.ID, strings.TrimRight(shown.String(), " ")) {
			return
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	if i := c.indexLocked(m.ID); i >= 0 {
		c.messages[i] = m
	}
	if c.reveals[m.ID] == job {
		delete(c.reveals, m.ID)
	}
	c.notifyLocked()
}

func (c *Controller) forgetReveal(id string, job *revealJob) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reveals[id] == job {
		delete(c.reveals, id)
	}
}

// revealStep shows partial; it reports false once the reveal was superseded
// or the message left the log.
func (c *Controller) revealStep(ctx context.Context, id, partial string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	i := c.indexLocked(id)
	if i < 0 {
		return false
	}
	c.messages[i].Content = partial
	c.notifyLocked()
	return true
}
