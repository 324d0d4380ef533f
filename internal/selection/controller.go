// Package selection serializes the commit path: one action at a time,
// recency recorded only when the action lands.
//
// The controller is a two-state machine. It sits Idle until a commit
// arrives, runs the action while Acting, and returns to Idle whatever
// the outcome so the user can retry or pick something else. A second
// commit while one is in flight is rejected with ErrBusy rather than
// queued; queueing could double-run the action for one logical choice.
package selection

import (
	"context"
	"errors"
	"sync"
	"time"

	"flakepick/internal/logging"
	"flakepick/internal/rank"
)

// ErrBusy rejects a commit while another one is still running.
var ErrBusy = errors.New("a selection is already being applied")

// State is the controller's lifecycle phase.
type State string

const (
	StateIdle   State = "idle"
	StateActing State = "acting"
)

// Actor applies the chosen item's effect, e.g. scaffolding a template
// into the working directory.
type Actor interface {
	Act(ctx context.Context, item rank.Item) error
}

// Recorder persists one use of an identity. *frecency.Store satisfies it.
type Recorder interface {
	Bump(ident string, bonus float64, now time.Time) error
}

// Config tunes a Controller.
type Config struct {
	// Bonus is the recency credit granted per successful commit.
	Bonus float64

	// Timeout bounds a single action. Zero means no deadline beyond
	// the caller's context.
	Timeout time.Duration

	// Now supplies the commit timestamp. Nil means time.Now.
	Now func() time.Time
}

// Controller runs commits one at a time.
type Controller struct {
	cfg      Config
	actor    Actor
	recorder Recorder // optional: nil disables recency recording

	mu    sync.Mutex
	state State
}

// New creates an idle Controller. The recorder may be nil, in which
// case commits run the action but leave no recency trace.
func New(cfg Config, actor Actor, recorder Recorder) *Controller {
	return &Controller{
		cfg:      cfg,
		actor:    actor,
		recorder: recorder,
		state:    StateIdle,
	}
}

// State reports the current lifecycle phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Commit runs the action for item and, only if it succeeds, records the
// use. An action error is returned untouched so the caller sees the
// collaborator's own diagnostics. A commit arriving while another is in
// flight fails fast with ErrBusy and triggers no second action.
func (c *Controller) Commit(ctx context.Context, item rank.Item) error {
	c.mu.Lock()
	if c.state == StateActing {
		c.mu.Unlock()
		return ErrBusy
	}
	c.state = StateActing
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.state = StateIdle
		c.mu.Unlock()
	}()

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	if err := c.actor.Act(ctx, item); err != nil {
		logging.Debug("action failed, recency untouched", "ident", item.Ident, "err", err)
		return err
	}

	if c.recorder != nil {
		if err := c.recorder.Bump(item.Ident, c.cfg.Bonus, c.now()); err != nil {
			// The action already ran. History is best-effort after
			// success.
			logging.Error("recording selection failed", "ident", item.Ident, "err", err)
		}
	}
	return nil
}

func (c *Controller) now() time.Time {
	if c.cfg.Now != nil {
		return c.cfg.Now()
	}
	return time.Now()
}
