// audiopolicyd - audio stream usage policy engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package admin

import (
	"context"

	"github.com/tomtom215/audiopolicyd/internal/logging"
	"github.com/tomtom215/audiopolicyd/internal/policy"
	"github.com/tomtom215/audiopolicyd/internal/usage"
)

// Dispatcher is the single logical thread spec.md §5 requires: every
// mutation of the Engine's matrix and active-stream sets happens inside
// Serve's loop, strictly FIFO. It is a suture.Service so it can be
// supervised (restarted on panic) alongside the rest of the daemon's
// long-running pieces.
//
// Public methods post a closure onto an unbuffered channel and return
// immediately (fire-and-forget, per spec.md §5) — the caller never blocks
// on the recompute itself, only on handing the closure to a dispatcher
// goroutine that is continuously ready to receive it.
type Dispatcher struct {
	engine *Engine
	queue  chan func(*Engine)
}

// NewDispatcher wraps engine in a Dispatcher ready to be added to a
// suture supervisor.
func NewDispatcher(engine *Engine) *Dispatcher {
	return &Dispatcher{
		engine: engine,
		queue:  make(chan func(*Engine)),
	}
}

// Serve implements suture.Service. It drains posted closures in order
// until ctx is cancelled.
func (d *Dispatcher) Serve(ctx context.Context) error {
	log := logging.WithComponent("admin.dispatcher")
	log.Info().Msg("dispatcher started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("dispatcher stopping")
			return ctx.Err()
		case fn := <-d.queue:
			fn(d.engine)
		}
	}
}

// String implements fmt.Stringer for suture's logging.
func (d *Dispatcher) String() string { return "admin.dispatcher" }

// post hands fn to the dispatcher goroutine. It blocks only long enough
// for that goroutine's next select to receive it — there is no buffering,
// so callers observe strict FIFO ordering across concurrent posters only
// in the sense that the dispatcher processes one at a time; the order
// across distinct callers is whichever send wins the channel race, but a
// single caller's own sequence of posts is always observed in that order
// (spec.md §5: "calls submitted in order A then B from the same caller
// observe their effects in order A then B").
func (d *Dispatcher) post(fn func(*Engine)) {
	d.queue <- fn
}

// SetInteraction posts a Policy Store mutation followed by a full
// recompute.
func (d *Dispatcher) SetInteraction(active, affected usage.StreamUsage, behavior usage.Behavior) {
	d.post(func(e *Engine) { e.applySetInteraction(active, affected, behavior) })
}

// ResetInteractions posts a matrix reset followed by a full recompute.
func (d *Dispatcher) ResetInteractions() {
	d.post(func(e *Engine) { e.applyResetInteractions() })
}

// SetInteractionsFromPolicy posts a reset-then-replay from a freshly
// loaded policy.Store, followed by a full recompute. The supplied store
// is read-only to the dispatcher; ownership stays with the caller (the
// policy.Locator builds a throwaway Store via policy.Load and posts it
// here rather than calling policy.LoadAndInstall directly, so the
// install itself goes through the dispatcher like every other mutation).
func (d *Dispatcher) SetInteractionsFromPolicy(fresh *policy.Store) {
	d.post(func(e *Engine) { e.applySetInteractionsFromPolicy(fresh) })
}

// UpdateRendererState posts an active-set update for a render usage.
func (d *Dispatcher) UpdateRendererState(u usage.RenderUsage, active bool, handle usage.StreamHandle) {
	d.post(func(e *Engine) { e.applyUpdateRendererState(u, active, handle) })
}

// UpdateCapturerState posts an active-set update for a capture usage.
func (d *Dispatcher) UpdateCapturerState(u usage.CaptureUsage, active bool, handle usage.StreamHandle) {
	d.post(func(e *Engine) { e.applyUpdateCapturerState(u, active, handle) })
}

// LastBehavior answers from the engine's own guarded state; safe to call
// from any goroutine without posting (spec.md §5 allows read queries to
// bypass the dispatcher via a guarding mutex).
func (d *Dispatcher) LastBehavior(u usage.StreamUsage) usage.Behavior {
	return d.engine.LastBehavior(u)
}

// LastGain answers the last published gain adjustment for u, bypassing
// the dispatcher queue the same way LastBehavior does.
func (d *Dispatcher) LastGain(u usage.StreamUsage) float64 {
	return d.engine.LastGain(u)
}

// LastRenderActivity answers the last published render activity bitmap.
func (d *Dispatcher) LastRenderActivity() usage.ActivityBitmap {
	return d.engine.LastRenderActivity()
}

// LastCaptureActivity answers the last published capture activity bitmap.
func (d *Dispatcher) LastCaptureActivity() usage.ActivityBitmap {
	return d.engine.LastCaptureActivity()
}

// LastCount answers the last published active-stream count for u.
func (d *Dispatcher) LastCount(u usage.StreamUsage) int {
	return d.engine.LastCount(u)
}
