// audiopolicyd - audio stream usage policy engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package admin

import (
	"sync"

	"github.com/tomtom215/audiopolicyd/internal/policy"
	"github.com/tomtom215/audiopolicyd/internal/registry"
	"github.com/tomtom215/audiopolicyd/internal/usage"
)

// Engine holds the interaction matrix, the active-stream registry, and the
// publication state needed to suppress redundant collaborator calls. It is
// not itself safe for concurrent mutation: every apply* method below must
// only be called from the single goroutine Dispatcher owns (see
// dispatcher.go). The mu field guards only the "last published" maps,
// which read-only query methods (LastBehavior) may access from any
// goroutine.
type Engine struct {
	store  *policy.Store
	active *registry.Sets
	gain   usage.BehaviorGain

	volume   VolumeSink
	actions  PolicyActionReporter
	activity ActivityDispatcher
	counts   ActiveStreamCountReporter

	bus *EventBus

	mu              sync.RWMutex
	lastAdjustment  map[usage.StreamUsage]float64
	lastBehavior    map[usage.StreamUsage]usage.Behavior
	lastRenderBits  usage.ActivityBitmap
	lastCaptureBits usage.ActivityBitmap
	lastCount       map[usage.StreamUsage]int
}

// Config gathers the collaborators and gain table an Engine needs at
// construction. Missing collaborators are a programmer error: NewEngine
// panics rather than silently no-op'ing a required publication path,
// matching spec.md §7 ("construction-time misconfiguration... programmer
// errors abort").
type Config struct {
	Store    *policy.Store
	Active   *registry.Sets
	Gain     usage.BehaviorGain
	Volume   VolumeSink
	Actions  PolicyActionReporter
	Activity ActivityDispatcher
	Counts   ActiveStreamCountReporter
	Bus      *EventBus // optional
}

// NewEngine builds an Engine. Panics if any required collaborator is nil.
func NewEngine(cfg Config) *Engine {
	switch {
	case cfg.Store == nil:
		panic("admin: Config.Store is required")
	case cfg.Active == nil:
		panic("admin: Config.Active is required")
	case cfg.Volume == nil:
		panic("admin: Config.Volume is required")
	case cfg.Actions == nil:
		panic("admin: Config.Actions is required")
	case cfg.Activity == nil:
		panic("admin: Config.Activity is required")
	case cfg.Counts == nil:
		panic("admin: Config.Counts is required")
	}

	e := &Engine{
		store:          cfg.Store,
		active:         cfg.Active,
		gain:           cfg.Gain,
		volume:         cfg.Volume,
		actions:        cfg.Actions,
		activity:       cfg.Activity,
		counts:         cfg.Counts,
		bus:            cfg.Bus,
		lastAdjustment: make(map[usage.StreamUsage]float64),
		lastBehavior:   make(map[usage.StreamUsage]usage.Behavior),
		lastCount:      make(map[usage.StreamUsage]int),
	}
	// UsageGainAdjustments are initialized to 0 dB (spec.md §3), regardless
	// of the configured NoneGainDb, so the very first recompute publishes
	// whenever NoneGainDb != 0.
	for _, u := range usage.Space() {
		e.lastAdjustment[u] = 0.0
		e.lastBehavior[u] = usage.BehaviorNone
	}
	return e
}

// LastBehavior returns the Behavior this Engine last published for u. Safe
// to call from any goroutine; it answers IsUsageMuted/IsUsageDucked-style
// queries from the engine's own state rather than the volume sink
// (SPEC_FULL.md §9, resolving the corresponding Open Question).
func (e *Engine) LastBehavior(u usage.StreamUsage) usage.Behavior {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastBehavior[u]
}

// LastGain returns the gain adjustment (dB) this Engine last published for
// u. Safe to call from any goroutine; backs internal/httpapi's gain
// introspection endpoint.
func (e *Engine) LastGain(u usage.StreamUsage) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastAdjustment[u]
}

// LastRenderActivity returns the render activity bitmap this Engine last
// published.
func (e *Engine) LastRenderActivity() usage.ActivityBitmap {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastRenderBits
}

// LastCaptureActivity returns the capture activity bitmap this Engine last
// published.
func (e *Engine) LastCaptureActivity() usage.ActivityBitmap {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastCaptureBits
}

// LastCount returns the active-stream count this Engine last published for
// u, or 0 if none has been published yet.
func (e *Engine) LastCount(u usage.StreamUsage) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastCount[u]
}

// applySetInteraction mutates the Policy Store then recomputes.
func (e *Engine) applySetInteraction(active, affected usage.StreamUsage, behavior usage.Behavior) {
	e.store.SetRule(active, affected, behavior)
	e.recomputeAndPublishGains()
}

// applyResetInteractions clears the matrix then recomputes.
func (e *Engine) applyResetInteractions() {
	e.store.ResetAll()
	e.recomputeAndPublishGains()
}

// applySetInteractionsFromPolicy resets the matrix and replays rules from
// a freshly loaded Store, then recomputes.
func (e *Engine) applySetInteractionsFromPolicy(fresh *policy.Store) {
	e.store.ResetAll()
	for kv, behavior := range fresh.Snapshot() {
		e.store.SetRule(kv[0], kv[1], behavior)
	}
	e.recomputeAndPublishGains()
}

// applyUpdateRendererState adjusts the active set for a render usage, then
// recomputes gains, activity, and the per-usage count.
func (e *Engine) applyUpdateRendererState(u usage.RenderUsage, active bool, handle usage.StreamHandle) {
	su := usage.WithRenderUsage(u)
	count, changed := e.applySetActive(su, active, handle)
	e.recomputeAndPublishGains()
	e.recomputeAndPublishActivity()
	if changed {
		e.publishCountIfChanged(su, count)
	}
}

// applyUpdateCapturerState is the capture-usage analogue.
func (e *Engine) applyUpdateCapturerState(u usage.CaptureUsage, active bool, handle usage.StreamHandle) {
	su := usage.WithCaptureUsage(u)
	count, changed := e.applySetActive(su, active, handle)
	e.recomputeAndPublishGains()
	e.recomputeAndPublishActivity()
	if changed {
		e.publishCountIfChanged(su, count)
	}
}

// applySetActive adds or removes handle from u's active set. Removing a
// handle that is not present is a no-op, per spec.md §3/§7.
func (e *Engine) applySetActive(u usage.StreamUsage, active bool, handle usage.StreamHandle) (count int, changed bool) {
	if active {
		return e.active.Add(u, handle)
	}
	return e.active.Remove(u, handle)
}

// recomputeAndPublishGains runs the two-pass decision algorithm of
// spec.md §4.3 over the full usage space and publishes (volume, policy
// action) for every usage whose computed adjustment changed.
func (e *Engine) recomputeAndPublishGains() {
	behaviors := e.computeBehaviors()

	for _, u := range usage.Space() {
		b := behaviors[u]
		newGain := e.gain.For(b)

		e.mu.Lock()
		oldGain, hasOld := e.lastAdjustment[u]
		changed := !hasOld || oldGain != newGain
		if changed {
			e.lastAdjustment[u] = newGain
			e.lastBehavior[u] = b
		}
		e.mu.Unlock()

		if !changed {
			continue
		}

		e.volume.SetUsageGainAdjustment(u, newGain)
		e.actions.ReportPolicyAction(u, b)
		if e.bus != nil {
			e.bus.publishGainAdjustment(u, newGain)
			e.bus.publishPolicyAction(u, b)
		}
	}
}

// computeBehaviors implements the two-pass fixed point spec.md §4.3 and
// §9 call for: MUTE is resolved first over the full active set: a source
// muted by that pass is then excluded when resolving DUCK/NONE for every
// other usage, so a muted source's own downstream influence disappears.
// MUTE itself is never reconsidered in the second pass — nothing in the
// reduced active set can newly impose MUTE that the first pass didn't
// already see, since the reduced set is a subset of the full one.
func (e *Engine) computeBehaviors() map[usage.StreamUsage]usage.Behavior {
	activeUsages := e.active.ActiveUsages()

	muted := make(map[usage.StreamUsage]bool)
	result := make(map[usage.StreamUsage]usage.Behavior, len(usage.Space()))

	for _, u := range usage.Space() {
		if e.maxSeverityOver(activeUsages, u) == usage.BehaviorMute {
			muted[u] = true
			result[u] = usage.BehaviorMute
		}
	}

	reducedActive := make([]usage.StreamUsage, 0, len(activeUsages))
	for _, a := range activeUsages {
		if !muted[a] {
			reducedActive = append(reducedActive, a)
		}
	}

	for _, u := range usage.Space() {
		if muted[u] {
			continue
		}
		result[u] = e.maxSeverityOver(reducedActive, u)
	}

	return result
}

// maxSeverityOver returns the maximum-severity Behavior any usage in
// sources imposes on affected, or NONE if sources is empty or every rule
// is NONE.
func (e *Engine) maxSeverityOver(sources []usage.StreamUsage, affected usage.StreamUsage) usage.Behavior {
	best := usage.BehaviorNone
	for _, a := range sources {
		b := e.store.GetRule(a, affected)
		best = usage.MaxSeverity(best, b)
	}
	return best
}

// recomputeAndPublishActivity computes the render/capture bitmaps over the
// externally visible usage subset and publishes each one that changed.
func (e *Engine) recomputeAndPublishActivity() {
	renderBits := usage.ActivityBitmap(0)
	for i, ru := range usage.ExternalRenderUsages() {
		if e.active.IsActive(usage.WithRenderUsage(ru)) {
			renderBits = renderBits.Set(i)
		}
	}
	captureBits := usage.ActivityBitmap(0)
	for i, cu := range usage.ExternalCaptureUsages() {
		if e.active.IsActive(usage.WithCaptureUsage(cu)) {
			captureBits = captureBits.Set(i)
		}
	}

	e.mu.Lock()
	renderChanged := renderBits != e.lastRenderBits
	captureChanged := captureBits != e.lastCaptureBits
	if renderChanged {
		e.lastRenderBits = renderBits
	}
	if captureChanged {
		e.lastCaptureBits = captureBits
	}
	e.mu.Unlock()

	if renderChanged {
		e.activity.OnRenderActivityChanged(renderBits)
		if e.bus != nil {
			e.bus.publishRenderActivity(renderBits)
		}
	}
	if captureChanged {
		e.activity.OnCaptureActivityChanged(captureBits)
		if e.bus != nil {
			e.bus.publishCaptureActivity(captureBits)
		}
	}
}

// publishCountIfChanged dispatches the new count for u if it differs from
// the last value reported for u.
func (e *Engine) publishCountIfChanged(u usage.StreamUsage, count int) {
	e.mu.Lock()
	old, ok := e.lastCount[u]
	changed := !ok || old != count
	if changed {
		e.lastCount[u] = count
	}
	e.mu.Unlock()

	if !changed {
		return
	}

	if u.IsRenderUsage() {
		e.counts.OnActiveRenderCountChanged(u.RenderUsage(), count)
	} else {
		e.counts.OnActiveCaptureCountChanged(u.CaptureUsage(), count)
	}
	if e.bus != nil {
		e.bus.publishStreamCount(u, count)
	}
}
