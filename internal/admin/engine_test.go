// audiopolicyd - audio stream usage policy engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package admin

import (
	"testing"

	"github.com/tomtom215/audiopolicyd/internal/policy"
	"github.com/tomtom215/audiopolicyd/internal/registry"
	"github.com/tomtom215/audiopolicyd/internal/usage"
)

// fakeVolume, fakePolicyActions, fakeActivity, and fakeCounts are narrow
// recorder doubles for the four collaborator interfaces — no mocking
// framework, matching SPEC_FULL.md §6.4's "no testify" rule.

type fakeVolume struct {
	calls []volumeCall
}

type volumeCall struct {
	usage  usage.StreamUsage
	gainDb float64
}

func (f *fakeVolume) SetUsageGainAdjustment(u usage.StreamUsage, gainDb float64) {
	f.calls = append(f.calls, volumeCall{u, gainDb})
}

func (f *fakeVolume) gainOf(u usage.StreamUsage) (float64, bool) {
	var last float64
	var found bool
	for _, c := range f.calls {
		if c.usage == u {
			last = c.gainDb
			found = true
		}
	}
	return last, found
}

func (f *fakeVolume) countFor(u usage.StreamUsage) int {
	n := 0
	for _, c := range f.calls {
		if c.usage == u {
			n++
		}
	}
	return n
}

type fakeActions struct {
	calls []actionCall
}

type actionCall struct {
	usage    usage.StreamUsage
	behavior usage.Behavior
}

func (f *fakeActions) ReportPolicyAction(u usage.StreamUsage, b usage.Behavior) {
	f.calls = append(f.calls, actionCall{u, b})
}

type fakeActivity struct {
	renderBitmaps  []usage.ActivityBitmap
	captureBitmaps []usage.ActivityBitmap
}

func (f *fakeActivity) OnRenderActivityChanged(b usage.ActivityBitmap) {
	f.renderBitmaps = append(f.renderBitmaps, b)
}

func (f *fakeActivity) OnCaptureActivityChanged(b usage.ActivityBitmap) {
	f.captureBitmaps = append(f.captureBitmaps, b)
}

func (f *fakeActivity) lastRender() usage.ActivityBitmap {
	if len(f.renderBitmaps) == 0 {
		return 0
	}
	return f.renderBitmaps[len(f.renderBitmaps)-1]
}

type fakeCounts struct {
	renderCalls  []countCall
	captureCalls []countCall
}

type countCall struct {
	usage usage.StreamUsage
	count int
}

func (f *fakeCounts) OnActiveRenderCountChanged(u usage.RenderUsage, count int) {
	f.renderCalls = append(f.renderCalls, countCall{usage.WithRenderUsage(u), count})
}

func (f *fakeCounts) OnActiveCaptureCountChanged(u usage.CaptureUsage, count int) {
	f.captureCalls = append(f.captureCalls, countCall{usage.WithCaptureUsage(u), count})
}

// testHarness wires a fresh Engine with recorder collaborators and the
// BehaviorGain table spec.md §8 mandates for tests (NONE=-1, DUCK=-2,
// MUTE=-3 on top of the stream's own 1.0 dB nominal gain, folded into
// each of the three gains here since the engine's adjustment is additive).
type testHarness struct {
	engine  *Engine
	store   *policy.Store
	active  *registry.Sets
	volume  *fakeVolume
	actions *fakeActions
	act     *fakeActivity
	counts  *fakeCounts
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	store := policy.NewStore()
	active := registry.New()
	volume := &fakeVolume{}
	actions := &fakeActions{}
	act := &fakeActivity{}
	counts := &fakeCounts{}

	engine := NewEngine(Config{
		Store:    store,
		Active:   active,
		Gain:     usage.BehaviorGain{NoneGainDb: 1.0 - 1.0, DuckGainDb: 1.0 - 2.0, MuteGainDb: 1.0 - 3.0},
		Volume:   volume,
		Actions:  actions,
		Activity: act,
		Counts:   counts,
	})

	return &testHarness{engine: engine, store: store, active: active, volume: volume, actions: actions, act: act, counts: counts}
}

func TestS1_TwoRenderersNoInteractions(t *testing.T) {
	h := newHarness(t)
	media := usage.WithRenderUsage(usage.RenderMedia)
	comm := usage.WithRenderUsage(usage.RenderCommunication)

	h.engine.applyUpdateRendererState(usage.RenderMedia, true, 1)
	h.engine.applyUpdateRendererState(usage.RenderCommunication, true, 2)

	if g, _ := h.volume.gainOf(media); g != 0.0 {
		t.Fatalf("Gain(MEDIA) = %v, want 0.0", g)
	}
	if g, _ := h.volume.gainOf(comm); g != 0.0 {
		t.Fatalf("Gain(COMMUNICATION) = %v, want 0.0", g)
	}
}

func TestS2_Duck(t *testing.T) {
	h := newHarness(t)
	media := usage.WithRenderUsage(usage.RenderMedia)
	comm := usage.WithRenderUsage(usage.RenderCommunication)

	h.engine.applySetInteraction(comm, media, usage.BehaviorDuck)
	h.engine.applyUpdateRendererState(usage.RenderMedia, true, 1)
	if g, _ := h.volume.gainOf(media); g != 0.0 {
		t.Fatalf("after MEDIA alone, Gain(MEDIA) = %v, want 0.0", g)
	}

	h.engine.applyUpdateRendererState(usage.RenderCommunication, true, 2)
	if g, _ := h.volume.gainOf(media); g != -1.0 {
		t.Fatalf("after COMMUNICATION joins, Gain(MEDIA) = %v, want -1.0", g)
	}
	if g, _ := h.volume.gainOf(comm); g != 0.0 {
		t.Fatalf("Gain(COMMUNICATION) = %v, want 0.0", g)
	}

	h.engine.applyUpdateRendererState(usage.RenderCommunication, false, 2)
	if g, _ := h.volume.gainOf(media); g != 0.0 {
		t.Fatalf("after COMMUNICATION leaves, Gain(MEDIA) = %v, want 0.0", g)
	}
}

func TestS3_MuteOverridesDuck(t *testing.T) {
	h := newHarness(t)
	sysAgentRender := usage.WithRenderUsage(usage.RenderSystemAgent)
	sysAgentCapture := usage.WithCaptureUsage(usage.CaptureSystemAgent)
	interruption := usage.WithRenderUsage(usage.RenderInterruption)
	comm := usage.WithRenderUsage(usage.RenderCommunication)

	h.engine.applySetInteraction(sysAgentRender, interruption, usage.BehaviorDuck)
	h.engine.applySetInteraction(sysAgentRender, comm, usage.BehaviorDuck)
	h.engine.applySetInteraction(sysAgentCapture, comm, usage.BehaviorMute)

	h.engine.applyUpdateRendererState(usage.RenderInterruption, true, 1)
	h.engine.applyUpdateRendererState(usage.RenderCommunication, true, 2)

	h.engine.applyUpdateCapturerState(usage.CaptureSystemAgent, true, 3)
	if g, _ := h.volume.gainOf(interruption); g != 0.0 {
		t.Fatalf("Gain(INTERRUPTION) after capture-only SYSTEM_AGENT = %v, want 0.0", g)
	}
	if g, _ := h.volume.gainOf(comm); g != -2.0 {
		t.Fatalf("Gain(COMMUNICATION) = %v, want -2.0", g)
	}

	h.engine.applyUpdateRendererState(usage.RenderSystemAgent, true, 4)
	if g, _ := h.volume.gainOf(interruption); g != -1.0 {
		t.Fatalf("Gain(INTERRUPTION) = %v, want -1.0", g)
	}
	if g, _ := h.volume.gainOf(comm); g != -2.0 {
		t.Fatalf("Gain(COMMUNICATION) should remain MUTE-level -2.0, got %v", g)
	}
}

func TestS4_MutedSourceDoesNotPropagate(t *testing.T) {
	h := newHarness(t)
	media := usage.WithRenderUsage(usage.RenderMedia)
	comm := usage.WithRenderUsage(usage.RenderCommunication)
	sysAgentCapture := usage.WithCaptureUsage(usage.CaptureSystemAgent)

	h.engine.applySetInteraction(comm, media, usage.BehaviorDuck)
	h.engine.applySetInteraction(sysAgentCapture, comm, usage.BehaviorMute)

	h.engine.applyUpdateRendererState(usage.RenderMedia, true, 1)
	if g, _ := h.volume.gainOf(media); g != 0.0 {
		t.Fatalf("Gain(MEDIA) = %v, want 0.0", g)
	}

	h.engine.applyUpdateRendererState(usage.RenderCommunication, true, 2)
	if g, _ := h.volume.gainOf(media); g != -1.0 {
		t.Fatalf("Gain(MEDIA) = %v, want -1.0", g)
	}

	h.engine.applyUpdateCapturerState(usage.CaptureSystemAgent, true, 3)
	if g, _ := h.volume.gainOf(comm); g != -2.0 {
		t.Fatalf("Gain(COMMUNICATION) = %v, want -2.0", g)
	}
	if g, _ := h.volume.gainOf(media); g != 0.0 {
		t.Fatalf("Gain(MEDIA) should return to 0.0 once COMMUNICATION is muted, got %v", g)
	}
}

func TestS5_RedundantUpdatesSuppressed(t *testing.T) {
	h := newHarness(t)
	media := usage.WithRenderUsage(usage.RenderMedia)
	commCapture := usage.WithCaptureUsage(usage.CaptureCommunication)

	// Write counting uses the unfolded table (NONE=-1, DUCK=-2, MUTE=-3):
	// with the harness's folded NONE of 0 dB, NONE equals the initial 0 dB
	// adjustment and the first NONE publication would be suppressed. The
	// first NONE write happens at the SetInteraction recompute.
	h.engine.gain = usage.BehaviorGain{NoneGainDb: -1.0, DuckGainDb: -2.0, MuteGainDb: -3.0}

	h.engine.applySetInteraction(commCapture, media, usage.BehaviorMute)

	h.engine.applyUpdateRendererState(usage.RenderMedia, true, 1)
	if n := h.volume.countFor(media); n != 1 {
		t.Fatalf("after MEDIA activates, SetUsageGainAdjustment(MEDIA) called %d times, want 1", n)
	}

	h.engine.applyUpdateCapturerState(usage.CaptureCommunication, true, 1)
	if n := h.volume.countFor(media); n != 2 {
		t.Fatalf("after first COMMUNICATION capture, SetUsageGainAdjustment(MEDIA) called %d times, want 2", n)
	}

	h.engine.applyUpdateCapturerState(usage.CaptureCommunication, true, 2)
	if n := h.volume.countFor(media); n != 2 {
		t.Fatalf("after second COMMUNICATION capture (redundant), SetUsageGainAdjustment(MEDIA) called %d times, want still 2", n)
	}

	h.engine.applyUpdateCapturerState(usage.CaptureCommunication, false, 1)
	if n := h.volume.countFor(media); n != 2 {
		t.Fatalf("removing one of two capture handles should not change MEDIA's behavior yet, got %d calls", n)
	}
	h.engine.applyUpdateCapturerState(usage.CaptureCommunication, false, 2)
	if n := h.volume.countFor(media); n != 3 {
		t.Fatalf("after last COMMUNICATION capture leaves, SetUsageGainAdjustment(MEDIA) called %d times, want 3", n)
	}
}

func TestS6_ActivityBitmap(t *testing.T) {
	h := newHarness(t)
	renderSpace := usage.ExternalRenderUsages()
	mediaBit := -1
	interruptionBit := -1
	for i, r := range renderSpace {
		if r == usage.RenderMedia {
			mediaBit = i
		}
		if r == usage.RenderInterruption {
			interruptionBit = i
		}
	}

	h.engine.applyUpdateRendererState(usage.RenderMedia, true, 1)
	if got := h.act.lastRender(); got != (usage.ActivityBitmap(0)).Set(mediaBit) {
		t.Fatalf("render bitmap = %b, want only bit %d set", got, mediaBit)
	}

	h.engine.applyUpdateRendererState(usage.RenderInterruption, true, 2)
	want := (usage.ActivityBitmap(0)).Set(mediaBit).Set(interruptionBit)
	if got := h.act.lastRender(); got != want {
		t.Fatalf("render bitmap = %b, want %b", got, want)
	}

	h.engine.applyUpdateRendererState(usage.RenderMedia, false, 1)
	if got := h.act.lastRender(); got != (usage.ActivityBitmap(0)).Set(interruptionBit) {
		t.Fatalf("render bitmap after MEDIA deactivates = %b, want only bit %d", got, interruptionBit)
	}

	h.engine.applyUpdateRendererState(usage.RenderInterruption, false, 2)
	if got := h.act.lastRender(); got != 0 {
		t.Fatalf("render bitmap after all handles deactivate = %b, want 0", got)
	}
}

func TestPolicyRoundTrip(t *testing.T) {
	h := newHarness(t)
	doc := []byte(`{
	  "audio_policy_rules": [
	    { "active": { "render_usage": "COMMUNICATION" }, "affected": { "render_usage": "MEDIA" }, "behavior": "DUCK" }
	  ]
	}`)
	fresh, _, err := policy.Load(doc)
	if err != nil {
		t.Fatalf("policy.Load: %v", err)
	}
	h.engine.applySetInteractionsFromPolicy(fresh)

	comm := usage.WithRenderUsage(usage.RenderCommunication)
	media := usage.WithRenderUsage(usage.RenderMedia)
	if got := h.store.GetRule(comm, media); got != usage.BehaviorDuck {
		t.Fatalf("engine store rule after SetInteractionsFromPolicy = %v, want DUCK", got)
	}
}

func TestResetIdempotence(t *testing.T) {
	h := newHarness(t)
	media := usage.WithRenderUsage(usage.RenderMedia)
	comm := usage.WithRenderUsage(usage.RenderCommunication)

	h.engine.applySetInteraction(comm, media, usage.BehaviorDuck)
	h.engine.applyResetInteractions()
	h.engine.applyResetInteractions()

	h.engine.applyUpdateRendererState(usage.RenderMedia, true, 1)
	h.engine.applyUpdateRendererState(usage.RenderCommunication, true, 2)
	if g, _ := h.volume.gainOf(media); g != 0.0 {
		t.Fatalf("after double reset, DUCK rule should be gone; Gain(MEDIA) = %v, want 0.0", g)
	}
}

func TestUnknownHandleRemovalIsNoOp(t *testing.T) {
	h := newHarness(t)
	media := usage.WithRenderUsage(usage.RenderMedia)

	h.engine.applyUpdateRendererState(usage.RenderMedia, false, 999)
	if h.active.IsActive(media) {
		t.Fatalf("removing an unknown handle must not mark the usage active")
	}
	if len(h.counts.renderCalls) != 0 {
		t.Fatalf("removing an unknown handle must not dispatch a count change, got %v", h.counts.renderCalls)
	}
}

func TestLastBehaviorAnswersFromEngineState(t *testing.T) {
	h := newHarness(t)
	commCapture := usage.WithCaptureUsage(usage.CaptureCommunication)
	media := usage.WithRenderUsage(usage.RenderMedia)

	h.engine.applySetInteraction(commCapture, media, usage.BehaviorMute)
	h.engine.applyUpdateRendererState(usage.RenderMedia, true, 1)
	h.engine.applyUpdateCapturerState(usage.CaptureCommunication, true, 1)

	if got := h.engine.LastBehavior(media); got != usage.BehaviorMute {
		t.Fatalf("LastBehavior(MEDIA) = %v, want MUTE", got)
	}
}
