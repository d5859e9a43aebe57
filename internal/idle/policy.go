// audiopolicyd - audio stream usage policy engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package idle

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/audiopolicyd/internal/logging"
	"github.com/tomtom215/audiopolicyd/internal/usage"
)

// deviceState is the per-device bookkeeping Policy keeps under mu. Two
// independent generation counters let a stale countdown recognize it has
// been superseded without needing a cancellation channel.
type deviceState struct {
	device               Device
	audibleEnabled       bool
	ultrasonicEnabled    bool
	audibleGeneration    uint64
	ultrasonicGeneration uint64
}

func (d *deviceState) isEnabled(kind channelKind) bool {
	if kind == kindUltrasonic {
		return d.ultrasonicEnabled
	}
	return d.audibleEnabled
}

func (d *deviceState) setEnabled(kind channelKind, v bool) {
	if kind == kindUltrasonic {
		d.ultrasonicEnabled = v
		return
	}
	d.audibleEnabled = v
}

func (d *deviceState) generation(kind channelKind) uint64 {
	if kind == kindUltrasonic {
		return d.ultrasonicGeneration
	}
	return d.audibleGeneration
}

// bumpGeneration invalidates any outstanding countdown for kind and
// returns the new generation, to be captured by the countdown about to
// be scheduled (if any).
func (d *deviceState) bumpGeneration(kind channelKind) uint64 {
	if kind == kindUltrasonic {
		d.ultrasonicGeneration++
		return d.ultrasonicGeneration
	}
	d.audibleGeneration++
	return d.audibleGeneration
}

// Policy implements admin.ActiveStreamCountReporter and DeviceRouter: it
// learns about render-usage activity transitions from the admin engine
// and about routing-graph membership from the routing owner, and drives
// Device.Enable*/Disable* accordingly. There is no per-usage routing
// input in this model (spec.md §4.4 defines none), so every currently
// routed device follows the same two global booleans: audible-active and
// ultrasonic-active.
type Policy struct {
	mu               sync.Mutex
	counts           map[usage.RenderUsage]int
	audibleActive    bool
	ultrasonicActive bool
	devices          map[string]*deviceState

	countdowns *suture.Supervisor
}

// NewPolicy returns a Policy with no routed devices and every usage
// count at zero.
func NewPolicy() *Policy {
	return &Policy{
		counts:  make(map[usage.RenderUsage]int),
		devices: make(map[string]*deviceState),
		countdowns: suture.New("idle.countdowns", suture.Spec{}),
	}
}

// Serve implements suture.Service: it runs the child supervisor that
// owns every in-flight countdown goroutine.
func (p *Policy) Serve(ctx context.Context) error {
	return p.countdowns.Serve(ctx)
}

// String implements fmt.Stringer for suture's logging.
func (p *Policy) String() string { return "idle.policy" }

// OnActiveRenderCountChanged implements admin.ActiveStreamCountReporter.
// It is invoked synchronously from the admin dispatcher's goroutine; it
// never calls back into the admin engine, only into Device and its own
// countdown supervisor, so no reentrancy guard is needed (spec.md §5).
func (p *Policy) OnActiveRenderCountChanged(u usage.RenderUsage, count int) {
	p.mu.Lock()
	p.counts[u] = count
	wasAudible, wasUltrasonic := p.audibleActive, p.ultrasonicActive
	p.audibleActive = p.audibleActiveLocked()
	p.ultrasonicActive = p.counts[usage.RenderUltrasound] > 0
	nowAudible, nowUltrasonic := p.audibleActive, p.ultrasonicActive
	devices := p.deviceSnapshotLocked()
	p.mu.Unlock()

	if wasAudible != nowAudible {
		p.transition(devices, kindAudible, nowAudible)
	}
	if wasUltrasonic != nowUltrasonic {
		p.transition(devices, kindUltrasonic, nowUltrasonic)
	}
}

// OnActiveCaptureCountChanged implements the rest of
// admin.ActiveStreamCountReporter. Idle output policy only acts on
// render (playback) activity, per spec.md §4.4.
func (p *Policy) OnActiveCaptureCountChanged(u usage.CaptureUsage, count int) {}

// AddDeviceToRoutes implements DeviceRouter. A device joining while its
// channel kind is already active is enabled synchronously, before this
// call returns, satisfying "enable strictly precedes sample flow." A
// device joining while idle either starts an initial countdown or stays
// enabled indefinitely, per SetInitialIdleCountdownWhenConfigured.
func (p *Policy) AddDeviceToRoutes(device Device) {
	p.mu.Lock()
	ds := &deviceState{device: device, audibleEnabled: true, ultrasonicEnabled: true}
	audibleActive, ultrasonicActive := p.audibleActive, p.ultrasonicActive
	skipUltrasonic := ultrasonicActive && OnlyEnableFirstUltrasonicChannel && p.hasEnabledUltrasonicLocked()
	p.devices[device.ID()] = ds
	p.mu.Unlock()

	switch {
	case audibleActive:
		p.enable(ds, kindAudible)
	case SetInitialIdleCountdownWhenConfigured:
		p.scheduleDisable(ds, kindAudible, InitialIdleCountdownForNewDevice)
	}

	switch {
	case ultrasonicActive && !skipUltrasonic:
		p.enable(ds, kindUltrasonic)
	case ultrasonicActive && skipUltrasonic:
		p.disableImmediatelyLocked(ds, kindUltrasonic)
	case SetInitialIdleCountdownWhenConfigured:
		p.scheduleDisable(ds, kindUltrasonic, InitialIdleCountdownForNewDevice)
	}
}

// RemoveDeviceFromRoutes implements DeviceRouter. It drops the device's
// bookkeeping and bumps both generations so any in-flight countdown for
// it becomes a no-op; tearing down the device's hardware state is the
// routing owner's responsibility, not this package's.
func (p *Policy) RemoveDeviceFromRoutes(device Device) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ds, ok := p.devices[device.ID()]
	if !ok {
		return
	}
	delete(p.devices, device.ID())
	ds.bumpGeneration(kindAudible)
	ds.bumpGeneration(kindUltrasonic)
}

func (p *Policy) audibleActiveLocked() bool {
	for u, count := range p.counts {
		if u != usage.RenderUltrasound && count > 0 {
			return true
		}
	}
	return false
}

func (p *Policy) hasEnabledUltrasonicLocked() bool {
	for _, ds := range p.devices {
		if ds.ultrasonicEnabled {
			return true
		}
	}
	return false
}

// deviceSnapshotLocked returns every routed device in a deterministic
// (ID-sorted) order, so OnlyEnableFirstUltrasonicChannel's "first" is
// well defined across calls.
func (p *Policy) deviceSnapshotLocked() []*deviceState {
	ids := make([]string, 0, len(p.devices))
	for id := range p.devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*deviceState, 0, len(ids))
	for _, id := range ids {
		out = append(out, p.devices[id])
	}
	return out
}

// transition applies a global activity change for kind across devices.
func (p *Policy) transition(devices []*deviceState, kind channelKind, active bool) {
	if active && kind == kindUltrasonic && OnlyEnableFirstUltrasonicChannel {
		if len(devices) > 0 {
			p.enable(devices[0], kind)
		}
		return
	}
	for _, ds := range devices {
		if active {
			p.enable(ds, kind)
		} else {
			p.scheduleDisable(ds, kind, IdleCountdownAfterLastStream)
		}
	}
}

// enable cancels any pending countdown for kind and turns the channel set
// on synchronously. The device's Enable call is made every time, also when
// the channel set is already marked on (a device that joined while idle
// is marked on without having been told to enable).
func (p *Policy) enable(ds *deviceState, kind channelKind) {
	p.mu.Lock()
	ds.bumpGeneration(kind)
	ds.setEnabled(kind, true)
	p.mu.Unlock()

	if kind == kindUltrasonic {
		ds.device.EnableUltrasonic()
	} else {
		ds.device.EnableAudible()
	}
}

// disableImmediatelyLocked turns a channel set off without a countdown,
// used only when a newly added device's ultrasonic channel loses the
// OnlyEnableFirstUltrasonicChannel race at join time.
func (p *Policy) disableImmediatelyLocked(ds *deviceState, kind channelKind) {
	p.mu.Lock()
	ds.bumpGeneration(kind)
	enabled := ds.isEnabled(kind)
	ds.setEnabled(kind, false)
	p.mu.Unlock()

	if !enabled {
		return
	}
	if kind == kindUltrasonic {
		ds.device.DisableUltrasonic()
	} else {
		ds.device.DisableAudible()
	}
}

// scheduleDisable starts a countdown that will turn kind off on ds after
// after elapses, unless superseded by a later enable first.
func (p *Policy) scheduleDisable(ds *deviceState, kind channelKind, after time.Duration) {
	if !DisableOnIdle {
		return
	}
	p.mu.Lock()
	gen := ds.bumpGeneration(kind)
	p.mu.Unlock()

	p.countdowns.Add(newCountdown(ds.device.ID(), kind, after, func() {
		p.fireDisable(ds, kind, gen)
	}))
}

func (p *Policy) fireDisable(ds *deviceState, kind channelKind, gen uint64) {
	log := logging.WithComponent("idle.policy")

	p.mu.Lock()
	if ds.generation(kind) != gen {
		p.mu.Unlock()
		return
	}
	enabled := ds.isEnabled(kind)
	ds.setEnabled(kind, false)
	p.mu.Unlock()

	if !enabled {
		return
	}
	log.Debug().Str("device", ds.device.ID()).Str("kind", kind.String()).Msg("idle countdown expired, disabling channel set")
	if kind == kindUltrasonic {
		ds.device.DisableUltrasonic()
	} else {
		ds.device.DisableAudible()
	}
}
