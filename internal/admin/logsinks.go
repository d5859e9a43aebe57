// audiopolicyd - audio stream usage policy engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package admin

import (
	"github.com/tomtom215/audiopolicyd/internal/logging"
	"github.com/tomtom215/audiopolicyd/internal/usage"
)

// LogVolumeSink implements VolumeSink by logging the adjustment. Actually
// driving mixer hardware is out of this daemon's scope (spec.md's
// Non-goals exclude device/driver control; this repo is the policy brain,
// not the audio HAL) — the engine's real output is the EventBus publish
// every SetUsageGainAdjustment call already triggers, which
// internal/httpapi, internal/metrics, and internal/audit all consume.
// LogVolumeSink exists so Config.Volume always has a concrete,
// non-nil collaborator to satisfy NewEngine's construction-time check.
type LogVolumeSink struct{}

// SetUsageGainAdjustment implements VolumeSink.
func (LogVolumeSink) SetUsageGainAdjustment(u usage.StreamUsage, gainDb float64) {
	logging.WithComponent("admin.volume").Debug().
		Str("usage", u.String()).Float64("gain_db", gainDb).Msg("gain adjustment")
}

// LogPolicyActionReporter implements PolicyActionReporter the same way,
// for the same reason.
type LogPolicyActionReporter struct{}

// ReportPolicyAction implements PolicyActionReporter.
func (LogPolicyActionReporter) ReportPolicyAction(u usage.StreamUsage, b usage.Behavior) {
	logging.WithComponent("admin.actions").Debug().
		Str("usage", u.String()).Str("behavior", b.String()).Msg("policy action")
}

// LogActivityDispatcher implements ActivityDispatcher the same way.
type LogActivityDispatcher struct{}

// OnRenderActivityChanged implements ActivityDispatcher.
func (LogActivityDispatcher) OnRenderActivityChanged(bitmap usage.ActivityBitmap) {
	logging.WithComponent("admin.activity").Debug().
		Uint64("render_bitmap", uint64(bitmap)).Msg("render activity changed")
}

// OnCaptureActivityChanged implements ActivityDispatcher.
func (LogActivityDispatcher) OnCaptureActivityChanged(bitmap usage.ActivityBitmap) {
	logging.WithComponent("admin.activity").Debug().
		Uint64("capture_bitmap", uint64(bitmap)).Msg("capture activity changed")
}
