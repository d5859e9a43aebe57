// audiopolicyd - audio stream usage policy engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package admin implements the Admin Engine: the single-dispatcher actor
// that owns the interaction matrix and active-stream registry, recomputes
// gain adjustments on every state change, and fans the result out to a
// small set of narrow collaborator interfaces.
package admin

import "github.com/tomtom215/audiopolicyd/internal/usage"

// VolumeSink receives absolute gain adjustments. The engine treats it as a
// one-way sink and never reads mixer state back through it.
type VolumeSink interface {
	SetUsageGainAdjustment(u usage.StreamUsage, gainDb float64)
}

// PolicyActionReporter receives the (usage, behavior) the engine decided to
// apply, once per change.
type PolicyActionReporter interface {
	ReportPolicyAction(u usage.StreamUsage, b usage.Behavior)
}

// ActivityDispatcher receives the render/capture activity bitmaps whenever
// the set of usages with at least one active stream changes.
type ActivityDispatcher interface {
	OnRenderActivityChanged(bitmap usage.ActivityBitmap)
	OnCaptureActivityChanged(bitmap usage.ActivityBitmap)
}

// ActiveStreamCountReporter receives a per-usage active-stream count
// whenever it changes. idle.Policy implements this to drive idle-output
// power management off the render half.
type ActiveStreamCountReporter interface {
	OnActiveRenderCountChanged(u usage.RenderUsage, count int)
	OnActiveCaptureCountChanged(u usage.CaptureUsage, count int)
}
