// audiopolicyd - audio stream usage policy engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package audit persists an append-only record of every policy action,
// activity transition, and stream-count change the admin engine
// publishes, independently of internal/metrics and internal/httpapi's
// websocket feed (all three subscribe to internal/admin.EventBus without
// knowing about each other).
package audit

import "time"

// Kind distinguishes the EventBus topic an Entry was recorded from.
type Kind string

const (
	KindPolicyAction  Kind = "policy_action"
	KindGain          Kind = "gain_adjustment"
	KindRenderActive  Kind = "render_activity"
	KindCaptureActive Kind = "capture_activity"
	KindStreamCount   Kind = "stream_count"
)

// Entry is one audit record. Not every field is populated for every
// Kind: Behavior and GainDb apply to KindPolicyAction/KindGain, Bitmap
// to the activity kinds, Count to KindStreamCount.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"kind"`
	Usage     string    `json:"usage,omitempty"`
	Behavior  string    `json:"behavior,omitempty"`
	GainDb    float64   `json:"gain_db,omitempty"`
	Bitmap    uint64    `json:"bitmap,omitempty"`
	Count     int       `json:"count,omitempty"`
}

// Filter narrows List/Count to a usage and/or kind; zero values match
// everything.
type Filter struct {
	Usage string
	Kind  Kind
	Since time.Time
}

func (f Filter) matches(e Entry) bool {
	if f.Usage != "" && f.Usage != e.Usage {
		return false
	}
	if f.Kind != "" && f.Kind != e.Kind {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	return true
}
