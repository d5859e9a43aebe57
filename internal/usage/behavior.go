// audiopolicyd - audio stream usage policy engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package usage

import "fmt"

// Behavior is the declarative action the engine imposes on an affected
// usage when some active usage is flowing.
type Behavior int

const (
	BehaviorNone Behavior = iota
	BehaviorDuck
	BehaviorMute
)

func (b Behavior) String() string {
	switch b {
	case BehaviorNone:
		return "NONE"
	case BehaviorDuck:
		return "DUCK"
	case BehaviorMute:
		return "MUTE"
	default:
		return fmt.Sprintf("Behavior(%d)", int(b))
	}
}

// Severity returns b's position in the total ordering NONE < DUCK < MUTE.
// Callers compare Severity() to find the maximum-severity behavior across
// a set of candidates.
func (b Behavior) Severity() int { return int(b) }

// MaxSeverity returns whichever of a, b has the higher severity.
func MaxSeverity(a, b Behavior) Behavior {
	if b.Severity() > a.Severity() {
		return b
	}
	return a
}

// BehaviorGain maps each Behavior to the gain adjustment (in dB) the engine
// requests of the volume sink. Values are additive on top of the stream's
// own configured gain.
type BehaviorGain struct {
	NoneGainDb float64
	DuckGainDb float64
	MuteGainDb float64
}

// DefaultBehaviorGain matches original_source's AudioAdmin defaults
// (none=0dB, duck=-14dB, a large negative mute gain standing in for
// fuchsia.media.audio.MUTED_GAIN_DB).
func DefaultBehaviorGain() BehaviorGain {
	return BehaviorGain{
		NoneGainDb: 0.0,
		DuckGainDb: -14.0,
		MuteGainDb: -160.0,
	}
}

// For returns the gain adjustment BehaviorGain associates with b.
func (g BehaviorGain) For(b Behavior) float64 {
	switch b {
	case BehaviorDuck:
		return g.DuckGainDb
	case BehaviorMute:
		return g.MuteGainDb
	default:
		return g.NoneGainDb
	}
}

// ActivityBitmap is a fixed-width bitmask; bit i is set iff the i-th
// externally visible usage (in the order ExternalRenderUsages/
// ExternalCaptureUsages enumerates) has at least one active stream.
type ActivityBitmap uint64

// Set returns a copy of m with bit i set.
func (m ActivityBitmap) Set(i int) ActivityBitmap { return m | (1 << uint(i)) }

// IsSet reports whether bit i is set.
func (m ActivityBitmap) IsSet(i int) bool { return m&(1<<uint(i)) != 0 }
