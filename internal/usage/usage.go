// audiopolicyd - audio stream usage policy engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package usage defines the stream-usage taxonomy the admin engine reasons
// about: render and capture usages, the sum type that unifies them, and the
// behavior severity the policy engine applies to them.
package usage

import "fmt"

// RenderUsage categorizes an audio render (playback) stream.
type RenderUsage int

const (
	RenderBackground RenderUsage = iota
	RenderMedia
	RenderInterruption
	RenderSystemAgent
	RenderCommunication
	// RenderUltrasound is internal-only: it never appears in an externally
	// dispatched render activity bitmap, but is tracked and policed like
	// any other render usage.
	RenderUltrasound

	renderUsageCount
)

// externalRenderUsageCount is the number of render usages visible outside
// the engine (everything except RenderUltrasound).
const externalRenderUsageCount = int(RenderUltrasound)

func (u RenderUsage) String() string {
	switch u {
	case RenderBackground:
		return "RenderUsage::BACKGROUND"
	case RenderMedia:
		return "RenderUsage::MEDIA"
	case RenderInterruption:
		return "RenderUsage::INTERRUPTION"
	case RenderSystemAgent:
		return "RenderUsage::SYSTEM_AGENT"
	case RenderCommunication:
		return "RenderUsage::COMMUNICATION"
	case RenderUltrasound:
		return "RenderUsage::ULTRASOUND"
	default:
		return fmt.Sprintf("RenderUsage(%d)", int(u))
	}
}

// IsExternal reports whether u is part of the externally visible render
// usage subset (excludes ULTRASOUND).
func (u RenderUsage) IsExternal() bool {
	return int(u) < externalRenderUsageCount
}

// CaptureUsage categorizes an audio capture (recording) stream.
type CaptureUsage int

const (
	CaptureBackground CaptureUsage = iota
	CaptureForeground
	CaptureSystemAgent
	CaptureCommunication
	// CaptureLoopback and CaptureUltrasound are internal-only.
	CaptureLoopback
	CaptureUltrasound

	captureUsageCount
)

const externalCaptureUsageCount = int(CaptureLoopback)

func (u CaptureUsage) String() string {
	switch u {
	case CaptureBackground:
		return "CaptureUsage::BACKGROUND"
	case CaptureForeground:
		return "CaptureUsage::FOREGROUND"
	case CaptureSystemAgent:
		return "CaptureUsage::SYSTEM_AGENT"
	case CaptureCommunication:
		return "CaptureUsage::COMMUNICATION"
	case CaptureLoopback:
		return "CaptureUsage::LOOPBACK"
	case CaptureUltrasound:
		return "CaptureUsage::ULTRASOUND"
	default:
		return fmt.Sprintf("CaptureUsage(%d)", int(u))
	}
}

// IsExternal reports whether u is part of the externally visible capture
// usage subset (excludes LOOPBACK and ULTRASOUND).
func (u CaptureUsage) IsExternal() bool {
	return int(u) < externalCaptureUsageCount
}

// direction distinguishes the two halves of the StreamUsage sum type.
type direction int

const (
	dirRender direction = iota
	dirCapture
)

// StreamUsage is the sum type over RenderUsage and CaptureUsage. Equality is
// structural: two StreamUsage values are equal iff they carry the same
// direction and the same underlying usage ordinal.
type StreamUsage struct {
	dir     direction
	render  RenderUsage
	capture CaptureUsage
}

// WithRenderUsage wraps a RenderUsage as a StreamUsage.
func WithRenderUsage(u RenderUsage) StreamUsage {
	return StreamUsage{dir: dirRender, render: u}
}

// WithCaptureUsage wraps a CaptureUsage as a StreamUsage.
func WithCaptureUsage(u CaptureUsage) StreamUsage {
	return StreamUsage{dir: dirCapture, capture: u}
}

// IsRenderUsage reports whether this StreamUsage wraps a RenderUsage.
func (s StreamUsage) IsRenderUsage() bool { return s.dir == dirRender }

// IsCaptureUsage reports whether this StreamUsage wraps a CaptureUsage.
func (s StreamUsage) IsCaptureUsage() bool { return s.dir == dirCapture }

// RenderUsage returns the wrapped RenderUsage. Callers must check
// IsRenderUsage first; the zero RenderUsage is returned otherwise.
func (s StreamUsage) RenderUsage() RenderUsage { return s.render }

// CaptureUsage returns the wrapped CaptureUsage. Callers must check
// IsCaptureUsage first; the zero CaptureUsage is returned otherwise.
func (s StreamUsage) CaptureUsage() CaptureUsage { return s.capture }

// String renders a human-readable form, e.g. "RenderUsage::MEDIA".
func (s StreamUsage) String() string {
	if s.IsRenderUsage() {
		return s.render.String()
	}
	return s.capture.String()
}

// IsExternal reports whether the wrapped usage is externally visible.
func (s StreamUsage) IsExternal() bool {
	if s.IsRenderUsage() {
		return s.render.IsExternal()
	}
	return s.capture.IsExternal()
}

// Index returns s's position in the dense interaction-matrix space: all
// render usages first (in declaration order), then all capture usages.
func (s StreamUsage) Index() int {
	if s.IsRenderUsage() {
		return int(s.render)
	}
	return int(renderUsageCount) + int(s.capture)
}

// spaceSize is the total number of rows/columns in the interaction matrix.
const spaceSize = int(renderUsageCount) + int(captureUsageCount)

// Space enumerates every StreamUsage in matrix-index order: render usages
// (including the internal ULTRASOUND) first, then capture usages
// (including internal LOOPBACK and ULTRASOUND).
func Space() []StreamUsage {
	out := make([]StreamUsage, 0, spaceSize)
	for i := RenderUsage(0); i < renderUsageCount; i++ {
		out = append(out, WithRenderUsage(i))
	}
	for i := CaptureUsage(0); i < captureUsageCount; i++ {
		out = append(out, WithCaptureUsage(i))
	}
	return out
}

// ExternalRenderUsages enumerates the externally visible render usages, in
// the order their activity-bitmap bit is assigned.
func ExternalRenderUsages() []RenderUsage {
	out := make([]RenderUsage, 0, externalRenderUsageCount)
	for i := 0; i < externalRenderUsageCount; i++ {
		out = append(out, RenderUsage(i))
	}
	return out
}

// ExternalCaptureUsages enumerates the externally visible capture usages, in
// the order their activity-bitmap bit is assigned.
func ExternalCaptureUsages() []CaptureUsage {
	out := make([]CaptureUsage, 0, externalCaptureUsageCount)
	for i := 0; i < externalCaptureUsageCount; i++ {
		out = append(out, CaptureUsage(i))
	}
	return out
}

// StreamHandle is an opaque identity used purely for set-membership
// accounting. The engine never dereferences it.
type StreamHandle uintptr
