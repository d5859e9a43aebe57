// audiopolicyd - audio stream usage policy engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package usage

import "testing"

func TestStreamUsageIndexIsUniqueAcrossSpace(t *testing.T) {
	seen := make(map[int]StreamUsage)
	for _, u := range Space() {
		idx := u.Index()
		if prior, ok := seen[idx]; ok {
			t.Fatalf("index %d reused by %v and %v", idx, prior, u)
		}
		seen[idx] = u
	}
	if len(seen) != spaceSize {
		t.Fatalf("got %d distinct indices, want %d", len(seen), spaceSize)
	}
}

func TestStreamUsageRoundTrip(t *testing.T) {
	r := WithRenderUsage(RenderMedia)
	if !r.IsRenderUsage() || r.IsCaptureUsage() {
		t.Fatalf("WithRenderUsage: direction flags wrong")
	}
	if r.RenderUsage() != RenderMedia {
		t.Fatalf("RenderUsage() = %v, want %v", r.RenderUsage(), RenderMedia)
	}

	c := WithCaptureUsage(CaptureForeground)
	if !c.IsCaptureUsage() || c.IsRenderUsage() {
		t.Fatalf("WithCaptureUsage: direction flags wrong")
	}
	if c.CaptureUsage() != CaptureForeground {
		t.Fatalf("CaptureUsage() = %v, want %v", c.CaptureUsage(), CaptureForeground)
	}
}

func TestExternalUsageExclusions(t *testing.T) {
	if WithRenderUsage(RenderUltrasound).IsExternal() {
		t.Fatalf("RenderUltrasound must not be external")
	}
	if WithCaptureUsage(CaptureLoopback).IsExternal() {
		t.Fatalf("CaptureLoopback must not be external")
	}
	if WithCaptureUsage(CaptureUltrasound).IsExternal() {
		t.Fatalf("CaptureUltrasound must not be external")
	}
	if !WithRenderUsage(RenderMedia).IsExternal() {
		t.Fatalf("RenderMedia must be external")
	}
}

func TestExternalUsageEnumerationOrder(t *testing.T) {
	renders := ExternalRenderUsages()
	for i, r := range renders {
		if int(r) != i {
			t.Fatalf("ExternalRenderUsages()[%d] = %v, want ordinal %d", i, r, i)
		}
	}
	captures := ExternalCaptureUsages()
	for i, c := range captures {
		if int(c) != i {
			t.Fatalf("ExternalCaptureUsages()[%d] = %v, want ordinal %d", i, c, i)
		}
	}
}

func TestBehaviorSeverityOrdering(t *testing.T) {
	if BehaviorNone.Severity() >= BehaviorDuck.Severity() {
		t.Fatalf("NONE must be strictly less severe than DUCK")
	}
	if BehaviorDuck.Severity() >= BehaviorMute.Severity() {
		t.Fatalf("DUCK must be strictly less severe than MUTE")
	}
}

func TestMaxSeverity(t *testing.T) {
	cases := []struct {
		a, b, want Behavior
	}{
		{BehaviorNone, BehaviorDuck, BehaviorDuck},
		{BehaviorMute, BehaviorDuck, BehaviorMute},
		{BehaviorDuck, BehaviorDuck, BehaviorDuck},
		{BehaviorMute, BehaviorNone, BehaviorMute},
	}
	for _, c := range cases {
		if got := MaxSeverity(c.a, c.b); got != c.want {
			t.Errorf("MaxSeverity(%v, %v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestActivityBitmapSetIsSet(t *testing.T) {
	var m ActivityBitmap
	if m.IsSet(3) {
		t.Fatalf("fresh bitmap must have no bits set")
	}
	m = m.Set(3)
	if !m.IsSet(3) {
		t.Fatalf("bit 3 should be set after Set(3)")
	}
	if m.IsSet(0) {
		t.Fatalf("Set(3) must not affect bit 0")
	}
}

func TestDefaultBehaviorGainOrdering(t *testing.T) {
	g := DefaultBehaviorGain()
	if g.For(BehaviorNone) <= g.For(BehaviorDuck) {
		t.Fatalf("NONE gain must exceed DUCK gain")
	}
	if g.For(BehaviorDuck) <= g.For(BehaviorMute) {
		t.Fatalf("DUCK gain must exceed MUTE gain")
	}
}
