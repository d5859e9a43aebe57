// audiopolicyd - audio stream usage policy engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package policy

import (
	"strings"
	"testing"

	"github.com/tomtom215/audiopolicyd/internal/usage"
)

const validDoc = `{
  "audio_policy_rules": [
    {
      "active":   { "render_usage": "COMMUNICATION" },
      "affected": { "render_usage": "MEDIA" },
      "behavior": "DUCK"
    },
    {
      "active":   { "capture_usage": "COMMUNICATION" },
      "affected": { "render_usage": "MEDIA" },
      "behavior": "MUTE"
    }
  ]
}`

func TestLoadValidDocument(t *testing.T) {
	s, n, err := Load([]byte(validDoc))
	if err != nil {
		t.Fatalf("Load: unexpected error: %v", err)
	}
	if n != 2 {
		t.Fatalf("Load: n = %d, want 2", n)
	}

	comm := usage.WithRenderUsage(usage.RenderCommunication)
	media := usage.WithRenderUsage(usage.RenderMedia)
	if got := s.GetRule(comm, media); got != usage.BehaviorDuck {
		t.Fatalf("GetRule(COMMUNICATION, MEDIA) = %v, want DUCK", got)
	}

	captureComm := usage.WithCaptureUsage(usage.CaptureCommunication)
	if got := s.GetRule(captureComm, media); got != usage.BehaviorMute {
		t.Fatalf("GetRule(capture COMMUNICATION, MEDIA) = %v, want MUTE", got)
	}
}

func TestLoadRejectsUnknownRuleKey(t *testing.T) {
	doc := `{
	  "audio_policy_rules": [
	    {
	      "active":   { "render_usage": "MEDIA" },
	      "affected": { "render_usage": "MEDIA" },
	      "behavior": "NONE",
	      "comment":  "not a recognized key"
	    }
	  ]
	}`
	_, _, err := Load([]byte(doc))
	if err == nil {
		t.Fatalf("Load: expected error for unknown rule key, got nil")
	}
	if !strings.Contains(err.Error(), "unknown key") {
		t.Fatalf("Load: error = %v, want mention of unknown key", err)
	}
}

func TestLoadRejectsUnknownUsageString(t *testing.T) {
	doc := `{
	  "audio_policy_rules": [
	    { "active": { "render_usage": "NOT_A_USAGE" }, "affected": { "render_usage": "MEDIA" }, "behavior": "NONE" }
	  ]
	}`
	_, _, err := Load([]byte(doc))
	if err == nil {
		t.Fatalf("Load: expected error for unknown usage string, got nil")
	}
}

func TestLoadRejectsUnknownBehaviorString(t *testing.T) {
	doc := `{
	  "audio_policy_rules": [
	    { "active": { "render_usage": "MEDIA" }, "affected": { "render_usage": "MEDIA" }, "behavior": "ANNIHILATE" }
	  ]
	}`
	_, _, err := Load([]byte(doc))
	if err == nil {
		t.Fatalf("Load: expected error for unknown behavior string, got nil")
	}
}

func TestLoadRejectsBothUsageKinds(t *testing.T) {
	doc := `{
	  "audio_policy_rules": [
	    { "active": { "render_usage": "MEDIA", "capture_usage": "FOREGROUND" }, "affected": { "render_usage": "MEDIA" }, "behavior": "NONE" }
	  ]
	}`
	_, _, err := Load([]byte(doc))
	if err == nil {
		t.Fatalf("Load: expected error when a usage object names both kinds")
	}
}

func TestLoadRejectsMissingRequiredKey(t *testing.T) {
	doc := `{
	  "audio_policy_rules": [
	    { "active": { "render_usage": "MEDIA" }, "behavior": "NONE" }
	  ]
	}`
	_, _, err := Load([]byte(doc))
	if err == nil {
		t.Fatalf("Load: expected error for missing 'affected' key")
	}
}

func TestLoadAndInstallLeavesStoreUntouchedOnFailure(t *testing.T) {
	dst := NewStore()
	active := usage.WithRenderUsage(usage.RenderMedia)
	affected := usage.WithRenderUsage(usage.RenderBackground)
	dst.SetRule(active, affected, usage.BehaviorDuck)

	badDoc := `{ "audio_policy_rules": [ { "active": {}, "affected": {}, "behavior": "NONE" } ] }`
	if _, err := LoadAndInstall(dst, []byte(badDoc)); err == nil {
		t.Fatalf("LoadAndInstall: expected error for empty usage object")
	}

	if got := dst.GetRule(active, affected); got != usage.BehaviorDuck {
		t.Fatalf("LoadAndInstall: store mutated despite load failure, GetRule = %v", got)
	}
}

func TestLoadAndInstallReplacesPriorRules(t *testing.T) {
	dst := NewStore()
	stale := usage.WithRenderUsage(usage.RenderBackground)
	media := usage.WithRenderUsage(usage.RenderMedia)
	dst.SetRule(stale, media, usage.BehaviorMute)

	if _, err := LoadAndInstall(dst, []byte(validDoc)); err != nil {
		t.Fatalf("LoadAndInstall: unexpected error: %v", err)
	}

	if got := dst.GetRule(stale, media); got != usage.BehaviorNone {
		t.Fatalf("LoadAndInstall: stale rule survived reset, got %v", got)
	}
	comm := usage.WithRenderUsage(usage.RenderCommunication)
	if got := dst.GetRule(comm, media); got != usage.BehaviorDuck {
		t.Fatalf("LoadAndInstall: fresh rule missing after install, got %v", got)
	}
}
