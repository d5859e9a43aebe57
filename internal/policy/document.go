// audiopolicyd - audio stream usage policy engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package policy

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/audiopolicyd/internal/usage"
)

// Document is the top-level JSON shape:
//
//	{ "audio_policy_rules": [ { "active": {...}, "affected": {...}, "behavior": "DUCK" }, ... ] }
//
// Unknown top-level keys are ignored (Document has no catch-all field, so
// goccy/go-json simply drops them on decode).
type Document struct {
	Rules []RuleJSON `json:"audio_policy_rules" validate:"dive"`
}

// UsageJSON is an object with exactly one of render_usage/capture_usage.
type UsageJSON struct {
	RenderUsage  *string `json:"render_usage,omitempty"`
	CaptureUsage *string `json:"capture_usage,omitempty"`
}

// RuleJSON is one element of audio_policy_rules.
type RuleJSON struct {
	Active   UsageJSON `json:"active" validate:"required"`
	Affected UsageJSON `json:"affected" validate:"required"`
	Behavior string    `json:"behavior" validate:"required"`
}

// Rule is a fully-resolved, validated rule ready for installation.
type Rule struct {
	Active   usage.StreamUsage
	Affected usage.StreamUsage
	Behavior usage.Behavior
}

var renderUsageNames = map[string]usage.RenderUsage{
	"BACKGROUND":    usage.RenderBackground,
	"MEDIA":         usage.RenderMedia,
	"INTERRUPTION":  usage.RenderInterruption,
	"SYSTEM_AGENT":  usage.RenderSystemAgent,
	"COMMUNICATION": usage.RenderCommunication,
}

var captureUsageNames = map[string]usage.CaptureUsage{
	"BACKGROUND":    usage.CaptureBackground,
	"FOREGROUND":    usage.CaptureForeground,
	"SYSTEM_AGENT":  usage.CaptureSystemAgent,
	"COMMUNICATION": usage.CaptureCommunication,
}

var behaviorNames = map[string]usage.Behavior{
	"NONE": usage.BehaviorNone,
	"DUCK": usage.BehaviorDuck,
	"MUTE": usage.BehaviorMute,
}

// jsonToUsage translates a UsageJSON into a StreamUsage. Only the
// externally visible render/capture usage names are accepted, matching
// the accepted strings enumerated in SPEC_FULL.md §6; a document can never
// declare a rule over an internal-only usage (ULTRASOUND, LOOPBACK).
func jsonToUsage(u UsageJSON) (usage.StreamUsage, error) {
	switch {
	case u.RenderUsage != nil && u.CaptureUsage != nil:
		return usage.StreamUsage{}, fmt.Errorf("usage object has both render_usage and capture_usage")
	case u.RenderUsage != nil:
		ru, ok := renderUsageNames[*u.RenderUsage]
		if !ok {
			return usage.StreamUsage{}, fmt.Errorf("%q is not a valid render_usage", *u.RenderUsage)
		}
		return usage.WithRenderUsage(ru), nil
	case u.CaptureUsage != nil:
		cu, ok := captureUsageNames[*u.CaptureUsage]
		if !ok {
			return usage.StreamUsage{}, fmt.Errorf("%q is not a valid capture_usage", *u.CaptureUsage)
		}
		return usage.WithCaptureUsage(cu), nil
	default:
		return usage.StreamUsage{}, fmt.Errorf("usage object has neither render_usage nor capture_usage")
	}
}

func jsonToBehavior(s string) (usage.Behavior, error) {
	b, ok := behaviorNames[s]
	if !ok {
		return usage.BehaviorNone, fmt.Errorf("%q is not a valid behavior", s)
	}
	return b, nil
}

// ResolveUsage exports jsonToUsage for callers outside this package that
// accept the same {render_usage|capture_usage} wire shape directly, such
// as internal/httpapi's policy-mutation handlers.
func ResolveUsage(u UsageJSON) (usage.StreamUsage, error) {
	return jsonToUsage(u)
}

// ResolveBehavior exports jsonToBehavior for the same reason.
func ResolveBehavior(s string) (usage.Behavior, error) {
	return jsonToBehavior(s)
}

// knownRuleKeys validates that a raw rule object carries exactly the keys
// {active, affected, behavior}. goccy/go-json's struct decode silently
// drops unknown fields, but SPEC_FULL.md/spec.md §4.2 requires unknown keys
// *inside* a rule object to fail the load, so we check the raw key set
// directly.
func knownRuleKeys(raw map[string]json.RawMessage) error {
	allowed := map[string]bool{"active": true, "affected": true, "behavior": true}
	for k := range raw {
		if !allowed[k] {
			return fmt.Errorf("unknown key %q in policy rule", k)
		}
	}
	for _, required := range []string{"active", "affected", "behavior"} {
		if _, ok := raw[required]; !ok {
			return fmt.Errorf("policy rule missing required key %q", required)
		}
	}
	return nil
}
