// audiopolicyd - audio stream usage policy engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package policy

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load parses and validates a policy document and builds a brand new Store
// from it. It never mutates an existing Store: the caller decides whether
// and how to install the result (see LoadAndInstall), so a malformed
// document never corrupts a running engine's rules.
//
// Unknown top-level JSON keys are ignored; unknown keys inside a rule
// object are rejected, matching policy_loader.cc's strict per-rule
// decoding (a typo in a rule should fail loudly, not be silently dropped).
func Load(data []byte) (*Store, int, error) {
	var raw struct {
		Rules []map[string]json.RawMessage `json:"audio_policy_rules"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, fmt.Errorf("policy: decode document: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, 0, fmt.Errorf("policy: decode document: %w", err)
	}
	if len(raw.Rules) != len(doc.Rules) {
		return nil, 0, fmt.Errorf("policy: rule count mismatch during strict decode")
	}
	if err := validate.Struct(doc); err != nil {
		return nil, 0, fmt.Errorf("policy: validate document: %w", err)
	}

	store := NewStore()
	for i, rawRule := range raw.Rules {
		if err := knownRuleKeys(rawRule); err != nil {
			return nil, 0, fmt.Errorf("policy: rule %d: %w", i, err)
		}

		ruleJSON := doc.Rules[i]
		active, err := jsonToUsage(ruleJSON.Active)
		if err != nil {
			return nil, 0, fmt.Errorf("policy: rule %d: active: %w", i, err)
		}
		affected, err := jsonToUsage(ruleJSON.Affected)
		if err != nil {
			return nil, 0, fmt.Errorf("policy: rule %d: affected: %w", i, err)
		}
		behavior, err := jsonToBehavior(ruleJSON.Behavior)
		if err != nil {
			return nil, 0, fmt.Errorf("policy: rule %d: behavior: %w", i, err)
		}

		store.SetRule(active, affected, behavior)
	}

	return store, len(doc.Rules), nil
}

// LoadAndInstall parses data and, only if parsing succeeds in full,
// replaces dst's contents with the freshly built rules — a reset followed
// by a replay of every parsed rule, so dst is left either fully updated or
// completely untouched; it is never left half-applied.
func LoadAndInstall(dst *Store, data []byte) (int, error) {
	fresh, n, err := Load(data)
	if err != nil {
		return 0, err
	}

	dst.ResetAll()
	for kv, behavior := range fresh.Snapshot() {
		dst.SetRule(kv[0], kv[1], behavior)
	}
	return n, nil
}
