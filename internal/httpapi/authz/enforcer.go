// audiopolicyd - audio stream usage policy engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package authz provides Casbin-backed RBAC for the admin HTTP API: two
// roles (operator, viewer) over a handful of objects (policy, activity,
// audit, stream), matching SPEC_FULL.md §6's two-role admin surface. It
// is deliberately narrower than a general-purpose multi-tenant enforcer:
// the JWT bearer token's role claim IS the Casbin subject, so there is no
// user->role grouping step to manage at runtime.
package authz

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// Object names the Enforcer recognizes.
const (
	ObjectPolicy   = "policy"
	ObjectActivity = "activity"
	ObjectAudit    = "audit"
	ObjectStream   = "stream"
)

// Action names the Enforcer recognizes.
const (
	ActionRead  = "read"
	ActionWrite = "write"
)

// Role names a bearer token's role claim must carry.
const (
	RoleOperator = "operator"
	RoleViewer   = "viewer"
)

// Enforcer wraps a Casbin SyncedEnforcer loaded from either an operator-
// supplied model/policy pair on disk or the package's embedded defaults.
type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer builds an Enforcer. modelPath and policyPath each override
// the matching embedded default independently, when that path is
// non-empty and exists on disk; otherwise the embedded model or policy is
// used.
func NewEnforcer(modelPath, policyPath string) (*Enforcer, error) {
	m, err := loadModel(modelPath)
	if err != nil {
		return nil, fmt.Errorf("authz: load model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	if policyPath != "" && fileExists(policyPath) {
		adapter := fileadapter.NewAdapter(policyPath)
		enforcer, err = casbin.NewSyncedEnforcer(m, adapter)
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err == nil {
			err = loadEmbeddedPolicy(enforcer)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("authz: build enforcer: %w", err)
	}

	return &Enforcer{enforcer: enforcer}, nil
}

func loadModel(modelPath string) (model.Model, error) {
	if modelPath != "" && fileExists(modelPath) {
		return model.NewModelFromFile(modelPath)
	}
	return model.NewModelFromString(embeddedModel)
}

func loadEmbeddedPolicy(e *casbin.SyncedEnforcer) error {
	for _, line := range policyLines(embeddedPolicy) {
		if _, err := e.AddPolicy(line[0], line[1], line[2]); err != nil {
			return fmt.Errorf("add embedded policy %v: %w", line, err)
		}
	}
	return nil
}

// Enforce reports whether role may perform act on obj.
func (e *Enforcer) Enforce(role, obj, act string) (bool, error) {
	allowed, err := e.enforcer.Enforce(role, obj, act)
	if err != nil {
		return false, fmt.Errorf("authz: enforce(%s,%s,%s): %w", role, obj, act, err)
	}
	return allowed, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
