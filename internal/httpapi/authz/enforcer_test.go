// audiopolicyd - audio stream usage policy engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package authz

import "testing"

func TestViewerCanReadButNotWritePolicy(t *testing.T) {
	e, err := NewEnforcer("", "")
	if err != nil {
		t.Fatalf("NewEnforcer: %v", err)
	}

	allowed, err := e.Enforce(RoleViewer, ObjectPolicy, ActionRead)
	if err != nil {
		t.Fatalf("Enforce: %v", err)
	}
	if !allowed {
		t.Fatalf("viewer should be able to read policy")
	}

	allowed, err = e.Enforce(RoleViewer, ObjectPolicy, ActionWrite)
	if err != nil {
		t.Fatalf("Enforce: %v", err)
	}
	if allowed {
		t.Fatalf("viewer should not be able to write policy")
	}
}

func TestOperatorCanWritePolicy(t *testing.T) {
	e, err := NewEnforcer("", "")
	if err != nil {
		t.Fatalf("NewEnforcer: %v", err)
	}

	allowed, err := e.Enforce(RoleOperator, ObjectPolicy, ActionWrite)
	if err != nil {
		t.Fatalf("Enforce: %v", err)
	}
	if !allowed {
		t.Fatalf("operator should be able to write policy")
	}
}

func TestUnknownRoleDenied(t *testing.T) {
	e, err := NewEnforcer("", "")
	if err != nil {
		t.Fatalf("NewEnforcer: %v", err)
	}

	allowed, err := e.Enforce("nobody", ObjectPolicy, ActionRead)
	if err != nil {
		t.Fatalf("Enforce: %v", err)
	}
	if allowed {
		t.Fatalf("unknown role should be denied")
	}
}

func TestAllRolesCanReadStream(t *testing.T) {
	e, err := NewEnforcer("", "")
	if err != nil {
		t.Fatalf("NewEnforcer: %v", err)
	}
	for _, role := range []string{RoleOperator, RoleViewer} {
		allowed, err := e.Enforce(role, ObjectStream, ActionRead)
		if err != nil {
			t.Fatalf("Enforce(%s): %v", role, err)
		}
		if !allowed {
			t.Fatalf("role %s should be able to read the stream feed", role)
		}
	}
}
