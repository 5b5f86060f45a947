package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		role   Role
		action Action
		allow  bool
	}{
		{name: "viewer read", role: RoleViewer, action: ActionRead, allow: true},
		{name: "viewer sync", role: RoleViewer, action: ActionSync, allow: false},
		{name: "operator sync", role: RoleOperator, action: ActionSync, allow: true},
		{name: "operator admin", role: RoleOperator, action: ActionAdmin, allow: false},
		{name: "admin sync", role: RoleAdmin, action: ActionSync, allow: true},
		{name: "unknown read", role: Role("guest"), action: ActionRead, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.role, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.allow)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("operator"); got != RoleOperator {
		t.Fatalf("Normalize(operator) = %q", got)
	}
	if got := Normalize("editor"); got != RoleViewer {
		t.Fatalf("Normalize(editor) = %q, want viewer", got)
	}
}
