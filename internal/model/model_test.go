package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/fortivault/fortivault/internal/errs"
)

func TestParseRole(t *testing.T) {
	t.Parallel()

	cases := map[string]Role{
		"user":    RoleUser,
		"admin":   RoleAdmin,
		" Admin ": RoleAdmin,
		"USER":    RoleUser,
	}
	for in, want := range cases {
		got, err := ParseRole(in)
		if err != nil {
			t.Fatalf("ParseRole(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseRole(%q)=%q, want %q", in, got, want)
		}
	}

	for _, bad := range []string{"", "root", "superadmin", "admins"} {
		if _, err := ParseRole(bad); !errors.Is(err, errs.ErrValidation) {
			t.Fatalf("ParseRole(%q): want ErrValidation, got %v", bad, err)
		}
	}
}

func TestRole_UnmarshalJSON_RejectsUnknown(t *testing.T) {
	t.Parallel()

	var body struct {
		Role *Role `json:"role"`
	}
	if err := json.Unmarshal([]byte(`{"role":"admin"}`), &body); err != nil {
		t.Fatalf("unmarshal admin: %v", err)
	}
	if body.Role == nil || *body.Role != RoleAdmin {
		t.Fatalf("role=%v, want admin", body.Role)
	}

	body.Role = nil
	if err := json.Unmarshal([]byte(`{"role":"owner"}`), &body); err == nil {
		t.Fatalf("want error for unknown role")
	}

	body.Role = nil
	if err := json.Unmarshal([]byte(`{}`), &body); err != nil || body.Role != nil {
		t.Fatalf("absent role must stay nil: role=%v err=%v", body.Role, err)
	}
}

func TestIdentity_IsAdmin(t *testing.T) {
	t.Parallel()

	if (Identity{Role: RoleUser}).IsAdmin() {
		t.Fatalf("user must not be admin")
	}
	if !(Identity{Role: RoleAdmin}).IsAdmin() {
		t.Fatalf("admin must be admin")
	}
	if Role("root").Valid() {
		t.Fatalf("root must be invalid")
	}
}
