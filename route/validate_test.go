package route

import (
	"errors"
	"strings"
	"testing"

	"github.com/MrEthical07/goSession/permission"
)

func TestValidateReportsEveryProblem(t *testing.T) {
	entries := []Entry{
		{Path: "/a", Protection: Public},
		{Path: "/a/", Protection: Authenticated},
		{Path: "", Protection: Public},
		{Path: "relative", Protection: Public},
		{Path: "/loop", Protection: Authenticated, RedirectTo: "/loop/"},
		{Path: "/bad", Protection: ProtectionLevel(9)},
		{Path: "/ghost", Protection: Authenticated, RequiredRoles: []permission.Role{"GHOST"}},
		{Path: "/login", Protection: Authenticated},
		{Path: "/guest-role", Protection: GuestOnly, RequiredRoles: []permission.Role{permission.RoleAdmin}},
		{Path: "/x/[...rest]/y", Protection: Public},
		{Path: "/x/[id", Protection: Public},
		{Path: "/rel", Protection: Authenticated, RedirectTo: "home"},
	}
	err := Validate(entries, Options{})
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *ConfigError, got %v", err)
	}
	wants := []string{
		"duplicate path",
		"empty path",
		"must start with /",
		"redirects to itself",
		"unknown protection level",
		"unknown roles",
		"login route cannot require authentication",
		"required roles need AUTHENTICATED",
		"catch-all segment must be last",
		"malformed dynamic segment",
		"must be absolute",
	}
	msg := err.Error()
	for _, w := range wants {
		if !strings.Contains(msg, w) {
			t.Fatalf("missing %q in %s", w, msg)
		}
	}
	if len(ce.Problems) != len(wants) {
		t.Fatalf("expected %d problems, got %d: %v", len(wants), len(ce.Problems), ce.Problems)
	}
}

func TestValidateAcceptsGoodTable(t *testing.T) {
	err := Validate([]Entry{
		{Path: "/", Protection: Public},
		{Path: "/login", Protection: GuestOnly},
		{Path: "/p/[id]", Protection: Authenticated, RequiredRoles: []permission.Role{permission.RoleBuyer}},
	}, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateUsesCustomRegistry(t *testing.T) {
	reg, err := permission.NewRegistry(permission.RoleNone, "CURATOR")
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	entries := []Entry{{Path: "/curate", Protection: Authenticated, RequiredRoles: []permission.Role{"CURATOR"}}}
	if err := Validate(entries, Options{Registry: reg}); err != nil {
		t.Fatalf("custom role rejected: %v", err)
	}
	tbl, err := NewTable(entries, Options{Registry: reg})
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	if d := tbl.Evaluate("/curate", true, "CURATOR"); !d.IsAllowed {
		t.Fatalf("curator denied: %+v", d)
	}
}

func TestParseProtectionLevel(t *testing.T) {
	for in, want := range map[string]ProtectionLevel{
		"public": Public, "GUEST_ONLY": GuestOnly, "guest-only": GuestOnly, "Authenticated": Authenticated,
	} {
		got, err := ParseProtectionLevel(in)
		if err != nil || got != want {
			t.Fatalf("%q: got %v, %v", in, got, err)
		}
	}
	if _, err := ParseProtectionLevel("private"); err == nil {
		t.Fatal("expected error")
	}
}
