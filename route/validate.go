package route

import (
	"fmt"
	"strings"
)

// Problem is one defect found in a route table.
type Problem struct {
	Path    string
	Message string
}

func (p Problem) String() string {
	if p.Path == "" {
		return p.Message
	}
	return p.Path + ": " + p.Message
}

// ConfigError lists every problem of a route table.
type ConfigError struct {
	Problems []Problem
}

func (e *ConfigError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.String()
	}
	return fmt.Sprintf("route: invalid table (%d problems): %s", len(e.Problems), strings.Join(parts, "; "))
}

// Validate reports every problem in entries at once. It returns nil or a [*ConfigError].
func Validate(entries []Entry, opts Options) error {
	opts = opts.withDefaults()
	var problems []Problem
	add := func(path, format string, args ...any) {
		problems = append(problems, Problem{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	for _, r := range []struct{ name, path string }{
		{"login route", opts.LoginRoute},
		{"authenticated default route", opts.AuthenticatedDefaultRoute},
	} {
		if !strings.HasPrefix(r.path, "/") {
			add("", "%s %q must be absolute", r.name, r.path)
		}
	}

	seen := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		raw := strings.TrimSpace(e.Path)
		if raw == "" {
			add(fmt.Sprintf("#%d", i), "empty path")
			continue
		}
		if !strings.HasPrefix(raw, "/") {
			add(raw, "path must start with /")
			continue
		}
		path := Normalize(raw)
		if _, dup := seen[path]; dup {
			add(path, "duplicate path")
		}
		seen[path] = struct{}{}

		if msg := checkSegments(path); msg != "" {
			add(path, "%s", msg)
		}
		if !e.Protection.valid() {
			add(path, "unknown protection level %d", int(e.Protection))
		}
		if e.RedirectTo != "" {
			if !strings.HasPrefix(e.RedirectTo, "/") {
				add(path, "redirect target %q must be absolute", e.RedirectTo)
			} else if Normalize(e.RedirectTo) == path {
				add(path, "redirects to itself")
			}
		}
		if len(e.RequiredRoles) > 0 {
			if e.Protection != Authenticated {
				add(path, "required roles need AUTHENTICATED protection, got %s", e.Protection)
			}
			if _, err := opts.Registry.Compile(e.RequiredRoles); err != nil {
				add(path, "%v", err)
			}
		}
		if path == Normalize(opts.LoginRoute) && e.Protection == Authenticated {
			add(path, "login route cannot require authentication")
		}
		if path == Normalize(opts.AuthenticatedDefaultRoute) && e.Protection == GuestOnly {
			add(path, "authenticated default route cannot be guest only")
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return &ConfigError{Problems: problems}
}

func checkSegments(path string) string {
	segs := strings.Split(path, "/")
	for i, seg := range segs {
		if !strings.ContainsAny(seg, "[]") {
			continue
		}
		if !strings.HasPrefix(seg, "[") || !strings.HasSuffix(seg, "]") || len(seg) < 3 ||
			strings.Count(seg, "[") != 1 || strings.Count(seg, "]") != 1 {
			return fmt.Sprintf("malformed dynamic segment %q", seg)
		}
		if strings.HasPrefix(seg, "[...") {
			if len(seg) == len("[...]") {
				return fmt.Sprintf("malformed dynamic segment %q", seg)
			}
			if i != len(segs)-1 {
				return "catch-all segment must be last"
			}
		}
	}
	return ""
}
