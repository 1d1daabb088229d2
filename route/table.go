package route

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/MrEthical07/goSession/permission"
)

// Default routes used when [Options] leaves them empty.
const (
	DefaultLoginRoute                = "/login"
	DefaultAuthenticatedDefaultRoute = "/explore"
)

// Denial reasons carried by [Decision.Reason].
const (
	ReasonAuthRequired         = "Authentication required"
	ReasonAlreadyAuthenticated = "Already authenticated"
	ReasonInsufficientRole     = "Insufficient permissions"
)

// Entry declares the protection of one path. Path segments written as [name] match a
// single segment; [...name] matches the rest of the path.
type Entry struct {
	Path          string            `yaml:"path" json:"path"`
	Protection    ProtectionLevel   `yaml:"protection" json:"protection"`
	RequiredRoles []permission.Role `yaml:"requiredRoles,omitempty" json:"requiredRoles,omitempty"`
	RedirectTo    string            `yaml:"redirectTo,omitempty" json:"redirectTo,omitempty"`
}

// Decision is the result of evaluating a path.
type Decision struct {
	IsAllowed      bool
	ShouldRedirect bool
	RedirectTo     string
	Reason         string
	// Matched is the declared path that matched, empty for unmatched paths.
	Matched string
}

// Options tune a [Table].
type Options struct {
	LoginRoute                string
	AuthenticatedDefaultRoute string
	UnknownRoutePolicy        UnknownRoutePolicy
	// Registry resolves required roles. Defaults to [permission.NewDefaultRegistry].
	Registry *permission.Registry
}

func (o Options) withDefaults() Options {
	if o.LoginRoute == "" {
		o.LoginRoute = DefaultLoginRoute
	}
	if o.AuthenticatedDefaultRoute == "" {
		o.AuthenticatedDefaultRoute = DefaultAuthenticatedDefaultRoute
	}
	if o.Registry == nil {
		o.Registry = permission.NewDefaultRegistry()
	}
	return o
}

type compiled struct {
	entry   Entry
	pattern *regexp.Regexp
	roles   permission.Mask64
}

// Table is an immutable, validated route table. It is safe for concurrent use.
type Table struct {
	opts     Options
	exact    map[string]*compiled
	dynamic  []*compiled
	declared []Entry
}

// NewTable validates entries and compiles them. A broken table is refused with a
// [*ConfigError] listing every problem.
func NewTable(entries []Entry, opts Options) (*Table, error) {
	opts = opts.withDefaults()
	if err := Validate(entries, opts); err != nil {
		return nil, err
	}

	t := &Table{
		opts:     opts,
		exact:    make(map[string]*compiled, len(entries)),
		declared: make([]Entry, 0, len(entries)),
	}
	for _, e := range entries {
		e.Path = Normalize(e.Path)
		e.RequiredRoles = append([]permission.Role(nil), e.RequiredRoles...)
		mask, _ := opts.Registry.Compile(e.RequiredRoles)
		c := &compiled{entry: e, roles: mask}
		if isDynamic(e.Path) {
			c.pattern = regexp.MustCompile(compilePattern(e.Path))
			t.dynamic = append(t.dynamic, c)
		} else {
			t.exact[e.Path] = c
		}
		t.declared = append(t.declared, e)
	}
	return t, nil
}

// Options returns the effective options.
func (t *Table) Options() Options {
	return t.opts
}

// Entries returns a copy of the declared entries in declaration order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.declared))
	for i, e := range t.declared {
		e.RequiredRoles = append([]permission.Role(nil), e.RequiredRoles...)
		out[i] = e
	}
	return out
}

// Match returns the entry governing path: exact first, then dynamic in declaration order.
func (t *Table) Match(path string) (Entry, bool) {
	c := t.lookup(Normalize(path))
	if c == nil {
		return Entry{}, false
	}
	e := c.entry
	e.RequiredRoles = append([]permission.Role(nil), e.RequiredRoles...)
	return e, true
}

func (t *Table) lookup(path string) *compiled {
	if c, ok := t.exact[path]; ok {
		return c
	}
	for _, c := range t.dynamic {
		if c.pattern.MatchString(path) {
			return c
		}
	}
	return nil
}

// Evaluate decides access to path. It is pure: the same inputs always give the same
// decision.
func (t *Table) Evaluate(path string, isAuthenticated bool, role permission.Role) Decision {
	path = Normalize(path)
	c := t.lookup(path)
	if c == nil {
		if t.opts.UnknownRoutePolicy == FailClosed && !isAuthenticated && path != t.opts.LoginRoute {
			return deny(t.opts.LoginRoute, ReasonAuthRequired, "")
		}
		return Decision{IsAllowed: true}
	}

	e := c.entry
	switch e.Protection {
	case Public:
		return Decision{IsAllowed: true, Matched: e.Path}
	case GuestOnly:
		if isAuthenticated {
			return deny(fallback(e.RedirectTo, t.opts.AuthenticatedDefaultRoute), ReasonAlreadyAuthenticated, e.Path)
		}
		return Decision{IsAllowed: true, Matched: e.Path}
	}

	if !isAuthenticated {
		return deny(fallback(e.RedirectTo, t.opts.LoginRoute), ReasonAuthRequired, e.Path)
	}
	if len(e.RequiredRoles) > 0 && !t.opts.Registry.Allows(c.roles, role) {
		return deny(fallback(e.RedirectTo, t.opts.AuthenticatedDefaultRoute), ReasonInsufficientRole, e.Path)
	}
	return Decision{IsAllowed: true, Matched: e.Path}
}

func deny(target, reason, matched string) Decision {
	return Decision{ShouldRedirect: true, RedirectTo: target, Reason: reason, Matched: matched}
}

func fallback(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

// Normalize strips the query and fragment and any trailing slashes. The empty path is "/".
func Normalize(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimRightFunc(path, func(r rune) bool { return r == '/' || unicode.IsSpace(r) })
		if path == "" {
			return "/"
		}
	}
	return path
}

func isDynamic(path string) bool {
	return strings.Contains(path, "[")
}

// compilePattern turns a declared path into an anchored expression. [name] matches one
// segment and [...name] matches one or more.
func compilePattern(path string) string {
	var b strings.Builder
	b.WriteString("^")
	for i, seg := range strings.Split(path, "/") {
		if i > 0 {
			b.WriteString("/")
		}
		switch {
		case strings.HasPrefix(seg, "[...") && strings.HasSuffix(seg, "]"):
			b.WriteString(".+")
		case strings.HasPrefix(seg, "[") && strings.HasSuffix(seg, "]"):
			b.WriteString("[^/]+")
		default:
			b.WriteString(regexp.QuoteMeta(seg))
		}
	}
	b.WriteString("$")
	return b.String()
}
