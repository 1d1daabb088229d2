package route

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the YAML form of a route table.
//
//	loginRoute: /login
//	authenticatedDefaultRoute: /explore
//	unknownRoutes: open
//	routes:
//	  - path: /settings
//	    protection: AUTHENTICATED
//	  - path: /admin/[...rest]
//	    protection: AUTHENTICATED
//	    requiredRoles: [ADMIN]
type File struct {
	LoginRoute                string  `yaml:"loginRoute,omitempty"`
	AuthenticatedDefaultRoute string  `yaml:"authenticatedDefaultRoute,omitempty"`
	UnknownRoutes             string  `yaml:"unknownRoutes,omitempty"`
	Routes                    []Entry `yaml:"routes"`
}

// LoadYAML reads a table from r. Values set in the document override opts. Unknown keys
// are rejected.
func LoadYAML(r io.Reader, opts Options) (*Table, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("route: decode yaml: %w", err)
	}
	if f.LoginRoute != "" {
		opts.LoginRoute = f.LoginRoute
	}
	if f.AuthenticatedDefaultRoute != "" {
		opts.AuthenticatedDefaultRoute = f.AuthenticatedDefaultRoute
	}
	if f.UnknownRoutes != "" {
		p, err := ParseUnknownRoutePolicy(f.UnknownRoutes)
		if err != nil {
			return nil, fmt.Errorf("route: %w", err)
		}
		opts.UnknownRoutePolicy = p
	}
	return NewTable(f.Routes, opts)
}

// LoadFile reads a YAML table from path.
func LoadFile(path string, opts Options) (*Table, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("route: open %s: %w", path, err)
	}
	defer fh.Close()
	return LoadYAML(fh, opts)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *ProtectionLevel) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	return nil
}
