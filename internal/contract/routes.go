package contract

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bft-labs/wardsync/internal/domain"
)

// Route is one mounted mutating endpoint.
//
// Pattern segments are literal, ":name" (any single segment) or "*". A
// trailing "*" matches the rest of the path, including nothing; elsewhere it
// matches one segment. Method "*" matches any method.
type Route struct {
	Method  string `yaml:"method"`
	Pattern string `yaml:"pattern"`
}

// Manifest is the YAML document listing mounted routes.
type Manifest struct {
	Routes []Route `yaml:"routes"`
}

// RouteTable is an immutable set of compiled routes.
type RouteTable struct {
	routes   []Route
	compiled []compiledRoute
}

type compiledRoute struct {
	method   string
	segments []string
	tail     bool
}

// NewRouteTable validates and compiles routes.
func NewRouteTable(routes []Route) (*RouteTable, error) {
	t := &RouteTable{
		routes:   make([]Route, 0, len(routes)),
		compiled: make([]compiledRoute, 0, len(routes)),
	}
	for i, r := range routes {
		method := strings.ToUpper(strings.TrimSpace(r.Method))
		pattern := strings.TrimSpace(r.Pattern)
		if method == "" {
			return nil, fmt.Errorf("%w: route %d: method is required", domain.ErrInvalidConfig, i)
		}
		if !strings.HasPrefix(pattern, "/") {
			return nil, fmt.Errorf("%w: route %d: pattern %q must start with /", domain.ErrInvalidConfig, i, r.Pattern)
		}

		segs := splitPath(pattern)
		c := compiledRoute{method: method}
		for j, s := range segs {
			if s == "*" && j == len(segs)-1 {
				c.tail = true
				break
			}
			if s == ":" {
				return nil, fmt.Errorf("%w: route %d: unnamed parameter in %q", domain.ErrInvalidConfig, i, r.Pattern)
			}
			c.segments = append(c.segments, s)
		}

		t.routes = append(t.routes, Route{Method: method, Pattern: pattern})
		t.compiled = append(t.compiled, c)
	}
	return t, nil
}

// ParseRoutes decodes a YAML manifest.
func ParseRoutes(data []byte) (*RouteTable, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: parse routes: %v", domain.ErrInvalidConfig, err)
	}
	return NewRouteTable(m.Routes)
}

// LoadRoutes reads and parses the manifest at path.
func LoadRoutes(path string) (*RouteTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routes file: %w", err)
	}
	return ParseRoutes(data)
}

// Routes returns the normalized routes.
func (t *RouteTable) Routes() []Route {
	return append([]Route(nil), t.routes...)
}

// Len returns the number of routes.
func (t *RouteTable) Len() int {
	return len(t.routes)
}

// Match reports whether method and rawURL hit a mounted route. Scheme, host,
// query and fragment of rawURL are ignored.
func (t *RouteTable) Match(method, rawURL string) bool {
	method = strings.ToUpper(method)
	segs := splitPath(requestPath(rawURL))
	for _, c := range t.compiled {
		if c.method != "*" && c.method != method {
			continue
		}
		if c.match(segs) {
			return true
		}
	}
	return false
}

func (c compiledRoute) match(segs []string) bool {
	if c.tail {
		if len(segs) < len(c.segments) {
			return false
		}
	} else if len(segs) != len(c.segments) {
		return false
	}
	for i, want := range c.segments {
		got := segs[i]
		switch {
		case want == "*" || strings.HasPrefix(want, ":"):
			if got == "" {
				return false
			}
		case want != got:
			return false
		}
	}
	return true
}

func requestPath(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return rawURL
	}
	return u.Path
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
