package routing

import (
	"errors"
	"strings"
)

type RouteClass string

const (
	RouteClassUI        RouteClass = "ui"
	RouteClassPublicAPI RouteClass = "public_api"
	RouteClassDemo      RouteClass = "demo"
	RouteClassDevOnly   RouteClass = "dev_only"
	RouteClassOps       RouteClass = "ops"
	RouteClassStatic    RouteClass = "static"
)

type Classifier struct {
	entrypoint        string
	allowExact        map[string]RouteClass
	allowPathPatterns []pathPatternRoute
	exemptExact       map[string]struct{}
	exemptPatterns    []PathPattern
}

func NewClassifier(a Allowlist, entrypoint string) (*Classifier, error) {
	ep, ok := a.Entrypoints[entrypoint]
	if !ok {
		return nil, errors.New("allowlist: missing entrypoint")
	}
	if len(ep.Routes) == 0 {
		return nil, errors.New("allowlist: entrypoint routes empty")
	}

	exact := make(map[string]RouteClass, len(ep.Routes))
	exempt := make(map[string]struct{})
	var patterns []pathPatternRoute
	var exemptPatterns []PathPattern
	for _, r := range ep.Routes {
		if r.Path == "" || r.RouteClass == "" {
			return nil, errors.New("allowlist: invalid route")
		}
		if p, ok := parsePathPattern(r.Path); ok {
			patterns = append(patterns, pathPatternRoute{pattern: p, rc: RouteClass(r.RouteClass)})
			if r.DemoExempt {
				exemptPatterns = append(exemptPatterns, p)
			}
			continue
		}
		exact[r.Path] = RouteClass(r.RouteClass)
		if r.DemoExempt {
			exempt[r.Path] = struct{}{}
		}
	}
	return &Classifier{
		entrypoint:        entrypoint,
		allowExact:        exact,
		allowPathPatterns: patterns,
		exemptExact:       exempt,
		exemptPatterns:    exemptPatterns,
	}, nil
}

func (c *Classifier) Classify(path string) RouteClass {
	if rc, ok := c.allowExact[path]; ok {
		return rc
	}
	for _, p := range c.allowPathPatterns {
		if p.pattern.Match(path) {
			return p.rc
		}
	}

	switch {
	case hasPrefixSegment(path, "/api"):
		return RouteClassPublicAPI
	case hasPrefixSegment(path, "/demo"):
		return RouteClassDemo
	case hasPrefixSegment(path, "/dev"):
		return RouteClassDevOnly
	case hasPrefixSegment(path, "/assets") || hasPrefixSegment(path, "/static"):
		return RouteClassStatic
	default:
		return RouteClassUI
	}
}

// DemoExempt reports whether the allowlist marks the path as never subject
// to the demo write gate.
func (c *Classifier) DemoExempt(path string) bool {
	if _, ok := c.exemptExact[path]; ok {
		return true
	}
	for _, p := range c.exemptPatterns {
		if p.Match(path) {
			return true
		}
	}
	return false
}

func hasPrefixSegment(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}

type pathPatternRoute struct {
	pattern PathPattern
	rc      RouteClass
}
