package crawl

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Scope decides which discovered URLs may join the frontier. Out-of-scope
// links still appear in the sitemap; they are just never crawled.
type Scope interface {
	InScope(target *url.URL) bool
}

type allowAll struct{}

func (allowAll) InScope(*url.URL) bool { return true }

// ScopeAll admits every URL. The CLI's --all flag selects it.
var ScopeAll Scope = allowAll{}

type seedRoot struct {
	host string
	path string // "" scopes the whole host
}

type seedScope struct {
	roots []seedRoot
}

// ScopeSeeds restricts a crawl to the sites it was seeded with: a target
// is in scope when its host matches a seed host and its path is the seed
// path or sits under it. Scheme is ignored, so the http and https
// variants of one site share a scope. Host comparison is
// case-insensitive; path comparison is not.
func ScopeSeeds(seeds ...string) (Scope, error) {
	roots := make([]seedRoot, 0, len(seeds))
	for _, s := range seeds {
		u, err := url.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid seed %s: %w", s, err)
		}
		if u.Host == "" {
			return nil, fmt.Errorf("seed %s has no host", s)
		}
		roots = append(roots, seedRoot{
			host: strings.ToLower(u.Host),
			path: strings.TrimSuffix(u.Path, "/"),
		})
	}
	return &seedScope{roots: roots}, nil
}

func (s *seedScope) InScope(target *url.URL) bool {
	host := strings.ToLower(target.Host)
	for _, r := range s.roots {
		if host != r.host {
			continue
		}
		if r.path == "" {
			return true
		}
		if target.Path == r.path || strings.HasPrefix(target.Path, r.path+"/") {
			return true
		}
	}
	return false
}

type globScope struct {
	patterns []string
}

// NewGlobScope admits hosts matching any pattern, in filepath.Match
// syntax. A pattern prefixed with ! rejects matching hosts regardless of
// what else matches.
func NewGlobScope(patterns ...string) Scope {
	return &globScope{patterns: patterns}
}

func (g *globScope) InScope(target *url.URL) bool {
	host := strings.ToLower(target.Host)
	allowed := false
	for _, pattern := range g.patterns {
		if negPattern, found := strings.CutPrefix(pattern, "!"); found {
			if matchHost(host, negPattern) {
				return false
			}
		} else if matchHost(host, pattern) {
			allowed = true
		}
	}
	return allowed
}

func matchHost(host, pattern string) bool {
	matched, err := filepath.Match(pattern, host)
	if err != nil {
		return false
	}
	return matched
}
