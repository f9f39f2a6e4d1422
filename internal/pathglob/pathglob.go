// Package pathglob matches slash-separated paths against glob patterns the
// way exclusion lists expect: a relative pattern matches the trailing
// components of a path, an absolute pattern must match the whole path, and
// '*' never crosses a '/'.
package pathglob

import (
	"path"
	"strings"
	"sync"

	"github.com/gobwas/glob"
)

var cache sync.Map // pattern -> glob.Glob (nil when the pattern does not compile)

func compile(pattern string) glob.Glob {
	if g, ok := cache.Load(pattern); ok {
		if g == nil {
			return nil
		}
		return g.(glob.Glob)
	}
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		cache.Store(pattern, nil)
		return nil
	}
	cache.Store(pattern, g)
	return g
}

// Valid reports whether pattern compiles.
func Valid(pattern string) bool {
	return compile(strings.TrimPrefix(pattern, "/")) != nil
}

// MatchOne reports whether p matches pattern.
func MatchOne(p, pattern string) bool {
	p = path.Clean(strings.ReplaceAll(p, "\\", "/"))
	if pattern == "" || p == "." {
		return false
	}

	if strings.HasPrefix(pattern, "/") {
		g := compile(strings.TrimPrefix(pattern, "/"))
		return g != nil && g.Match(strings.TrimPrefix(p, "/"))
	}

	g := compile(pattern)
	if g == nil {
		return false
	}

	parts := strings.Split(strings.TrimPrefix(p, "/"), "/")
	n := strings.Count(strings.TrimSuffix(pattern, "/"), "/") + 1
	if n > len(parts) {
		return false
	}
	return g.Match(strings.Join(parts[len(parts)-n:], "/"))
}

// Match returns the first pattern matching p, or "" when none does. With
// recursive set, every parent directory of p is tried as well.
func Match(p string, patterns []string, recursive bool) string {
	if len(patterns) == 0 {
		return ""
	}

	p = path.Clean(strings.ReplaceAll(p, "\\", "/"))
	candidates := []string{p}
	if recursive {
		for dir := path.Dir(p); dir != "." && dir != "/" && dir != ""; dir = path.Dir(dir) {
			candidates = append(candidates, dir)
		}
	}

	for _, c := range candidates {
		for _, pattern := range patterns {
			if MatchOne(c, pattern) {
				return pattern
			}
		}
	}
	return ""
}
