package persona

import (
	"maps"
	"sort"
	"strings"
)

// Artifact is one pre-rendered response.
type Artifact struct {
	Path        string            `json:"path"`
	Method      string            `json:"method"`
	StatusCode  int               `json:"status_code"`
	ContentType string            `json:"content_type"`
	Headers     map[string]string `json:"headers,omitempty"`
	Body        string            `json:"body"`
	Description string            `json:"description,omitempty"`
}

// Cache maps (path, method) to artifacts. It is built once by NewCache and
// is read-only afterwards; a nil *Cache is valid and misses every lookup.
//
// Artifact paths may contain "{name}" segments that match any single path
// segment. Exact paths always win over patterns.
type Cache struct {
	exact    map[string]Artifact
	patterns []pattern
	all      []Artifact
}

type pattern struct {
	method   string
	segments []string
	wild     int
	artifact Artifact
}

// NewCache indexes artifacts. A later artifact with the same path and
// method replaces an earlier one.
func NewCache(artifacts []Artifact) *Cache {
	c := &Cache{exact: make(map[string]Artifact, len(artifacts))}
	byKey := make(map[string]int)
	for _, a := range artifacts {
		a.Method = normalizeMethod(a.Method)
		a.Path = normalizePath(a.Path)
		a.Headers = maps.Clone(a.Headers)
		k := cacheKey(a.Path, a.Method)
		if i, ok := byKey[k]; ok {
			c.all[i] = a
		} else {
			byKey[k] = len(c.all)
			c.all = append(c.all, a)
		}
	}

	for _, a := range c.all {
		segs := splitPath(a.Path)
		wild := 0
		for _, s := range segs {
			if isParam(s) {
				wild++
			}
		}
		if wild == 0 {
			c.exact[cacheKey(a.Path, a.Method)] = a
			continue
		}
		c.patterns = append(c.patterns, pattern{method: a.Method, segments: segs, wild: wild, artifact: a})
	}
	sort.SliceStable(c.patterns, func(i, j int) bool {
		return c.patterns[i].wild < c.patterns[j].wild
	})
	return c
}

// Lookup returns the artifact for path and method. A miss is a normal
// outcome, reported as ok == false.
func (c *Cache) Lookup(path, method string) (Artifact, bool) {
	if c == nil {
		return Artifact{}, false
	}
	method = normalizeMethod(method)
	path = normalizePath(path)

	if a, ok := c.exact[cacheKey(path, method)]; ok {
		return clone(a), true
	}
	segs := splitPath(path)
	for _, p := range c.patterns {
		if p.method == method && p.matches(segs) {
			return clone(p.artifact), true
		}
	}
	return Artifact{}, false
}

// Len reports the number of distinct (path, method) entries.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return len(c.all)
}

// Artifacts returns a copy of every entry in insertion order.
func (c *Cache) Artifacts() []Artifact {
	if c == nil {
		return nil
	}
	out := make([]Artifact, len(c.all))
	for i, a := range c.all {
		out[i] = clone(a)
	}
	return out
}

func (p pattern) matches(segs []string) bool {
	if len(segs) != len(p.segments) {
		return false
	}
	for i, s := range p.segments {
		if isParam(s) {
			if segs[i] == "" {
				return false
			}
			continue
		}
		if s != segs[i] {
			return false
		}
	}
	return true
}

func clone(a Artifact) Artifact {
	a.Headers = maps.Clone(a.Headers)
	return a
}

func cacheKey(path, method string) string {
	return method + " " + path
}

func normalizeMethod(m string) string {
	if m == "" {
		return "GET"
	}
	return strings.ToUpper(m)
}

func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			return "/"
		}
	}
	return p
}

func splitPath(p string) []string {
	return strings.Split(strings.TrimPrefix(p, "/"), "/")
}

func isParam(seg string) bool {
	return len(seg) > 2 && seg[0] == '{' && seg[len(seg)-1] == '}'
}
