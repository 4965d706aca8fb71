package fingerprint

import (
	"regexp"
	"slices"
	"strings"

	"github.com/jmerrifield20/sundew/internal/event"
)

// discoveryPaths are the well-known files an agent probes before acting.
var discoveryPaths = map[string]bool{
	"/robots.txt":                 true,
	"/sitemap.xml":                true,
	"/openapi.json":               true,
	"/.well-known/ai-plugin.json": true,
	"/.well-known/mcp.json":       true,
}

// systematicPatterns match paths that scanners try regardless of what the
// site links to.
var systematicPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^/\.(well-known|git|env|svn|DS_Store)`),
	regexp.MustCompile(`^/(robots\.txt|sitemap\.xml|openapi\.json)`),
	regexp.MustCompile(`^/api/(v\d+/)?[a-z]+$`),
	regexp.MustCompile(`^/(admin|internal|debug|config|status|health)`),
}

// PathEnumeration scores how systematically the HTTP paths of a session were
// visited. Protocol events are ignored; fewer than two paths score 0.
func PathEnumeration(events []event.Event) float64 {
	var paths []string
	for _, e := range events {
		if e.Transport == event.TransportHTTP {
			paths = append(paths, normalize(e.Path))
		}
	}
	if len(paths) < 2 {
		return 0
	}

	// Unique paths in first-visit order.
	var unique []string
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		if !seen[p] {
			seen[p] = true
			unique = append(unique, p)
		}
	}

	points := 0

	discovered := 0
	for _, p := range unique {
		if discoveryPaths[p] {
			discovered++
		}
	}
	switch {
	case discovered >= 2:
		points += 40
	case discovered == 1:
		points += 20
	}

	systematic := 0
	for _, p := range unique {
		for _, re := range systematicPatterns {
			if re.MatchString(p) {
				systematic++
				break
			}
		}
	}
	switch {
	case systematic >= 3:
		points += 20
	case systematic >= 1:
		points += 10
	}

	if len(unique) >= 2 && slices.IsSorted(unique) {
		points += 20
	}

	if len(unique) >= 3 && breadthFirst(unique) {
		points += 10
	}

	ratio := float64(len(unique)) / float64(len(paths))
	switch {
	case ratio > 0.9:
		points += 20
	case ratio > 0.7:
		points += 10
	}

	return fromPoints(points)
}

// breadthFirst reports whether path depth never decreases across visits.
func breadthFirst(paths []string) bool {
	prev := -1
	for _, p := range paths {
		d := depth(p)
		if d < prev {
			return false
		}
		prev = d
	}
	return true
}

func depth(p string) int {
	t := strings.Trim(p, "/")
	if t == "" {
		return 0
	}
	return strings.Count(t, "/") + 1
}

// normalize drops the query string and a trailing slash.
func normalize(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return p
}
