package persona

import (
	"fmt"
	"maps"
	"net/http"
	"time"
)

// Engine pairs a persona with its artifact cache and latency profile. All
// methods are safe for concurrent use and none of them block.
type Engine struct {
	persona Persona
	cache   *Cache
	sampler *LatencySampler
}

// NewEngine wraps an already validated persona and cache. A nil sampler
// uses the uniform distribution over the persona's bounds.
func NewEngine(p Persona, cache *Cache, sampler *LatencySampler) *Engine {
	if sampler == nil {
		sampler = NewLatencySampler(p, Uniform, nil)
	}
	p.ExtraHeaders = maps.Clone(p.ExtraHeaders)
	return &Engine{persona: p, cache: cache, sampler: sampler}
}

// Persona returns a copy of the active persona.
func (e *Engine) Persona() Persona {
	p := e.persona
	p.ExtraHeaders = maps.Clone(p.ExtraHeaders)
	return p
}

// Cache exposes the read-only artifact cache.
func (e *Engine) Cache() *Cache { return e.cache }

// GetResponse returns the pre-rendered artifact for path and method. It
// never generates content; a miss returns ok == false.
func (e *Engine) GetResponse(path, method string) (Artifact, bool) {
	return e.cache.Lookup(path, method)
}

// SampleLatency draws the delay to apply before responding. The caller
// decides how to wait; the engine never sleeps.
func (e *Engine) SampleLatency() time.Duration {
	return e.sampler.Sample()
}

// NotFound is the persona-styled response served when GetResponse misses.
func (e *Engine) NotFound() Artifact {
	return e.ErrorResponse(http.StatusNotFound, "The requested resource was not found.")
}

// ErrorResponse renders a generic error in the persona's error style.
func (e *Engine) ErrorResponse(status int, detail string) Artifact {
	title := http.StatusText(status)
	a := Artifact{StatusCode: status, Description: "generic " + title}

	switch e.persona.ErrorStyle {
	case "rfc7807":
		a.ContentType = "application/problem+json"
		a.Body = fmt.Sprintf(`{"type":"about:blank","title":%q,"status":%d,"detail":%q,"trace_id":"{{request_id}}"}`,
			title, status, detail)
	case "html":
		a.ContentType = "text/html; charset=utf-8"
		a.Body = fmt.Sprintf("<html>\r\n<head><title>%d %s</title></head>\r\n<body>\r\n<center><h1>%d %s</h1></center>\r\n<hr><center>%s</center>\r\n</body>\r\n</html>\r\n",
			status, title, status, title, e.persona.ServerHeader)
	case "xml":
		a.ContentType = "application/xml"
		a.Body = fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>`+"\n"+
			`<Error><Code>%s</Code><Message>%s</Message><RequestId>{{request_id}}</RequestId></Error>`,
			errorCode(title), detail)
	default:
		a.ContentType = "application/json"
		a.Body = fmt.Sprintf(`{"error":%q,"message":%q,"status":%d}`, errorCode(title), detail, status)
	}
	return a
}

// errorCode turns "Not Found" into "not_found".
func errorCode(title string) string {
	b := make([]byte, 0, len(title))
	for i := 0; i < len(title); i++ {
		c := title[i]
		switch {
		case c >= 'A' && c <= 'Z':
			b = append(b, c+'a'-'A')
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b = append(b, c)
		case c == ' ' || c == '-':
			b = append(b, '_')
		}
	}
	return string(b)
}
