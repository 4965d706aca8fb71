package trap

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jmerrifield20/sundew/internal/metrics"
	"github.com/jmerrifield20/sundew/internal/persona"
)

// serveArtifact answers any unrouted request from the cache, or with the
// persona's not-found page.
func (s *Server) serveArtifact(c *gin.Context) {
	path, method := c.Request.URL.Path, c.Request.Method
	if c.GetBool(ctxOversized) {
		metrics.RecordLookup(false)
		s.write(c, s.engine.NotFound())
		return
	}

	a, ok := s.engine.GetResponse(path, method)
	if !ok && method == http.MethodHead {
		a, ok = s.engine.GetResponse(path, http.MethodGet)
	}
	metrics.RecordLookup(ok)
	if !ok {
		a = s.engine.NotFound()
	}
	s.write(c, a)
}

// write delays by the sampled latency, then renders a with the persona's
// headers and the request's placeholders filled in.
func (s *Server) write(c *gin.Context, a persona.Artifact) {
	if !s.delay(c) {
		return
	}
	r := s.replacer(c)
	s.decorate(c, r)
	for k, v := range a.Headers {
		c.Header(k, r.Replace(v))
	}
	if c.Request.Method == http.MethodHead {
		c.Header("Content-Type", a.ContentType)
		c.Status(a.StatusCode)
		return
	}
	c.Data(a.StatusCode, a.ContentType, []byte(r.Replace(a.Body)))
}

// decorate sets the persona's server and extra headers.
func (s *Server) decorate(c *gin.Context, r *strings.Replacer) {
	c.Header("Server", s.persona.ServerHeader)
	for k, v := range s.persona.ExtraHeaders {
		c.Header(k, r.Replace(v))
	}
}

// delay waits the sampled latency. It returns false when the client went
// away first, in which case nothing is written.
func (s *Server) delay(c *gin.Context) bool {
	if !s.cfg.ApplyLatency {
		return true
	}
	if err := wait(c.Request.Context(), s.engine.SampleLatency()); err != nil {
		s.logger.Debug("trap: client gone before response",
			zap.String("session_id", SessionID(c)), zap.Error(err))
		c.Abort()
		return false
	}
	return true
}

// wait blocks for d or until ctx is done, without holding any lock.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// replacer fills the runtime placeholders artifacts may carry.
func (s *Server) replacer(c *gin.Context) *strings.Replacer {
	now := time.Now().UTC()
	elapsed := time.Duration(0)
	if start, ok := c.Get(ctxStart); ok {
		elapsed = now.Sub(start.(time.Time))
	}
	return strings.NewReplacer(
		"{{timestamp}}", now.Format(time.RFC3339),
		"{{date}}", now.Format("2006-01-02"),
		"{{request_id}}", c.GetString(ctxRequestID),
		"{{source_ip}}", c.ClientIP(),
		"{{response_time_ms}}", strconv.FormatInt(elapsed.Milliseconds(), 10),
	)
}
