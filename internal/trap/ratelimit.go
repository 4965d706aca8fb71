package trap

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimit enforces a per-IP token bucket. Rejections look like the
// persona's own 429 page. Requests are recorded before this runs, so
// throttled visitors are still observed. Stale entries are pruned inline
// at most once a minute.
func (s *Server) rateLimit(rps float64, burst int) gin.HandlerFunc {
	if burst <= 0 {
		burst = max(1, int(rps))
	}
	var (
		mu        sync.Mutex
		limiters  = make(map[string]*ipLimiter)
		lastPrune = time.Now()
	)

	return func(c *gin.Context) {
		ip := c.ClientIP()
		now := time.Now()

		mu.Lock()
		if now.Sub(lastPrune) > time.Minute {
			for k, l := range limiters {
				if now.Sub(l.lastSeen) > 10*time.Minute {
					delete(limiters, k)
				}
			}
			lastPrune = now
		}
		l, ok := limiters[ip]
		if !ok {
			l = &ipLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
			limiters[ip] = l
		}
		l.lastSeen = now
		mu.Unlock()

		if !l.limiter.Allow() {
			c.Header("Retry-After", "1")
			s.write(c, s.engine.ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Retry after 1 second."))
			c.Abort()
			return
		}
		c.Next()
	}
}
