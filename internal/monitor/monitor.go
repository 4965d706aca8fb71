// Package monitor serves the operator API: live session inspection,
// explicit session close, the active persona and Prometheus metrics. It runs
// on its own port, apart from the trap.
package monitor

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jmerrifield20/sundew/internal/classify"
	"github.com/jmerrifield20/sundew/internal/fingerprint"
	"github.com/jmerrifield20/sundew/internal/metrics"
	"github.com/jmerrifield20/sundew/internal/persona"
	"github.com/jmerrifield20/sundew/internal/session"
)

// ScopeClose allows finalizing sessions through the API.
const ScopeClose = "sessions:close"

// Sessions is the tracker surface the monitor reads.
type Sessions interface {
	List() []session.Summary
	Get(id string) (session.Snapshot, error)
	Estimate(id string) (classify.Result, error)
	Close(ctx context.Context, id string) (session.Verdict, error)
}

// VerdictReader lists stored verdicts, newest first.
type VerdictReader interface {
	Recent(ctx context.Context, limit int, label string) ([]session.Verdict, error)
}

// Config holds monitor configuration.
type Config struct {
	CORSOrigins []string
}

// Handler serves the monitor API.
type Handler struct {
	sessions Sessions
	engine   *persona.Engine
	verdicts VerdictReader
	tokens   *TokenIssuer
	cfg      Config
	logger   *zap.Logger
}

// New creates a Handler. tokens may be nil to disable authentication;
// verdicts may be nil when no queryable store is configured.
func New(sessions Sessions, engine *persona.Engine, verdicts VerdictReader, tokens *TokenIssuer, cfg Config, logger *zap.Logger) *Handler {
	return &Handler{
		sessions: sessions,
		engine:   engine,
		verdicts: verdicts,
		tokens:   tokens,
		cfg:      cfg,
		logger:   logger,
	}
}

// Router builds the monitor gin engine.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(h.logger))
	r.Use(metrics.PrometheusMiddleware())
	if len(h.cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     h.cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: !containsWildcard(h.cfg.CORSOrigins),
			MaxAge:           12 * time.Hour,
		}))
	}
	h.Register(r)
	return r
}

// Register mounts the monitor routes on r.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", metrics.Handler())

	v1 := r.Group("/api/v1", requireToken(h.tokens))
	{
		v1.GET("/persona", h.GetPersona)
		v1.GET("/sessions", h.ListSessions)
		v1.GET("/sessions/:id", h.GetSession)
		v1.POST("/sessions/:id/close", requireScope(h.tokens, ScopeClose), h.CloseSession)
		v1.GET("/verdicts", h.ListVerdicts)
	}
}

// GET /api/v1/persona
func (h *Handler) GetPersona(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"persona":   h.engine.Persona(),
		"artifacts": h.engine.Cache().Len(),
	})
}

// GET /api/v1/sessions
func (h *Handler) ListSessions(c *gin.Context) {
	list := h.sessions.List()
	if list == nil {
		list = []session.Summary{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": list, "count": len(list)})
}

// sessionDetail is a snapshot plus a live classification.
type sessionDetail struct {
	Session  session.Snapshot      `json:"session"`
	Estimate classify.Result       `json:"estimate"`
	Findings []fingerprint.Finding `json:"header_findings"`
}

// GET /api/v1/sessions/:id
func (h *Handler) GetSession(c *gin.Context) {
	id := c.Param("id")
	snap, err := h.sessions.Get(id)
	if err != nil {
		h.sessionError(c, err)
		return
	}
	est, err := h.sessions.Estimate(id)
	if err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionDetail{Session: snap, Estimate: est, Findings: findings(snap)})
}

// POST /api/v1/sessions/:id/close
func (h *Handler) CloseSession(c *gin.Context) {
	id := c.Param("id")
	v, err := h.sessions.Close(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			h.sessionError(c, err)
			return
		}
		// finalized, but the sink refused the verdict; the sweeper retries
		h.logger.Warn("monitor: verdict flush failed", zap.String("session_id", id), zap.Error(err))
		c.JSON(http.StatusAccepted, gin.H{"verdict": v, "flushed": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"verdict": v, "flushed": true})
}

// GET /api/v1/verdicts?limit=&label=
func (h *Handler) ListVerdicts(c *gin.Context) {
	if h.verdicts == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "no queryable verdict store configured"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	vs, err := h.verdicts.Recent(c.Request.Context(), limit, c.Query("label"))
	if err != nil {
		h.logger.Error("monitor: list verdicts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list verdicts"})
		return
	}
	if vs == nil {
		vs = []session.Verdict{}
	}
	c.JSON(http.StatusOK, gin.H{"verdicts": vs, "count": len(vs)})
}

func (h *Handler) sessionError(c *gin.Context, err error) {
	if errors.Is(err, session.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	h.logger.Error("monitor: session lookup", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

// findings lists the distinct header rules that fired across the session's
// HTTP events.
func findings(snap session.Snapshot) []fingerprint.Finding {
	seen := make(map[string]bool)
	out := []fingerprint.Finding{}
	for _, ev := range snap.Events {
		if ev.Headers == nil {
			continue
		}
		for _, f := range fingerprint.HeaderFindings(ev.Headers) {
			if !seen[f.Rule] {
				seen[f.Rule] = true
				out = append(out, f)
			}
		}
	}
	return out
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
