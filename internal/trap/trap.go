// Package trap is the deceptive listener. It records every inbound request
// or MCP message as an observed event before answering it from the persona's
// pre-rendered artifacts.
package trap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jmerrifield20/sundew/internal/event"
	"github.com/jmerrifield20/sundew/internal/persona"
	"github.com/jmerrifield20/sundew/internal/session"
)

// Tracker is the session bookkeeping the listener feeds.
type Tracker interface {
	Record(ev event.Event) (string, error)
	Close(ctx context.Context, id string) (session.Verdict, error)
}

// Config holds listener configuration.
type Config struct {
	MCPPath        string
	MaxBodyBytes   int64
	ApplyLatency   bool
	RateLimitRPS   float64
	RateLimitBurst int
	TrustedProxies []string
}

// Gin context keys set by the observe middleware.
const (
	ctxSessionID = "sundew.session_id"
	ctxRequestID = "sundew.request_id"
	ctxStart     = "sundew.start"
	ctxBody      = "sundew.body"
	ctxOversized = "sundew.oversized"
)

// Server answers requests on behalf of the active persona.
type Server struct {
	engine  *persona.Engine
	persona persona.Persona
	tracker Tracker
	cfg     Config
	logger  *zap.Logger
}

// New creates a Server. Zero config values fall back to "/mcp" and a 1 MiB
// body limit.
func New(engine *persona.Engine, tracker Tracker, cfg Config, logger *zap.Logger) *Server {
	if cfg.MCPPath == "" {
		cfg.MCPPath = "/mcp"
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return &Server{
		engine:  engine,
		persona: engine.Persona(),
		tracker: tracker,
		cfg:     cfg,
		logger:  logger,
	}
}

// Router returns a gin engine with only the trap's routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	if err := r.SetTrustedProxies(s.cfg.TrustedProxies); err != nil {
		s.logger.Warn("trap: invalid trusted proxies, trusting none", zap.Error(err))
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery())
	s.Register(r)
	return r
}

// Register mounts the trap on r. Every path not otherwise routed is served
// from the artifact cache.
func (s *Server) Register(r *gin.Engine) {
	r.Use(s.observe())
	if s.cfg.RateLimitRPS > 0 {
		r.Use(s.rateLimit(s.cfg.RateLimitRPS, s.cfg.RateLimitBurst))
	}
	r.POST(s.cfg.MCPPath, s.handleMCP)
	r.DELETE(s.cfg.MCPPath, s.handleMCPEnd)
	r.NoRoute(s.serveArtifact)
}

// VisitorKey derives the session key: the client address plus a short hash
// of the User-Agent, so distinct clients behind one NAT stay apart.
func VisitorKey(clientIP, userAgent string) string {
	return fmt.Sprintf("%s|%08x", clientIP, uint32(xxhash.Sum64String(userAgent)))
}

// SessionID returns the session the current request was recorded under.
func SessionID(c *gin.Context) string {
	return c.GetString(ctxSessionID)
}

// observe normalises the request into an event and records it before any
// handler runs.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		body, oversized := readBody(c.Request, s.cfg.MaxBodyBytes)

		ev := event.Event{
			Key:        VisitorKey(c.ClientIP(), c.Request.UserAgent()),
			Timestamp:  start.UTC(),
			Method:     c.Request.Method,
			Path:       c.Request.URL.Path,
			Headers:    c.Request.Header.Clone(),
			Body:       string(body),
			Transport:  event.TransportHTTP,
			RemoteAddr: c.Request.RemoteAddr,
		}
		if !oversized && c.Request.Method == http.MethodPost && c.Request.URL.Path == s.cfg.MCPPath {
			if m, ok := rpcMethod(body); ok {
				ev.Transport = event.TransportProtocol
				ev.Path = m
			}
		}

		id, err := s.tracker.Record(ev)
		if err != nil {
			s.logger.Warn("trap: event not recorded", zap.String("path", ev.Path), zap.Error(err))
		} else {
			c.Set(ctxSessionID, id)
		}
		c.Set(ctxRequestID, uuid.NewString())
		c.Set(ctxStart, start)
		c.Set(ctxBody, body)
		c.Set(ctxOversized, oversized)

		s.logger.Debug("trap: request",
			zap.String("session_id", id),
			zap.String("method", ev.Method),
			zap.String("path", ev.Path),
			zap.String("transport", ev.Transport.String()),
		)
		c.Next()
	}
}

// readBody reads at most limit bytes and restores the body for handlers.
// oversized reports that the body was cut short.
func readBody(r *http.Request, limit int64) (body []byte, oversized bool) {
	if r.Body == nil {
		return nil, false
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	r.Body.Close()
	if err != nil {
		data = nil
	}
	if int64(len(data)) > limit {
		data, oversized = data[:limit], true
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, oversized
}

// rpcMethod reports the method of a single JSON-RPC 2.0 envelope.
func rpcMethod(body []byte) (string, bool) {
	var env struct {
		JSONRPC string `json:"jsonrpc"`
		Method  string `json:"method"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return "", false
	}
	if env.JSONRPC != "2.0" || env.Method == "" {
		return "", false
	}
	return env.Method, true
}
