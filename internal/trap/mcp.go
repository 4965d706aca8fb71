package trap

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jmerrifield20/sundew/internal/metrics"
	"github.com/jmerrifield20/sundew/internal/pack"
	"github.com/jmerrifield20/sundew/pkg/mcpmanifest"
)

// rpcRequest is an inbound JSON-RPC 2.0 message.
type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"` // nil = notification
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// rpcResponse is an outbound JSON-RPC 2.0 message.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Standard JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

// handleMCP answers MCP messages over HTTP POST from the protocol artifacts.
func (s *Server) handleMCP(c *gin.Context) {
	body, _ := c.Get(ctxBody)
	raw, _ := body.([]byte)
	if c.GetBool(ctxOversized) {
		s.writeRPC(c, rpcResponse{ID: nullID, Error: &rpcError{Code: codeParseError, Message: "Parse error"}})
		return
	}

	var req rpcRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		s.writeRPC(c, rpcResponse{ID: nullID, Error: &rpcError{Code: codeParseError, Message: "Parse error"}})
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		s.writeRPC(c, rpcResponse{ID: idOrNull(req.ID), Error: &rpcError{Code: codeInvalidRequest, Message: "Invalid Request"}})
		return
	}

	// Notifications get no JSON-RPC response.
	if len(req.ID) == 0 || string(req.ID) == "null" {
		if !s.delay(c) {
			return
		}
		s.decorate(c, s.replacer(c))
		c.Status(http.StatusAccepted)
		return
	}

	resp := rpcResponse{ID: req.ID}
	switch req.Method {
	case "initialize":
		resp.Result, resp.Error = s.rpcArtifact(c, req.Method)
		if id := SessionID(c); id != "" && resp.Error == nil {
			c.Header("Mcp-Session-Id", id)
		}
	case "tools/list":
		resp.Result, resp.Error = s.rpcArtifact(c, req.Method)
	case "ping":
		resp.Result = map[string]any{}
	case "tools/call":
		resp.Result, resp.Error = s.callTool(c, req.Params)
	default:
		resp.Error = &rpcError{Code: codeMethodNotFound, Message: fmt.Sprintf("Method not found: %s", req.Method)}
	}
	s.writeRPC(c, resp)
}

// handleMCPEnd is the protocol-level session end: the visitor's session is
// finalized right away instead of waiting for the idle sweep.
func (s *Server) handleMCPEnd(c *gin.Context) {
	id := SessionID(c)
	if id != "" {
		v, err := s.tracker.Close(c.Request.Context(), id)
		if err != nil {
			s.logger.Warn("trap: close session", zap.String("session_id", id), zap.Error(err))
		} else {
			s.logger.Info("trap: protocol session ended",
				zap.String("session_id", id), zap.String("label", string(v.Label)))
		}
	}
	if !s.delay(c) {
		return
	}
	s.decorate(c, s.replacer(c))
	c.Status(http.StatusNoContent)
}

func (s *Server) rpcArtifact(c *gin.Context, method string) (any, *rpcError) {
	a, ok := s.engine.GetResponse(method, pack.MethodRPC)
	metrics.RecordLookup(ok)
	if !ok {
		return nil, &rpcError{Code: codeMethodNotFound, Message: fmt.Sprintf("Method not found: %s", method)}
	}
	return json.RawMessage(s.replacer(c).Replace(a.Body)), nil
}

func (s *Server) callTool(c *gin.Context, params json.RawMessage) (any, *rpcError) {
	var p struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(params, &p); err != nil || strings.TrimSpace(p.Name) == "" {
		return nil, &rpcError{Code: codeInvalidParams, Message: "Invalid params"}
	}

	a, ok := s.engine.GetResponse(p.Name, pack.MethodTool)
	metrics.RecordLookup(ok)
	if !ok {
		return mcpmanifest.TextResult(fmt.Sprintf("Unknown tool: %s", p.Name), true), nil
	}
	return mcpmanifest.TextResult(s.replacer(c).Replace(a.Body), a.StatusCode >= 400), nil
}

func (s *Server) writeRPC(c *gin.Context, resp rpcResponse) {
	if !s.delay(c) {
		return
	}
	resp.JSONRPC = "2.0"
	s.decorate(c, s.replacer(c))
	c.JSON(http.StatusOK, resp)
}

var nullID = json.RawMessage("null")

func idOrNull(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return nullID
	}
	return id
}
