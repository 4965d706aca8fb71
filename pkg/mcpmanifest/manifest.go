// Package mcpmanifest defines the MCP (Model Context Protocol) payload types
// a sundew deployment advertises and answers with.
//
// The discovery document is served at a stable URL:
//
//	GET /.well-known/mcp.json
//
// and the same tool definitions are returned by the JSON-RPC tools/list call.
package mcpmanifest

import "encoding/json"

// ProtocolVersion is the MCP revision announced during initialize.
const ProtocolVersion = "2024-11-05"

// MCPTool describes a tool an MCP server exposes.
type MCPTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"` // JSON Schema object
}

// MCPResource describes a resource an MCP server exposes.
type MCPResource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MimeType    string `json:"mimeType,omitempty"`
}

// MCPManifest is the discovery document for an MCP server.
// See https://spec.modelcontextprotocol.io/specification/ for the base schema.
type MCPManifest struct {
	SchemaVersion string        `json:"schemaVersion"` // "2024-11-05"
	Name          string        `json:"name"`
	Version       string        `json:"version"`
	Description   string        `json:"description"`
	Endpoint      string        `json:"endpoint"`
	Transport     string        `json:"transport"`
	Tools         []MCPTool     `json:"tools,omitempty"`
	Resources     []MCPResource `json:"resources,omitempty"`
}

// ServerInfo names the server in an initialize result.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult is the result of the initialize call.
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      ServerInfo     `json:"serverInfo"`
}

// ToolsListResult is the result of tools/list.
type ToolsListResult struct {
	Tools []MCPTool `json:"tools"`
}

// Content is one block of a tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallToolResult is the result of tools/call.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError"`
}

// TextResult wraps text as a single-block tool result.
func TextResult(text string, isError bool) CallToolResult {
	return CallToolResult{Content: []Content{{Type: "text", Text: text}}, IsError: isError}
}
