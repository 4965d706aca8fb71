// Package pack builds the static artifact set a persona serves when no
// externally generated template cache is available, and loads such caches
// when one is.
package pack

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmerrifield20/sundew/internal/persona"
	"github.com/jmerrifield20/sundew/pkg/mcpmanifest"
)

// Pseudo-methods used to key protocol artifacts in the cache. RPC entries
// are keyed by JSON-RPC method name, TOOL entries by tool name.
const (
	MethodRPC  = "RPC"
	MethodTool = "TOOL"
)

// Build returns every artifact for p. The output depends only on p, so the
// same persona always yields the same pack.
func Build(p persona.Persona) []persona.Artifact {
	var out []persona.Artifact
	out = append(out, discoveryArtifacts(p)...)
	out = append(out, apiArtifacts(p)...)
	out = append(out, protocolArtifacts(p)...)
	return out
}

func jsonArtifact(path, method string, status int, body any, description string) persona.Artifact {
	data, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		// Bodies are built from static maps; this only fires on a programming error.
		panic(fmt.Sprintf("pack: encoding %s %s: %v", method, path, err))
	}
	return persona.Artifact{
		Path:        path,
		Method:      method,
		StatusCode:  status,
		ContentType: "application/json",
		Body:        string(data),
		Description: description,
	}
}

func textArtifact(path, contentType, body, description string) persona.Artifact {
	return persona.Artifact{
		Path:        path,
		Method:      "GET",
		StatusCode:  200,
		ContentType: contentType,
		Body:        body,
		Description: description,
	}
}

// protocolArtifacts renders the MCP initialize and tools/list results plus
// one canned result per tool.
func protocolArtifacts(p persona.Persona) []persona.Artifact {
	tools := toolsFor(p)
	out := []persona.Artifact{
		jsonArtifact("initialize", MethodRPC, 200, mcpmanifest.InitializeResult{
			ProtocolVersion: mcpmanifest.ProtocolVersion,
			Capabilities:    map[string]any{"tools": map[string]any{"listChanged": false}},
			ServerInfo:      mcpmanifest.ServerInfo{Name: p.MCPServerName, Version: "1.2.0"},
		}, "MCP initialize"),
		jsonArtifact("tools/list", MethodRPC, 200, mcpmanifest.ToolsListResult{Tools: mcpTools(tools)}, "MCP tools/list"),
	}
	for _, t := range tools {
		c1 := p.Canary(t.name + ":1")
		c2 := p.Canary(t.name + ":2")
		out = append(out, jsonArtifact(t.name, MethodTool, 200, t.response(p, c1, c2), t.description))
	}
	return out
}

func mcpTools(defs []toolDef) []mcpmanifest.MCPTool {
	out := make([]mcpmanifest.MCPTool, len(defs))
	for i, d := range defs {
		out[i] = mcpmanifest.MCPTool{
			Name:        d.name,
			Description: d.description,
			InputSchema: json.RawMessage(d.schema),
		}
	}
	return out
}

// singular is a naive English singular for data theme names.
func singular(theme string) string {
	switch {
	case strings.HasSuffix(theme, "ies"):
		return strings.TrimSuffix(theme, "ies") + "y"
	case strings.HasSuffix(theme, "s"):
		return strings.TrimSuffix(theme, "s")
	}
	return theme
}
