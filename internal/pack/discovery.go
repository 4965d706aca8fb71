package pack

import (
	"fmt"
	"strings"

	"github.com/jmerrifield20/sundew/internal/persona"
	"github.com/jmerrifield20/sundew/pkg/mcpmanifest"
)

// DiscoveryPaths are the well-known files agents and scanners probe first.
var DiscoveryPaths = []string{
	"/robots.txt",
	"/sitemap.xml",
	"/openapi.json",
	"/.well-known/ai-plugin.json",
	"/.well-known/mcp.json",
}

func discoveryArtifacts(p persona.Persona) []persona.Artifact {
	return []persona.Artifact{
		textArtifact("/robots.txt", "text/plain; charset=utf-8", robotsTxt(p), "robots.txt"),
		textArtifact("/sitemap.xml", "application/xml", sitemapXML(p), "sitemap"),
		jsonArtifact("/openapi.json", "GET", 200, openAPI(p), "OpenAPI document"),
		jsonArtifact("/.well-known/ai-plugin.json", "GET", 200, aiPlugin(p), "AI plugin manifest"),
		jsonArtifact("/.well-known/mcp.json", "GET", 200, mcpDiscovery(p), "MCP discovery manifest"),
	}
}

func robotsTxt(p persona.Persona) string {
	var b strings.Builder
	b.WriteString("User-agent: *\n")
	disallow := []string{p.Endpoint(""), "/admin/", "/internal/", "/.well-known/"}
	for _, e := range industryEndpoints(p.Industry)[:3] {
		disallow = append(disallow, p.Endpoint(e.path))
	}
	for _, d := range disallow {
		fmt.Fprintf(&b, "Disallow: %s\n", d)
	}
	fmt.Fprintf(&b, "\nSitemap: %s/sitemap.xml\n", p.BaseURL())
	return b.String()
}

func sitemapXML(p persona.Persona) string {
	urls := []string{
		p.BaseURL() + "/openapi.json",
		p.BaseURL() + "/.well-known/ai-plugin.json",
		p.BaseURL() + "/.well-known/mcp.json",
	}
	for _, e := range industryEndpoints(p.Industry) {
		if e.method == "GET" && !strings.Contains(e.path, "{") {
			urls = append(urls, p.BaseURL()+p.Endpoint(e.path))
		}
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">` + "\n")
	for _, u := range urls {
		fmt.Fprintf(&b, "  <url>\n    <loc>%s</loc>\n    <lastmod>{{date}}</lastmod>\n    <changefreq>weekly</changefreq>\n  </url>\n", u)
	}
	b.WriteString("</urlset>\n")
	return b.String()
}

func aiPlugin(p persona.Persona) map[string]any {
	return map[string]any{
		"schema_version": "v1",
		"name_for_human": p.CompanyName + " API",
		"name_for_model": strings.ToLower(p.CompanyName),
		"description_for_human": fmt.Sprintf("Access %s's %s data and services through a secure API.",
			p.CompanyName, p.DataTheme),
		"description_for_model": fmt.Sprintf("Plugin for interacting with %s's internal %s management system. Supports CRUD operations on %s with authentication.",
			p.CompanyName, p.DataTheme, p.DataTheme),
		"auth": map[string]any{
			"type":               "service_http",
			"authorization_type": "bearer",
		},
		"api": map[string]any{
			"type":                  "openapi",
			"url":                   p.BaseURL() + "/openapi.json",
			"is_user_authenticated": false,
		},
		"logo_url":       p.BaseURL() + "/logo.png",
		"contact_email":  "api-support@" + p.Domain(),
		"legal_info_url": "https://" + p.Domain() + "/legal",
	}
}

func mcpDiscovery(p persona.Persona) mcpmanifest.MCPManifest {
	return mcpmanifest.MCPManifest{
		SchemaVersion: mcpmanifest.ProtocolVersion,
		Name:          p.MCPServerName,
		Version:       "1.2.0",
		Description:   fmt.Sprintf("%s internal %s service accessible via Model Context Protocol.", p.CompanyName, p.DataTheme),
		Endpoint:      p.BaseURL() + "/mcp",
		Transport:     "http",
		Tools:         mcpTools(toolsFor(p)),
	}
}

func openAPI(p persona.Persona) map[string]any {
	paths := map[string]any{}
	for _, e := range append(themeEndpoints(p), industryEndpoints(p.Industry)...) {
		full := p.Endpoint(e.path)
		ops, ok := paths[full].(map[string]any)
		if !ok {
			ops = map[string]any{}
			paths[full] = ops
		}
		ops[strings.ToLower(e.method)] = map[string]any{
			"summary":  e.summary,
			"security": []map[string]any{{"default": []string{}}},
			"responses": map[string]any{
				"200": map[string]any{"description": "Successful response"},
				"401": map[string]any{"description": "Unauthorized"},
			},
		}
	}
	paths[p.Endpoint("auth/token")] = map[string]any{
		"post": map[string]any{
			"summary":   "Exchange credentials for an access token",
			"responses": map[string]any{"200": map[string]any{"description": "Token issued"}},
		},
	}

	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":       p.CompanyName + " API",
			"version":     "2.4.1",
			"description": fmt.Sprintf("Internal %s API for %s.", p.DataTheme, p.CompanyName),
			"contact":     map[string]any{"email": "api-support@" + p.Domain()},
		},
		"servers": []map[string]any{{"url": p.BaseURL()}},
		"paths":   paths,
		"components": map[string]any{
			"securitySchemes": map[string]any{"default": securityScheme(p)},
		},
	}
}

func securityScheme(p persona.Persona) map[string]any {
	switch p.AuthScheme {
	case "api_key_header":
		return map[string]any{"type": "apiKey", "in": "header", "name": "X-API-Key"}
	case "api_key_query":
		return map[string]any{"type": "apiKey", "in": "query", "name": "api_key"}
	case "basic":
		return map[string]any{"type": "http", "scheme": "basic"}
	case "oauth2":
		return map[string]any{
			"type": "oauth2",
			"flows": map[string]any{
				"clientCredentials": map[string]any{
					"tokenUrl": p.BaseURL() + p.Endpoint("auth/token"),
					"scopes":   map[string]string{"read": "Read access", "write": "Write access"},
				},
			},
		}
	default:
		return map[string]any{"type": "http", "scheme": "bearer", "bearerFormat": "JWT"}
	}
}
