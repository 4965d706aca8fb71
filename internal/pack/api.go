package pack

import (
	"fmt"
	"strings"

	"github.com/jmerrifield20/sundew/internal/persona"
)

type bodyKind int

const (
	kindList bodyKind = iota
	kindItem
	kindCreate
	kindDelete
	kindSecrets
	kindKeys
)

type endpoint struct {
	path    string
	method  string
	summary string
	kind    bodyKind
}

var industryTable = map[string][]endpoint{
	"fintech": {
		{"transactions", "GET", "List transactions", kindList},
		{"accounts", "GET", "List accounts", kindList},
		{"config", "GET", "Get service configuration", kindSecrets},
		{"transactions/{id}", "GET", "Get transaction by ID", kindItem},
		{"accounts/{id}", "GET", "Get account details", kindItem},
		{"accounts/{id}/balance", "GET", "Get account balance", kindItem},
		{"transfers", "POST", "Create a transfer", kindCreate},
		{"customers/{id}", "GET", "Get customer profile", kindItem},
	},
	"saas": {
		{"users", "GET", "List users", kindList},
		{"api-keys", "GET", "List API keys", kindKeys},
		{"deployments", "POST", "Trigger deployment", kindCreate},
		{"users/{id}", "GET", "Get user by ID", kindItem},
		{"workspaces", "GET", "List workspaces", kindList},
		{"workspaces/{id}", "GET", "Get workspace details", kindItem},
		{"api-keys", "POST", "Create API key", kindCreate},
		{"logs", "GET", "Fetch application logs", kindList},
	},
	"healthcare": {
		{"patients", "GET", "List patients", kindList},
		{"prescriptions", "GET", "List prescriptions", kindList},
		{"audit-log", "GET", "View audit trail", kindList},
		{"patients/{id}", "GET", "Get patient record", kindItem},
		{"prescriptions/{id}", "GET", "Get prescription", kindItem},
		{"reports", "POST", "Generate report", kindCreate},
		{"providers", "GET", "List providers", kindList},
		{"appointments", "GET", "List appointments", kindList},
	},
	"ecommerce": {
		{"orders", "GET", "List orders", kindList},
		{"inventory/{sku}", "GET", "Check inventory", kindItem},
		{"refunds", "POST", "Process refund", kindCreate},
		{"products", "GET", "List products", kindList},
		{"products/{id}", "GET", "Get product details", kindItem},
		{"orders/{id}", "GET", "Get order details", kindItem},
		{"cart", "GET", "Get current cart", kindItem},
		{"cart/items", "POST", "Add item to cart", kindCreate},
	},
	"devtools": {
		{"secrets", "GET", "List secrets", kindSecrets},
		{"builds", "GET", "List builds", kindList},
		{"pipelines", "GET", "List pipelines", kindList},
		{"repositories", "GET", "List repositories", kindList},
		{"repositories/{id}", "GET", "Get repository", kindItem},
		{"builds/{id}", "GET", "Get build status", kindItem},
		{"secrets/{key}", "GET", "Get secret value", kindSecrets},
		{"deployments", "POST", "Trigger deployment", kindCreate},
	},
	"logistics": {
		{"shipments", "GET", "List shipments", kindList},
		{"warehouses", "GET", "List warehouses", kindList},
		{"routes/optimize", "POST", "Optimize route", kindCreate},
		{"shipments/{id}", "GET", "Get shipment details", kindItem},
		{"shipments", "POST", "Create shipment", kindCreate},
		{"tracking/{number}", "GET", "Track shipment", kindItem},
		{"warehouses/{id}/inventory", "GET", "Warehouse inventory", kindList},
		{"carriers", "GET", "List carriers", kindList},
	},
}

func industryEndpoints(industry string) []endpoint {
	if eps, ok := industryTable[industry]; ok {
		return eps
	}
	return industryTable["saas"]
}

// themeEndpoints is the CRUD surface over the persona's data theme.
func themeEndpoints(p persona.Persona) []endpoint {
	t := p.DataTheme
	one := singular(t)
	return []endpoint{
		{t, "GET", "List " + t, kindList},
		{t, "POST", "Create a " + one, kindCreate},
		{t + "/{id}", "GET", "Get a " + one, kindItem},
		{t + "/{id}", "PUT", "Update a " + one, kindItem},
		{t + "/{id}", "DELETE", "Delete a " + one, kindDelete},
	}
}

func apiArtifacts(p persona.Persona) []persona.Artifact {
	var out []persona.Artifact
	for _, e := range append(themeEndpoints(p), industryEndpoints(p.Industry)...) {
		out = append(out, endpointArtifact(p, e))
	}

	health := map[string]any{"status": "ok", "version": "2.4.1", "timestamp": "{{timestamp}}"}
	out = append(out,
		jsonArtifact("/health", "GET", 200, health, "health check"),
		jsonArtifact(p.Endpoint("health"), "GET", 200, health, "health check"),
		jsonArtifact(p.Endpoint("auth/token"), "POST", 200, map[string]any{
			"access_token": "sundew-fake-jwt-" + p.Canary("access_token"),
			"token_type":   "Bearer",
			"expires_in":   3600,
			"scope":        "read write",
		}, "token endpoint"),
		jsonArtifact("/internal/config", "GET", 200, configResponse(p, p.Canary("internal_config"), ""), "config leak"),
		textArtifact("/.env", "text/plain; charset=utf-8", dotEnv(p), "environment file"),
	)

	switch p.APIStyle {
	case "graphql":
		out = append(out, jsonArtifact("/graphql", "POST", 200, map[string]any{
			"data": map[string]any{camel(p.DataTheme): listBody(p, p.DataTheme)["data"]},
		}, "GraphQL endpoint"))
	case "jsonrpc":
		out = append(out, jsonArtifact("/rpc", "POST", 200, map[string]any{
			"jsonrpc": "2.0",
			"id":      1,
			"result":  listBody(p, p.DataTheme),
		}, "JSON-RPC endpoint"))
	}
	return out
}

func endpointArtifact(p persona.Persona, e endpoint) persona.Artifact {
	path := p.Endpoint(e.path)
	resource := strings.SplitN(e.path, "/", 2)[0]
	switch e.kind {
	case kindItem:
		return jsonArtifact(path, e.method, 200, record(p, resource, e.path), e.summary)
	case kindCreate:
		r := record(p, resource, e.method+" "+e.path)
		r["status"] = "created"
		return jsonArtifact(path, e.method, 201, r, e.summary)
	case kindDelete:
		return jsonArtifact(path, e.method, 200, map[string]any{"deleted": true, "id": idPrefix(resource) + p.Canary("delete:"+e.path)}, e.summary)
	case kindSecrets:
		return jsonArtifact(path, e.method, 200, configResponse(p, p.Canary(e.path), ""), e.summary)
	case kindKeys:
		return jsonArtifact(path, e.method, 200, map[string]any{
			"data": []map[string]any{
				{"id": "key_" + p.Canary("key:1"), "name": "Production API Key", "key": "sk-sundew-FAKE-" + p.Canary("api_key"), "created_at": "{{timestamp}}"},
				{"id": "key_" + p.Canary("key:2"), "name": "CI/CD Pipeline Key", "key": "sk-sundew-FAKE-" + p.Canary("admin_key"), "created_at": "{{timestamp}}"},
			},
		}, e.summary)
	default:
		return jsonArtifact(path, e.method, 200, listBody(p, resource), e.summary)
	}
}

func listBody(p persona.Persona, resource string) map[string]any {
	return map[string]any{
		"data": []map[string]any{
			record(p, resource, resource+":1"),
			record(p, resource, resource+":2"),
			record(p, resource, resource+":3"),
		},
		"total":    3,
		"page":     1,
		"per_page": 25,
	}
}

func record(p persona.Persona, resource, salt string) map[string]any {
	return map[string]any{
		"id":         idPrefix(resource) + p.Canary(salt),
		"object":     singular(resource),
		"status":     "active",
		"owner":      "ops@" + p.Domain(),
		"created_at": "{{timestamp}}",
		"updated_at": "{{timestamp}}",
	}
}

// idPrefix turns "transactions" into "tra_".
func idPrefix(resource string) string {
	r := strings.ReplaceAll(resource, "-", "")
	if len(r) > 3 {
		r = r[:3]
	}
	return r + "_"
}

func camel(s string) string {
	parts := strings.Split(s, "-")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}

func dotEnv(p persona.Persona) string {
	var b strings.Builder
	fmt.Fprintf(&b, "APP_ENV=production\n")
	fmt.Fprintf(&b, "APP_URL=%s\n", p.BaseURL())
	fmt.Fprintf(&b, "DATABASE_URL=%s\n", p.DatabaseURL())
	fmt.Fprintf(&b, "REDIS_URL=%s\n", p.RedisURL())
	fmt.Fprintf(&b, "API_KEY=sk-sundew-FAKE-%s\n", p.Canary("api_key"))
	fmt.Fprintf(&b, "WEBHOOK_SECRET=whsec-sundew-FAKE-%s\n", p.Canary("webhook"))
	fmt.Fprintf(&b, "JWT_SECRET=sundew-fake-jwt-%s\n", p.Canary("jwt"))
	return b.String()
}
