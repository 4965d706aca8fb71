package persona

import "math/rand/v2"

// weighted is one catalog entry; higher weights are drawn more often.
type weighted struct {
	value  string
	weight int
}

func pickWeighted(r *rand.Rand, items []weighted) string {
	total := 0
	for _, it := range items {
		total += it.weight
	}
	n := r.IntN(total)
	for _, it := range items {
		if n < it.weight {
			return it.value
		}
		n -= it.weight
	}
	return items[len(items)-1].value
}

func pick(r *rand.Rand, items []string) string {
	return items[r.IntN(len(items))]
}

var companyPrefixes = []string{
	"Nova", "Apex", "Cirrus", "Vortex", "Helix", "Prism", "Nexus", "Vertex",
	"Stratos", "Cipher", "Pulse", "Quantum", "Atlas", "Zenith", "Flux", "Ember",
	"Cobalt", "Nimbus", "Drift", "Forge", "Lumen", "Crest",
}

var companySuffixes = []string{
	"Systems", "Labs", "AI", "Cloud", "Data", "Tech", "Platform", "IO",
	"Solutions", "Analytics", "Works", "Logic", "Base", "Hub", "Core", "Stack",
	"Flow", "Net", "API", "Ops",
}

var industries = []weighted{
	{"fintech", 3},
	{"saas", 3},
	{"healthcare", 2},
	{"ecommerce", 2},
	{"devtools", 2},
	{"logistics", 1},
}

var apiStyles = []weighted{
	{"rest", 6},
	{"graphql", 2},
	{"jsonrpc", 1},
}

var frameworks = []weighted{
	{"express/4.18.2", 3},
	{"django/4.2", 2},
	{"rails/7.1", 1},
	{"spring-boot/3.2.0", 2},
	{"fastapi/0.109.0", 2},
	{"flask/3.0.0", 1},
	{"nestjs/10.3.0", 1},
	{"gin/1.9.1", 1},
	{"laravel/10.40", 1},
	{"actix-web/4.4", 1},
}

// poweredBy maps a framework to the X-Powered-By value it would leak, if any.
var poweredBy = map[string]string{
	"express/4.18.2": "Express",
	"nestjs/10.3.0":  "Express",
	"laravel/10.40":  "PHP/8.2.14",
	"rails/7.1":      "Phusion Passenger(R) 6.0.18",
	"django/4.2":     "Django",
}

var errorStyles = []weighted{
	{"rfc7807", 2},
	{"simple_json", 4},
	{"html", 1},
	{"xml", 1},
}

var authSchemes = []weighted{
	{"bearer", 4},
	{"api_key_header", 3},
	{"api_key_query", 1},
	{"basic", 1},
	{"oauth2", 2},
}

var dataThemes = map[string][]string{
	"fintech":    {"payments", "transactions", "accounts", "transfers", "invoices"},
	"saas":       {"users", "workspaces", "subscriptions", "integrations", "webhooks"},
	"healthcare": {"patients", "appointments", "records", "prescriptions", "providers"},
	"ecommerce":  {"products", "orders", "carts", "inventory", "reviews"},
	"devtools":   {"repositories", "builds", "deployments", "pipelines", "artifacts"},
	"logistics":  {"shipments", "warehouses", "routes", "tracking", "carriers"},
}

var serverHeaders = []weighted{
	{"nginx/1.24.0", 4},
	{"nginx/1.25.3", 3},
	{"Apache/2.4.58", 2},
	{"cloudflare", 3},
	{"AmazonS3", 1},
	{"gws", 1},
	{"Microsoft-IIS/10.0", 1},
	{"openresty/1.25.3.1", 1},
}

var endpointPrefixes = []weighted{
	{"/api/v1", 5},
	{"/api/v2", 3},
	{"/api/v3", 1},
	{"/v1", 3},
	{"/v2", 2},
	{"/rest/v1", 1},
	{"/api", 2},
	{"/service/api", 1},
}

var mcpServerNames = []string{
	"data-api", "platform-api", "core-service", "main-api", "backend",
	"service-hub", "api-gateway", "data-service",
}

var mcpToolPrefixes = map[string][]string{
	"fintech":    {"payment_", "txn_", "account_", "finance_"},
	"saas":       {"workspace_", "user_", "tenant_", "app_"},
	"healthcare": {"patient_", "clinical_", "health_", "medical_"},
	"ecommerce":  {"product_", "order_", "catalog_", "shop_"},
	"devtools":   {"repo_", "build_", "deploy_", "pipeline_"},
	"logistics":  {"shipment_", "route_", "warehouse_", "tracking_"},
}

var rateLimits = []string{"100", "500", "1000", "5000"}
