// Package crm adapts a contact enrichment upstream. The credential travels
// as a query parameter, and handlers return the upstream's JSON payload as a
// plain map, leaving presentation to the gateway.
package crm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hosted-tools/mcp-gateway/pkg/registry"
	"github.com/hosted-tools/mcp-gateway/pkg/upstream"
)

const defaultCredentialParam = "api_key"

type adapter struct {
	baseURL   string
	client    *http.Client
	credParam string
}

// New constructs the crm registration. The upstream base URL is required.
func New(_ context.Context, cfg registry.IntegrationConfig) (*registry.Registration, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("crm: base URL is required")
	}
	a := &adapter{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		client:    cfg.HTTPClient,
		credParam: cfg.CredentialParam,
	}
	if a.credParam == "" {
		a.credParam = defaultCredentialParam
	}

	tools := []*mcp.Tool{
		{
			Name:        "person-enrich",
			Title:       "Enrich person",
			Description: "Look up profile details for an email address.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"email": {Type: "string", Description: "Email address to enrich."},
				},
				Required: []string{"email"},
			},
		},
		{
			Name:        "company-enrich",
			Title:       "Enrich company",
			Description: "Look up firmographic details for a company domain.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"domain": {Type: "string", Description: "Company domain, e.g. example.com."},
				},
				Required: []string{"domain"},
			},
		},
	}
	handlers := map[string]registry.ToolHandler{
		"person-enrich":  a.personEnrich,
		"company-enrich": a.companyEnrich,
	}
	return registry.NewRegistration(cfg.Name, tools, handlers)
}

func (a *adapter) personEnrich(ctx context.Context, args map[string]any, caller registry.Caller) (any, error) {
	email, _ := args["email"].(string)
	endpoint := a.baseURL + "/people/enrich?" + url.Values{"email": {email}}.Encode()
	out, err := a.fetch(ctx, endpoint, caller)
	if err != nil {
		return nil, fmt.Errorf("crm: enriching %s: %w", email, err)
	}
	return out, nil
}

func (a *adapter) companyEnrich(ctx context.Context, args map[string]any, caller registry.Caller) (any, error) {
	domain, _ := args["domain"].(string)
	endpoint := a.baseURL + "/companies/enrich?" + url.Values{"domain": {domain}}.Encode()
	out, err := a.fetch(ctx, endpoint, caller)
	if err != nil {
		return nil, fmt.Errorf("crm: enriching %s: %w", domain, err)
	}
	return out, nil
}

func (a *adapter) fetch(ctx context.Context, endpoint string, caller registry.Caller) (map[string]any, error) {
	client := upstream.QueryClient(a.client, a.credParam, caller.UpstreamCredential)
	var out map[string]any
	if err := upstream.GetJSON(ctx, client, endpoint, &out); err != nil {
		return nil, err
	}
	return out, nil
}
