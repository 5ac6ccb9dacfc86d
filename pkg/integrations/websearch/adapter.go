// Package websearch adapts a web search upstream to the gateway's tool
// contract. The per-call credential travels in a configurable header,
// Authorization by default.
package websearch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hosted-tools/mcp-gateway/pkg/registry"
	"github.com/hosted-tools/mcp-gateway/pkg/upstream"
)

const defaultCredentialHeader = "Authorization"

type adapter struct {
	baseURL    string
	client     *http.Client
	credHeader string
}

// New constructs the websearch registration. The upstream base URL is
// required.
func New(_ context.Context, cfg registry.IntegrationConfig) (*registry.Registration, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("websearch: base URL is required")
	}
	a := &adapter{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		client:     cfg.HTTPClient,
		credHeader: cfg.CredentialParam,
	}
	if a.credHeader == "" {
		a.credHeader = defaultCredentialHeader
	}

	tools := []*mcp.Tool{
		{
			Name:        "search-query",
			Title:       "Web search",
			Description: "Search the web and return the top matching pages.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"query": {Type: "string", Description: "Search terms."},
					"limit": {Type: "integer", Description: "Maximum number of results."},
				},
				Required: []string{"query"},
			},
		},
		{
			Name:        "search-news",
			Title:       "News search",
			Description: "Search recent news articles.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"query": {Type: "string", Description: "Search terms."},
					"days":  {Type: "integer", Description: "How many days back to look."},
				},
				Required: []string{"query"},
			},
		},
	}
	handlers := map[string]registry.ToolHandler{
		"search-query": a.searchQuery,
		"search-news":  a.searchNews,
	}
	return registry.NewRegistration(cfg.Name, tools, handlers)
}

type searchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

func (a *adapter) searchQuery(ctx context.Context, args map[string]any, caller registry.Caller) (any, error) {
	query, _ := args["query"].(string)
	endpoint := a.baseURL + "/search?" + url.Values{
		"q":     {query},
		"limit": {strconv.Itoa(intArg(args, "limit", 10))},
	}.Encode()
	return a.fetch(ctx, endpoint, caller)
}

func (a *adapter) searchNews(ctx context.Context, args map[string]any, caller registry.Caller) (any, error) {
	query, _ := args["query"].(string)
	endpoint := a.baseURL + "/news?" + url.Values{
		"q":    {query},
		"days": {strconv.Itoa(intArg(args, "days", 7))},
	}.Encode()
	return a.fetch(ctx, endpoint, caller)
}

func (a *adapter) fetch(ctx context.Context, endpoint string, caller registry.Caller) (any, error) {
	client := upstream.HeaderClient(a.client, a.credHeader,
		upstream.AuthorizationValue(a.credHeader, caller.UpstreamCredential))
	var res searchResponse
	if err := upstream.GetJSON(ctx, client, endpoint, &res); err != nil {
		return nil, fmt.Errorf("websearch: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: formatResults(res.Results)}},
	}, nil
}

func formatResults(results []searchResult) string {
	if len(results) == 0 {
		return "no results"
	}
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s (%s)", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			b.WriteString("\n   " + r.Snippet)
		}
	}
	return b.String()
}

func intArg(args map[string]any, name string, fallback int) int {
	switch v := args[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}
