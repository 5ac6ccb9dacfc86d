// Package mailer adapts a transactional email upstream.
package mailer

import (
	"context"
	"fmt"
	"net/http"
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

// New constructs the mailer registration. The upstream base URL is required.
func New(_ context.Context, cfg registry.IntegrationConfig) (*registry.Registration, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("mailer: base URL is required")
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
			Name:        "send-email",
			Title:       "Send email",
			Description: "Queue an email for delivery.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"to":      {Type: "string", Description: "Recipient address."},
					"subject": {Type: "string", Description: "Subject line."},
					"body":    {Type: "string", Description: "Plain text body."},
					"priority": {
						Type:        "string",
						Description: "Delivery priority.",
						Enum:        []any{"low", "normal", "high"},
					},
				},
				Required: []string{"to", "subject", "body"},
			},
		},
	}
	handlers := map[string]registry.ToolHandler{
		"send-email": a.sendEmail,
	}
	return registry.NewRegistration(cfg.Name, tools, handlers)
}

func (a *adapter) sendEmail(ctx context.Context, args map[string]any, caller registry.Caller) (any, error) {
	payload := map[string]any{
		"to":      args["to"],
		"subject": args["subject"],
		"body":    args["body"],
	}
	if priority, ok := args["priority"].(string); ok {
		payload["priority"] = priority
	}

	client := upstream.HeaderClient(a.client, a.credHeader,
		upstream.AuthorizationValue(a.credHeader, caller.UpstreamCredential))
	var out struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := upstream.PostJSON(ctx, client, a.baseURL+"/messages", payload, &out); err != nil {
		return nil, fmt.Errorf("mailer: sending message: %w", err)
	}
	status := out.Status
	if status == "" {
		status = "queued"
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{
			Text: fmt.Sprintf("message %s %s", out.ID, status),
		}},
	}, nil
}
