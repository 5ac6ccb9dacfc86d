package registry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Caller identifies the verified tenant a tool call runs on behalf of.
type Caller struct {
	TenantID           string
	UpstreamCredential string
}

// ToolHandler executes one tool call. A returned error is a tool execution
// failure: it is reported to the client inside the result, never raised as
// a protocol failure.
type ToolHandler func(ctx context.Context, args map[string]any, caller Caller) (any, error)

// IntegrationConfig parameterizes an adapter factory.
type IntegrationConfig struct {
	// Name is the route segment clients address the integration by.
	Name string
	// BaseURL locates the upstream service, when the adapter has one.
	BaseURL string
	// CredentialParam names the header or query parameter that carries the
	// upstream credential. Adapters apply their own default when empty.
	CredentialParam string
	// Options holds adapter specific settings.
	Options map[string]string
	// HTTPClient overrides the adapter's outbound client. Mainly for tests.
	HTTPClient *http.Client
}

// Factory constructs an adapter's registration. The registry invokes it at
// most once per integration unless construction fails or the entry is
// evicted.
type Factory func(ctx context.Context, cfg IntegrationConfig) (*Registration, error)

// Registration is an integration's tool surface. It is immutable once
// constructed and shared by every request that resolves the integration.
type Registration struct {
	integration string
	tools       []*mcp.Tool
	handlers    map[string]ToolHandler
	schemas     map[string]*jsonschema.Resolved
	closer      func() error
}

// NewRegistration validates and freezes an adapter's tool surface. Every
// tool needs a unique name and a handler, and every handler needs a tool.
// Input schemas are resolved here so all later calls validate against the
// same compiled schema.
func NewRegistration(integration string, tools []*mcp.Tool, handlers map[string]ToolHandler) (*Registration, error) {
	if integration == "" {
		return nil, fmt.Errorf("registry: registration needs an integration name")
	}
	r := &Registration{
		integration: integration,
		tools:       make([]*mcp.Tool, 0, len(tools)),
		handlers:    make(map[string]ToolHandler, len(handlers)),
		schemas:     make(map[string]*jsonschema.Resolved, len(tools)),
	}
	for _, tool := range tools {
		if tool == nil || tool.Name == "" {
			return nil, fmt.Errorf("registry: %s declares a tool without a name", integration)
		}
		if _, ok := r.handlers[tool.Name]; ok {
			return nil, fmt.Errorf("registry: %s declares tool %q twice", integration, tool.Name)
		}
		handler, ok := handlers[tool.Name]
		if !ok || handler == nil {
			return nil, fmt.Errorf("registry: %s tool %q has no handler", integration, tool.Name)
		}
		if tool.InputSchema != nil {
			resolved, err := tool.InputSchema.Resolve(nil)
			if err != nil {
				return nil, fmt.Errorf("registry: %s tool %q input schema: %w", integration, tool.Name, err)
			}
			r.schemas[tool.Name] = resolved
		}
		clone := *tool
		r.tools = append(r.tools, &clone)
		r.handlers[tool.Name] = handler
	}
	if len(r.tools) == 0 {
		return nil, fmt.Errorf("registry: %s registers no tools", integration)
	}
	if len(handlers) != len(r.handlers) {
		return nil, fmt.Errorf("registry: %s has handlers for undeclared tools", integration)
	}
	return r, nil
}

// SetCloser attaches a cleanup function that runs when the registration is
// evicted. Factories holding resources (database handles, connection pools)
// call this before returning.
func (r *Registration) SetCloser(fn func() error) { r.closer = fn }

func (r *Registration) close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}

func (r *Registration) Integration() string { return r.integration }

// Tools returns the tool definitions in registration order. The returned
// tools are copies; mutating them does not affect the registration.
func (r *Registration) Tools() []*mcp.Tool {
	out := make([]*mcp.Tool, len(r.tools))
	for i, tool := range r.tools {
		clone := *tool
		out[i] = &clone
	}
	return out
}

func (r *Registration) Handler(name string) (ToolHandler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// ValidateArguments checks args against the tool's input schema. Tools
// without a schema accept anything.
func (r *Registration) ValidateArguments(name string, args map[string]any) error {
	resolved, ok := r.schemas[name]
	if !ok {
		return nil
	}
	if args == nil {
		args = map[string]any{}
	}
	if err := resolved.Validate(args); err != nil {
		return fmt.Errorf("registry: arguments for %q: %w", name, err)
	}
	return nil
}
