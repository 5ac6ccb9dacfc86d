package mcpgateway

import (
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hosted-tools/mcp-gateway/pkg/ratelimit"
	"github.com/hosted-tools/mcp-gateway/pkg/registry"
	"github.com/hosted-tools/mcp-gateway/pkg/tokenauth"
)

// protocolVersion is the protocol revision reported by initialize.
const protocolVersion = "2025-06-18"

// Options configure a Gateway instance.
type Options struct {
	// Implementation identifies the gateway in initialize responses.
	Implementation *mcp.Implementation
	// Addr controls the listen address used by ListenAndServe. Defaults to ":8700".
	Addr string
	// Authenticator verifies request tokens. Required.
	Authenticator *tokenauth.Authenticator
	// Registry resolves integration adapters. Required.
	Registry *registry.Registry
	// Limiter applies per tenant quotas to tool calls. Nil disables limiting.
	Limiter ratelimit.Limiter
	// Logger receives structured diagnostics.
	Logger *slog.Logger
	// RequestTimeout bounds each request, handler execution included.
	// Defaults to 30 seconds.
	RequestTimeout time.Duration
	// ShutdownGrace bounds the drain of in-flight requests when the serve
	// context is cancelled. Defaults to 30 seconds.
	ShutdownGrace time.Duration
	// AllowedOrigins enables CORS for browser clients when non-empty.
	AllowedOrigins []string
	// EnableTracing wraps the handler in OpenTelemetry instrumentation.
	EnableTracing bool
}

func (o *Options) withDefaults() Options {
	if o == nil {
		o = &Options{}
	}
	opts := *o
	if opts.Implementation == nil {
		opts.Implementation = &mcp.Implementation{
			Name:    "mcp-gateway",
			Title:   "MCP Tool Gateway",
			Version: "1.0.0",
		}
	} else {
		impl := *opts.Implementation
		opts.Implementation = &impl
	}
	if opts.Addr == "" {
		opts.Addr = ":8700"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.ShutdownGrace <= 0 {
		opts.ShutdownGrace = 30 * time.Second
	}
	return opts
}
