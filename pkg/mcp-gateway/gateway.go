package mcpgateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hosted-tools/mcp-gateway/pkg/ratelimit"
	"github.com/hosted-tools/mcp-gateway/pkg/registry"
	"github.com/hosted-tools/mcp-gateway/pkg/tokenauth"
)

// Gateway fronts every registered integration under a single multi-tenant
// HTTP surface. Each integration is served at POST /{integration}/mcp.
type Gateway struct {
	opts     Options
	auth     *tokenauth.Authenticator
	registry *registry.Registry
	limiter  ratelimit.Limiter

	httpHandler http.Handler

	httpServerMu sync.Mutex
	httpServer   *http.Server
}

// New builds a Gateway. The authenticator and registry are required;
// everything else has defaults.
func New(opts *Options) (*Gateway, error) {
	options := opts.withDefaults()
	if options.Authenticator == nil {
		return nil, fmt.Errorf("mcpgateway: authenticator is required")
	}
	if options.Registry == nil {
		return nil, fmt.Errorf("mcpgateway: registry is required")
	}
	g := &Gateway{
		opts:     options,
		auth:     options.Authenticator,
		registry: options.Registry,
		limiter:  options.Limiter,
	}
	g.httpHandler = g.mountHandler()
	return g, nil
}

// Handler exposes the HTTP handler that serves the gateway routes.
func (g *Gateway) Handler() http.Handler {
	return g.httpHandler
}

// ListenAndServe runs an HTTP server until the provided context is cancelled
// or the server stops.
func (g *Gateway) ListenAndServe(ctx context.Context) error {
	g.httpServerMu.Lock()
	if g.httpServer != nil {
		srv := g.httpServer
		g.httpServerMu.Unlock()
		return fmt.Errorf("mcpgateway: server already running on %s", srv.Addr)
	}
	srv := &http.Server{Addr: g.opts.Addr, Handler: g.Handler()}
	g.httpServer = srv
	g.httpServerMu.Unlock()
	defer func() {
		g.httpServerMu.Lock()
		if g.httpServer == srv {
			g.httpServer = nil
		}
		g.httpServerMu.Unlock()
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), g.opts.ShutdownGrace)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Shutdown stops the embedded HTTP server if it is running.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.httpServerMu.Lock()
	srv := g.httpServer
	g.httpServer = nil
	g.httpServerMu.Unlock()
	if srv == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return srv.Shutdown(ctx)
}

func (g *Gateway) mountHandler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(g.opts.Logger))
	r.Use(middleware.Recoverer)
	r.Use(timeoutMiddleware(g.opts.RequestTimeout))
	if len(g.opts.AllowedOrigins) > 0 {
		c := cors.New(cors.Options{
			AllowedOrigins: g.opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
		})
		r.Use(c.Handler)
	}
	if g.opts.EnableTracing {
		r.Use(func(next http.Handler) http.Handler {
			return otelhttp.NewHandler(next, "mcp-gateway")
		})
	}
	r.Get("/healthz", g.handleHealthz)
	r.Post("/{integration}/mcp", g.handleRPC)
	return r
}

func (g *Gateway) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (g *Gateway) logError(msg string, err error, args ...any) {
	if err == nil {
		return
	}
	attrs := append([]any{"error", err}, args...)
	g.opts.Logger.Error(msg, attrs...)
}
