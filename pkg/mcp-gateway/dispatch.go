package mcpgateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hosted-tools/mcp-gateway/pkg/ratelimit"
	"github.com/hosted-tools/mcp-gateway/pkg/registry"
	"github.com/hosted-tools/mcp-gateway/pkg/tokenauth"
)

// handleRPC is the protocol entry point. The bearer token is checked before
// the body is touched: a caller with a bad credential learns nothing about
// how the gateway would have treated its payload.
func (g *Gateway) handleRPC(w http.ResponseWriter, r *http.Request) {
	integration := chi.URLParam(r, "integration")

	raw, ok := bearerToken(r)
	if !ok {
		g.writeAuthError(w, nil, "missing bearer token")
		return
	}
	tc, err := g.auth.Verify(raw)
	if err != nil {
		var ae *tokenauth.AuthError
		if errors.As(err, &ae) {
			g.writeAuthError(w, nil, ae.Reason)
			return
		}
		g.writeAuthError(w, nil, "token verification failed")
		return
	}
	if tc.Integration != integration {
		g.writeAuthError(w, nil, fmt.Sprintf("token is not valid for integration %q", integration))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		g.writeError(w, http.StatusBadRequest, nil, codeParseError, "reading request body: "+err.Error(), nil)
		return
	}
	req, errCode, errMsg := parseRequest(body)
	if req == nil {
		g.writeError(w, http.StatusBadRequest, nil, errCode, errMsg, nil)
		return
	}

	ctx := r.Context()
	switch req.Method {
	case "initialize":
		g.writeResult(w, req.ID, g.initializeResult())
	case "tools/list":
		reg, err := g.registry.Resolve(ctx, integration)
		if err != nil {
			g.writeResolveError(w, req.ID, err)
			return
		}
		g.writeResult(w, req.ID, map[string]any{"tools": reg.Tools()})
	case "tools/call":
		g.handleToolCall(ctx, w, req, integration, tc)
	default:
		g.writeError(w, http.StatusOK, req.ID, codeMethodNotFound,
			fmt.Sprintf("method %q is not supported", req.Method), nil)
	}
}

// initializeResult is static: no adapter is resolved and nothing changes,
// so clients may call initialize any number of times, or never.
func (g *Gateway) initializeResult() map[string]any {
	return map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities": map[string]any{
			"tools": map[string]any{"listChanged": false},
		},
		"serverInfo": g.opts.Implementation,
	}
}

type callParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

func (g *Gateway) handleToolCall(ctx context.Context, w http.ResponseWriter, req *rpcRequest, integration string, tc tokenauth.TenantContext) {
	var params callParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			g.writeError(w, http.StatusOK, req.ID, codeInvalidParams, "params must name a tool and carry an arguments object", nil)
			return
		}
	}
	if params.Name == "" {
		g.writeError(w, http.StatusOK, req.ID, codeInvalidParams, "tool name is required", nil)
		return
	}

	reg, err := g.registry.Resolve(ctx, integration)
	if err != nil {
		g.writeResolveError(w, req.ID, err)
		return
	}

	if g.limiter != nil {
		if d := g.limiter.Check(ctx, integration, tc.TenantID); !d.Allowed {
			retryAfter := retryAfterSeconds(d, time.Now())
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			g.writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited,
				fmt.Sprintf("rate limit of %d calls per window exceeded", d.Limit),
				map[string]any{"retryAfterSeconds": retryAfter})
			return
		}
	}

	handler, ok := reg.Handler(params.Name)
	if !ok {
		g.writeError(w, http.StatusOK, req.ID, codeMethodNotFound,
			fmt.Sprintf("tool %q is not provided by %q", params.Name, integration), nil)
		return
	}
	if err := reg.ValidateArguments(params.Name, params.Arguments); err != nil {
		g.writeError(w, http.StatusOK, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}

	result := g.invoke(ctx, params.Name, handler, params.Arguments, registry.Caller{
		TenantID:           tc.TenantID,
		UpstreamCredential: tc.UpstreamCredential,
	})
	g.writeResult(w, req.ID, result)
}

func retryAfterSeconds(d ratelimit.Decision, now time.Time) int {
	secs := int(math.Ceil(d.ResetAt.Sub(now).Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

func (g *Gateway) writeAuthError(w http.ResponseWriter, id json.RawMessage, reason string) {
	w.Header().Set("WWW-Authenticate",
		fmt.Sprintf("Bearer error=%q, error_description=%q", "invalid_token", reason))
	g.writeError(w, http.StatusUnauthorized, id, codeUnauthorized, reason, nil)
}

func (g *Gateway) writeResolveError(w http.ResponseWriter, id json.RawMessage, err error) {
	var le *registry.LoadError
	if errors.As(err, &le) {
		g.writeError(w, http.StatusOK, id, codeIntegrationFailure, le.Error(), nil)
		return
	}
	g.logError("resolve integration", err)
	g.writeError(w, http.StatusOK, id, codeInternalError, "internal error", nil)
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}
