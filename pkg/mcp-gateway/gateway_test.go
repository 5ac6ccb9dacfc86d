package mcpgateway

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/hosted-tools/mcp-gateway/pkg/registry"
	"github.com/hosted-tools/mcp-gateway/pkg/tokenauth"
)

func TestNewRequiresDependencies(t *testing.T) {
	t.Parallel()

	if _, err := New(nil); err == nil {
		t.Fatalf("New accepted nil options")
	}
	if _, err := New(&Options{}); err == nil {
		t.Fatalf("New accepted options without an authenticator")
	}

	auth, err := tokenauth.New(testSecret)
	if err != nil {
		t.Fatalf("tokenauth.New: %v", err)
	}
	if _, err := New(&Options{Authenticator: auth}); err == nil {
		t.Fatalf("New accepted options without a registry")
	}
	if _, err := New(&Options{
		Authenticator: auth,
		Registry:      registry.New(registry.Options{Logger: discardLogger()}),
		Logger:        discardLogger(),
	}); err != nil {
		t.Fatalf("New: %v", err)
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	resp, err := f.server.Client().Get(f.server.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `"ok"`) {
		t.Fatalf("body = %s", body)
	}
}

func TestRPCRouteRejectsGet(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	resp, err := f.server.Client().Get(f.server.URL + "/search/mcp")
	if err != nil {
		t.Fatalf("GET /search/mcp: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
}

func TestRequestIDHeader(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	resp, err := f.server.Client().Get(f.server.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatalf("no request id was assigned")
	}

	req, _ := http.NewRequest(http.MethodGet, f.server.URL+"/healthz", nil)
	req.Header.Set("X-Request-Id", "req-42")
	resp, err = f.server.Client().Do(req)
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("X-Request-Id"); got != "req-42" {
		t.Fatalf("request id = %q, want the caller's", got)
	}
}

func TestShutdownWithoutServer(t *testing.T) {
	t.Parallel()

	auth, err := tokenauth.New(testSecret)
	if err != nil {
		t.Fatalf("tokenauth.New: %v", err)
	}
	gw, err := New(&Options{
		Authenticator: auth,
		Registry:      registry.New(registry.Options{Logger: discardLogger()}),
		Logger:        discardLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := gw.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
