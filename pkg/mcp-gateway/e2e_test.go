package mcpgateway

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hosted-tools/mcp-gateway/pkg/integrations/websearch"
	"github.com/hosted-tools/mcp-gateway/pkg/ratelimit"
	"github.com/hosted-tools/mcp-gateway/pkg/registry"
	"github.com/hosted-tools/mcp-gateway/pkg/tokenauth"
)

// TestEndToEndSearchFlow drives a minted token through the real websearch
// adapter: the upstream must see exactly one request carrying the token's
// upstream credential, and the caller gets the adapter's text back.
func TestEndToEndSearchFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping gateway integration test in short mode")
	}
	t.Parallel()

	var upstreamCalls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamCalls.Add(1)
		if got := r.Header.Get("Authorization"); got != "Bearer key-123" {
			t.Errorf("upstream Authorization = %q", got)
		}
		if got := r.URL.Query().Get("q"); got != "foo" {
			t.Errorf("upstream q = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"results":[{"title":"Foo Guide","url":"https://example.com/foo","snippet":"All about foo."}]}`)
	}))
	t.Cleanup(upstream.Close)

	auth, err := tokenauth.New(testSecret)
	if err != nil {
		t.Fatalf("tokenauth.New: %v", err)
	}
	reg := registry.New(registry.Options{Logger: discardLogger()})
	err = reg.Register(registry.IntegrationConfig{
		Name:       "search",
		BaseURL:    upstream.URL,
		HTTPClient: upstream.Client(),
	}, websearch.New)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	limiter := ratelimit.NewMemoryLimiter(ratelimit.Policy{Limit: 100, Window: time.Minute}, nil)
	t.Cleanup(limiter.Close)

	gw, err := New(&Options{
		Authenticator: auth,
		Registry:      reg,
		Limiter:       limiter,
		Logger:        discardLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	server := httptest.NewServer(gw.Handler())
	t.Cleanup(server.Close)

	token, err := auth.Mint(tokenauth.TenantContext{
		Integration:        "search",
		TenantID:           "u1",
		UpstreamCredential: "key-123",
	}, time.Hour)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	body := `{"jsonrpc":"2.0","id":9,"method":"tools/call","params":{"name":"search-query","arguments":{"query":"foo"}}}`
	req, err := http.NewRequest(http.MethodPost, server.URL+"/search/mcp", strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := server.Client().Do(req)
	if err != nil {
		t.Fatalf("POST /search/mcp: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	raw, _ := io.ReadAll(resp.Body)
	payload := string(raw)
	if !strings.Contains(payload, "Foo Guide") || !strings.Contains(payload, "https://example.com/foo") {
		t.Fatalf("response %s misses the upstream result", payload)
	}
	if strings.Contains(payload, `"isError":true`) {
		t.Fatalf("tool call reported an error: %s", payload)
	}
	if got := upstreamCalls.Load(); got != 1 {
		t.Fatalf("upstream saw %d requests, want 1", got)
	}
}
