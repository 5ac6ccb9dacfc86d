package docstore

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hosted-tools/mcp-gateway/pkg/registry"
)

func newRegistration(t *testing.T) *registry.Registration {
	t.Helper()
	reg, err := New(context.Background(), registry.IntegrationConfig{
		Name:    "docs",
		Options: map[string]string{"path": filepath.Join(t.TempDir(), "docs.db")},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return reg
}

func callTool(t *testing.T, reg *registry.Registration, name string, args map[string]any, caller registry.Caller) (any, error) {
	t.Helper()
	handler, ok := reg.Handler(name)
	if !ok {
		t.Fatalf("tool %q is not registered", name)
	}
	return handler(context.Background(), args, caller)
}

func TestNewFailsOnUnusableDatabase(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), registry.IntegrationConfig{
		Name:    "docs",
		Options: map[string]string{"path": filepath.Join(t.TempDir(), "missing", "docs.db")},
	})
	if err == nil {
		t.Fatalf("New opened a database in a directory that does not exist")
	}
}

func TestDocumentLifecycle(t *testing.T) {
	t.Parallel()

	reg := newRegistration(t)
	owner := registry.Caller{TenantID: "tenant-a"}
	stranger := registry.Caller{TenantID: "tenant-b"}

	created, err := callTool(t, reg, "doc-create",
		map[string]any{"title": "Runbook", "body": "Restart the ingest worker first."}, owner)
	if err != nil {
		t.Fatalf("doc-create: %v", err)
	}
	payload, ok := created.(map[string]any)
	if !ok {
		t.Fatalf("doc-create result has type %T", created)
	}
	id, _ := payload["documentId"].(string)
	if id == "" {
		t.Fatalf("doc-create returned no document id: %v", payload)
	}
	if _, ok := payload["content"]; !ok {
		t.Fatalf("doc-create result carries no content block: %v", payload)
	}

	got, err := callTool(t, reg, "doc-get", map[string]any{"id": id}, owner)
	if err != nil {
		t.Fatalf("doc-get: %v", err)
	}
	doc := got.(map[string]any)
	if doc["title"] != "Runbook" || doc["body"] != "Restart the ingest worker first." {
		t.Fatalf("doc-get returned %v", doc)
	}

	// Another tenant must not see the document.
	if _, err := callTool(t, reg, "doc-get", map[string]any{"id": id}, stranger); err == nil {
		t.Fatalf("doc-get crossed tenants")
	} else if !strings.Contains(err.Error(), "not found") {
		t.Fatalf("cross-tenant doc-get error = %q", err)
	}
}

func TestSearchIsTenantScoped(t *testing.T) {
	t.Parallel()

	reg := newRegistration(t)
	owner := registry.Caller{TenantID: "tenant-a"}
	stranger := registry.Caller{TenantID: "tenant-b"}

	for _, title := range []string{"Deploy checklist", "Deploy rollback", "Oncall handbook"} {
		if _, err := callTool(t, reg, "doc-create",
			map[string]any{"title": title, "body": "body of " + title}, owner); err != nil {
			t.Fatalf("doc-create %q: %v", title, err)
		}
	}

	got, err := callTool(t, reg, "doc-search", map[string]any{"query": "Deploy"}, owner)
	if err != nil {
		t.Fatalf("doc-search: %v", err)
	}
	text := got.(*mcp.CallToolResult).Content[0].(*mcp.TextContent).Text
	if !strings.Contains(text, "Deploy checklist") || !strings.Contains(text, "Deploy rollback") {
		t.Fatalf("doc-search text %q misses a match", text)
	}
	if strings.Contains(text, "Oncall handbook") {
		t.Fatalf("doc-search text %q matched an unrelated title", text)
	}

	got, err = callTool(t, reg, "doc-search", map[string]any{"query": "Deploy"}, stranger)
	if err != nil {
		t.Fatalf("doc-search as stranger: %v", err)
	}
	text = got.(*mcp.CallToolResult).Content[0].(*mcp.TextContent).Text
	if text != "no matching documents" {
		t.Fatalf("doc-search crossed tenants: %q", text)
	}
}

func TestSearchLimit(t *testing.T) {
	t.Parallel()

	reg := newRegistration(t)
	owner := registry.Caller{TenantID: "tenant-a"}
	for _, title := range []string{"note one", "note two", "note three"} {
		if _, err := callTool(t, reg, "doc-create",
			map[string]any{"title": title, "body": "x"}, owner); err != nil {
			t.Fatalf("doc-create %q: %v", title, err)
		}
	}

	got, err := callTool(t, reg, "doc-search",
		map[string]any{"query": "note", "limit": float64(2)}, owner)
	if err != nil {
		t.Fatalf("doc-search: %v", err)
	}
	text := got.(*mcp.CallToolResult).Content[0].(*mcp.TextContent).Text
	if n := len(strings.Split(text, "\n")); n != 2 {
		t.Fatalf("doc-search returned %d lines, want 2: %q", n, text)
	}
}
