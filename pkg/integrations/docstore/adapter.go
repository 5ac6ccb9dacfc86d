// Package docstore serves a tenant-scoped document store from an embedded
// SQLite database. It talks to no upstream; every tool call is scoped to the
// calling tenant, so one tenant can never read another's documents.
package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hosted-tools/mcp-gateway/pkg/registry"
)

const defaultPath = "docstore.db"

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	tenant_id  TEXT NOT NULL,
	title      TEXT NOT NULL,
	body       TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS documents_tenant_idx ON documents (tenant_id);
`

type document struct {
	ID        string    `db:"id"`
	TenantID  string    `db:"tenant_id"`
	Title     string    `db:"title"`
	Body      string    `db:"body"`
	CreatedAt time.Time `db:"created_at"`
}

type adapter struct {
	db *sqlx.DB
}

// New opens the database named by the path option, creating it and the
// schema as needed. The registry retries construction on the next resolve if
// the database cannot be opened.
func New(ctx context.Context, cfg registry.IntegrationConfig) (*registry.Registration, error) {
	path := cfg.Options["path"]
	if path == "" {
		path = defaultPath
	}
	db, err := sqlx.ConnectContext(ctx, "sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("docstore: opening %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("docstore: preparing schema: %w", err)
	}
	a := &adapter{db: db}

	tools := []*mcp.Tool{
		{
			Name:        "doc-create",
			Title:       "Create document",
			Description: "Store a document for the calling tenant.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"title": {Type: "string", Description: "Document title."},
					"body":  {Type: "string", Description: "Document body."},
				},
				Required: []string{"title", "body"},
			},
		},
		{
			Name:        "doc-get",
			Title:       "Fetch document",
			Description: "Fetch one of the calling tenant's documents by id.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"id": {Type: "string", Description: "Document id."},
				},
				Required: []string{"id"},
			},
		},
		{
			Name:        "doc-search",
			Title:       "Search documents",
			Description: "Search the calling tenant's documents by title or body.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"query": {Type: "string", Description: "Substring to look for."},
					"limit": {Type: "integer", Description: "Maximum number of matches."},
				},
				Required: []string{"query"},
			},
		},
	}
	handlers := map[string]registry.ToolHandler{
		"doc-create": a.create,
		"doc-get":    a.get,
		"doc-search": a.search,
	}
	reg, err := registry.NewRegistration(cfg.Name, tools, handlers)
	if err != nil {
		db.Close()
		return nil, err
	}
	reg.SetCloser(db.Close)
	return reg, nil
}

func (a *adapter) create(ctx context.Context, args map[string]any, caller registry.Caller) (any, error) {
	title, _ := args["title"].(string)
	body, _ := args["body"].(string)
	doc := document{
		ID:        uuid.NewString(),
		TenantID:  caller.TenantID,
		Title:     title,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO documents (id, tenant_id, title, body, created_at) VALUES (?, ?, ?, ?, ?)`,
		doc.ID, doc.TenantID, doc.Title, doc.Body, doc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("docstore: storing document: %w", err)
	}
	return map[string]any{
		"content": []map[string]any{
			{"type": "text", "text": "created document " + doc.ID},
		},
		"documentId": doc.ID,
	}, nil
}

func (a *adapter) get(ctx context.Context, args map[string]any, caller registry.Caller) (any, error) {
	id, _ := args["id"].(string)
	var doc document
	err := a.db.GetContext(ctx, &doc,
		`SELECT id, tenant_id, title, body, created_at FROM documents WHERE id = ? AND tenant_id = ?`,
		id, caller.TenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("docstore: document %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("docstore: fetching document: %w", err)
	}
	return map[string]any{
		"id":        doc.ID,
		"title":     doc.Title,
		"body":      doc.Body,
		"createdAt": doc.CreatedAt.UTC().Format(time.RFC3339),
	}, nil
}

func (a *adapter) search(ctx context.Context, args map[string]any, caller registry.Caller) (any, error) {
	query, _ := args["query"].(string)
	limit := intArg(args, "limit", 20)
	pattern := "%" + query + "%"
	var docs []document
	err := a.db.SelectContext(ctx, &docs,
		`SELECT id, tenant_id, title, body, created_at FROM documents
		 WHERE tenant_id = ? AND (title LIKE ? OR body LIKE ?)
		 ORDER BY created_at DESC LIMIT ?`,
		caller.TenantID, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("docstore: searching documents: %w", err)
	}
	if len(docs) == 0 {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: "no matching documents"}},
		}, nil
	}
	var b strings.Builder
	for i, d := range docs {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", d.ID, d.Title)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: b.String()}},
	}, nil
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
