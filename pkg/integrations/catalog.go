// Package integrations collects every adapter kind the gateway can serve.
package integrations

import (
	"github.com/hosted-tools/mcp-gateway/pkg/integrations/crm"
	"github.com/hosted-tools/mcp-gateway/pkg/integrations/docstore"
	"github.com/hosted-tools/mcp-gateway/pkg/integrations/mailer"
	"github.com/hosted-tools/mcp-gateway/pkg/integrations/websearch"
	"github.com/hosted-tools/mcp-gateway/pkg/registry"
)

// Factories maps integration kinds to adapter constructors. Registration is
// explicit: a kind absent from this table cannot be served.
func Factories() map[string]registry.Factory {
	return map[string]registry.Factory{
		"websearch": websearch.New,
		"crm":       crm.New,
		"docstore":  docstore.New,
		"mailer":    mailer.New,
	}
}
