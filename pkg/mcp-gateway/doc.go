// Package mcpgateway exposes an HTTP-facing multi-tenant layer that serves
// every registered integration adapter over JSON-RPC. Clients authenticate
// each request with a signed bearer token scoped to one integration; the
// gateway verifies it, resolves the adapter lazily, enforces the tenant's
// quota, and dispatches initialize, tools/list, and tools/call without the
// caller ever talking to an upstream service directly.
package mcpgateway
