// Package registry centralizes the lifecycle of integration adapters behind
// a single resolve call. It layers lazy construction, in-flight deduplication,
// and cache eviction on top of plain adapter factories so callers can treat
// every integration as always-available without rebuilding initialization
// plumbing.
//
// # Core entry points
//
//   - Registry is the long-lived orchestration type. Construct it with New,
//     declare integrations with Register, then call Resolve per request.
//   - IntegrationConfig declares how each adapter should reach its upstream
//     service and which parameter carries the tenant's credential.
//   - Factory is the adapter constructor contract. It runs at most once per
//     integration: concurrent first resolves share one invocation, only a
//     successful result is cached, and a failure is retried on the next
//     resolve.
//
// A resolved Registration is immutable. It exposes the integration's tool
// definitions, a handler lookup, and compiled input schemas for argument
// validation. Administrative flows can call Evict to force the next resolve
// to reconstruct an adapter, for example after rotating upstream settings.
package registry
