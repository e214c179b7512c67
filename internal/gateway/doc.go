// Package gateway assembles the gateway: the per-request pipeline that
// authenticates, routes and forwards proxied traffic, the gin engine that
// serves the gateway's own endpoints, and the HTTP server lifecycle.
//
// Gateway-owned endpoints (/health, /ready, /live, /metrics, /api/auth/*,
// /api-docs/*) are registered on the gin engine. Every other request falls
// through to the Pipeline via NoRoute.
package gateway
