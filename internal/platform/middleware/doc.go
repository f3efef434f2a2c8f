// Package middleware provides the HTTP middleware chain shared by all
// routers: request IDs, structured request logging, panic recovery, request
// timeouts, content-type enforcement, client metadata capture, request-scoped
// time, latency metrics, and bearer-token authentication.
package middleware
