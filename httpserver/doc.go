// Package httpserver provides the HTTP server scaffolding for a storage
// node: the chi router hosting the data API, request logging, liveness and
// readiness endpoints with drain/undrain support for load balancers, an
// optional pprof mount, a Prometheus metrics listener, and graceful shutdown.
package httpserver
