// Package http contains the HTTP handlers for the CalqTrade API.
//
// Handlers are thin: they decode and validate request DTOs, call the
// service layer, and render responses with go-chi/render. Errors flow
// through the RFC 7807 error handler so every failure body is a
// problem details document.
//
// Route groups:
//
//	/api/trades      stateless trade calculations
//	/api/breakeven   break-even ladders and custom targets
//	/api/policies    fee schedule and policy catalogue
//	/api/sessions    stateful multi-lot sessions
//	/api/health      health, liveness, readiness
//	/api/version     build information
//	/ws              websocket snapshot push
//	/metrics         Prometheus scrape endpoint
package http
