// Package services implements the business logic layer of the CalqTrade
// application. It binds the pure calculation engine to configuration,
// session state, logging and metrics, keeping HTTP handlers thin.
//
// Services follow these principles:
//
//	1. Context propagation for cancellation and tracing
//	2. Dependency injection via constructors
//	3. Domain errors returned for handlers to transform
//	4. Cross-cutting concerns (structured logging, OTel metrics) applied
//	   at the service boundary, never inside the engine
//
// The package provides three services:
//
//	- CalcService: stateless single-trade and break-even calculations
//	- SessionService: session lifecycle, lot mutations and the derived
//	  position/intraday views, with snapshot publication to WebSocket
//	  subscribers after every change
//	- HealthService: health, readiness and version reporting
package services
