// Package config provides centralized configuration management for the
// CalqTrade service. It loads configuration from multiple sources, validates
// it, and exposes a type-safe API to the rest of the application.
//
// # Configuration Sources
//
// Configuration is loaded in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. YAML configuration file
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables are namespaced with the CALQ_ prefix:
//
//	CALQ_SERVER_PORT=8080
//	CALQ_FEES_FEE_PCT=1.12
//	CALQ_FEES_STL_PCT=0.30
//	CALQ_SESSIONS_TTL=24h
//	CALQ_LOGGING_LEVEL=info
//
// # Validation
//
// All configuration is validated at load time: the server port must be in
// range, the fee schedule rates must be consistent (levy not exceeding the
// full fee), profit targets must be positive, and the session TTL must be
// set.
//
// # Usage
//
// Load configuration at application startup:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
