package config

import "time"

// Application constants for the CalqTrade service
const (
	// Application Info
	AppName    = "CalqTrade"
	AppVersion = "1.2.0"

	// Commission Schedule (human percentage units)
	DefaultFeePct = 1.12
	DefaultSTLPct = 0.30

	// Rate Limiting
	DefaultRateLimit = 100 // requests per second
	DefaultBurstSize = 50

	// Network Timeouts
	DefaultHTTPTimeout  = 30 * time.Second
	WebSocketPingPeriod = 30 * time.Second
	WebSocketPongWait   = 60 * time.Second

	// Session Store
	DefaultSessionTTL   = 24 * time.Hour
	DefaultSessionSweep = 5 * time.Minute
	DefaultMaxLots      = 500

	// Export Limits
	MaxExportRows = 10000
)
