// Package app wires the CalqTrade service together and manages its
// lifecycle.
//
// The initialization sequence:
//
//	1. Load configuration from environment and file
//	2. Initialize logging and OpenTelemetry
//	3. Create the session store and websocket hub
//	4. Initialize services with their dependencies
//	5. Set up HTTP handlers and middleware
//	6. Configure the HTTP server
//
// The main entry point is typically:
//
//	application, err := app.NewApplication()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := application.Run(); err != nil {
//	    log.Fatal(err)
//	}
package app
