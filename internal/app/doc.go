// Package app wires the FLIPR analysis server together and manages its
// lifecycle.
//
// # Initialization Flow
//
//	1. Load configuration (defaults, YAML file, FLIPR_* environment)
//	2. Initialize logging and OpenTelemetry
//	3. Resolve and create the data, reports, layouts and logs directories
//	4. Create the WebSocket hub and the analysis session
//	5. Mount middleware, the /api/v1 routes, /ws, /metrics and the frontend
//	6. Build the HTTP server
//
// # Usage
//
//	application, err := app.NewApplication()
//	if err != nil {
//	    return err
//	}
//	return application.Run()
//
// Run blocks until SIGINT or SIGTERM, then shuts the server down within the
// configured shutdown timeout, stops the hub and flushes telemetry.
//
// Initialization errors are returned to the caller; the package never calls
// os.Exit.
package app
