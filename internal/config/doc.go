// Package config provides centralized configuration management for the
// FLIPR analysis server and CLI.
//
// # Configuration Sources
//
// Configuration is layered in order of increasing precedence:
//
//	1. Default() values
//	2. A YAML file (FLIPR_CONFIG_FILE, flipr.yaml or configs/flipr.yaml)
//	3. Environment variables
//
// # Environment Variables
//
// All environment variables follow the pattern FLIPR_<SECTION>_<FIELD>:
//
//	FLIPR_SERVER_PORT=8080
//	FLIPR_LOGGING_LEVEL=debug
//	FLIPR_ANALYSIS_FIT_PEAKS=true
//	FLIPR_ANALYSIS_WORKERS=4
//	FLIPR_TELEMETRY_TRACE_EXPORTER=stdout
//
// # Path Management
//
// Paths resolves the data, report, layout and log directories against a
// base directory, which defaults to the executable location:
//
//	paths := cfg.ResolvedPaths()
//	reportPath := paths.GetReportPath(config.WorkbookFileName)
package config
