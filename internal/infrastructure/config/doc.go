// Package config provides 12-factor configuration for shmflow stages.
//
// Process-level settings come from environment variables with defaults.
// Component settings come from command-line flags, optionally seeded from
// one table of a TOML, YAML or JSON file (-config FILE -config-key KEY).
//
// Configuration Sections:
//   - Shm: directory holding channel segments
//   - Logging: log level and output format
//   - Metrics: diagnostics HTTP server address and CORS origins
//   - RateLimit: per-IP rate limiting of the diagnostics server
//   - Viewer: display throttle period
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fs.Parse(os.Args[2:])
//	if err := config.ApplyFile(fs, *configFile, *configKey, &detCfg); err != nil {
//		log.Fatal(err)
//	}
//
// Environment Variables:
//   - SHMFLOW_SHM_DIR
//   - LOG_LEVEL, LOG_DEV
//   - METRICS_ADDR, METRICS_CORS_ORIGINS
//   - DIAG_RATE_LIMIT_RPS, DIAG_RATE_LIMIT_BURST, DIAG_RATE_LIMIT_ENABLED
//   - VIEWER_MIN_UPDATE_MS
package config
