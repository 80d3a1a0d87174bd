// Package main is the frameserve stage: the head of a pipeline, publishing
// frames to a shared-memory channel.
//
// Usage:
//
//	# Synthetic blob at 30 fps
//	./frameserve test raw -fps 30 -width 640 -height 480
//
//	# Every image below a directory, forever
//	./frameserve file raw -dir ./frames -pattern '**/*.png' -loop
//
// Configuration:
//   - Environment variables (SHMFLOW_SHM_DIR, LOG_LEVEL, METRICS_ADDR)
//   - A table of a TOML, YAML or JSON file (-config, -config-key)
//   - CLI flags (override both)
//
// Signals:
//   - SIGINT, SIGTERM: unbind the sink; sources see end of stream
package main
