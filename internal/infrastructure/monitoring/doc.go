/*
Package monitoring provides performance monitoring and metrics collection.

# Overview

This package implements Prometheus-based metrics collection for pipeline
stages, tracking sample flow through shared-memory channels, back-pressure
waits, renderer outcomes and the optional diagnostics HTTP endpoint.

# Features

- Channel metrics (published/consumed samples, payload size, attached sources)
- Back-pressure metrics (publish wait, get wait)
- Component metrics (per-sample process duration)
- Viewer metrics (render outcomes)
- HTTP metrics for the diagnostics server
- System metrics (uptime)

# Usage

	// Create metrics collector on a dedicated registry
	reg := monitoring.NewRegistry()
	metrics := monitoring.NewMetrics(reg)
	defer metrics.Close()

	// Record channel activity
	metrics.RecordPublish("raw", 1920*1080*3, 2*time.Millisecond)

	// Time operations
	timer := monitoring.NewTimer(metrics, "posidet")
	// ... process one sample ...
	timer.Stop()

A nil *Metrics is valid and records nothing, so library code can accept
an optional collector without branching.

# Metrics Endpoint

Expose metrics via the standard Prometheus endpoint:

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
*/
package monitoring
