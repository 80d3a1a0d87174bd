// Package viewer shows samples from a channel without slowing the pipeline.
//
// Display decouples reading from rendering: the stage loop offers every
// sample it reads, a separate goroutine renders only the newest one and no
// more often than the minimum update period. Renderers are wrapped in a
// circuit breaker so a broken output is retried occasionally rather than on
// every sample.
package viewer
