// Package logging provides structured logging using uber/zap.
//
// Two modes are offered:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Output goes to stderr by default so stages that print samples to stdout
// (view pose, shmctl) stay pipeable.
//
// Example Usage:
//
//	logger := logging.NewDefault().ForComponent("posidet", instanceID)
//	logger.Info("Source connected", zap.String("channel", "raw"))
//	logger.Error("Failed to bind", zap.Error(err))
package logging
