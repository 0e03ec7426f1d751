// Package startup handles run-time banner, build information and the
// sectioned configuration log printed at the beginning of a mosaic run.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//
//	go build -ldflags "-X photomosaic/internal/startup.Version=1.2.0 \
//	    -X photomosaic/internal/startup.Commit=$(git rev-parse --short HEAD)" ./cmd/mosaic
//
// # Lifecycle Logging
//
//   - [LogConfig]: banner, system information and resolved settings (debug level)
//   - [LogMemoryConfig]: memory limit configuration
//   - [LogRunComplete]: output path and total duration
//   - [LogFatal]: logs and exits non-zero
package startup
