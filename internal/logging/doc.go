// Package logging provides a simple leveled logging interface for the
// mosaic builder.
//
// It supports the following log levels:
//   - DEBUG: Per-file and per-cache decisions
//   - INFO: Stage progress and summaries
//   - WARN: Skipped library files and resource warnings
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the run
//
// The initial level comes from the DEBUG or LOG_LEVEL environment
// variables; the command line verbosity flag overrides it via SetLevel.
package logging
