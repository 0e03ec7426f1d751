// Package cli implements the mosaic command line.
//
// Usage:
//
//	mosaic [flags] INPUT LIBRARY OUT_FILE
//
// Flags override environment variables (MOSAIC_WORKERS, MOSAIC_BLOCK_SIZE,
// MOSAIC_MAGNIFICATION), which override the --config file, which overrides
// the built-in defaults.
package cli
