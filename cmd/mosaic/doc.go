// Package main provides the entry point for the mosaic command.
//
// mosaic rebuilds a source image out of smaller library images:
//
//	mosaic -c -t -g 16 -m 2 portrait.jpg ./library portrait-mosaic.png
//
// # Run Lifecycle
//
//  1. Configuration: defaults, --config TOML file, MOSAIC_* environment, flags
//  2. Memory budget: sets GOMEMLIMIT from MEMORY_LIMIT times memory_ratio
//  3. Indexing: fingerprints the library and refreshes LIBRARY/.mosaic_index
//  4. Preprocessing: decodes INPUT and aligns it to the block size
//  5. Compositing: matches every block to a tile in parallel
//  6. Persisting: writes OUT_FILE atomically
//
// SIGINT and SIGTERM cancel the run. Any failure exits with status 1 and
// leaves no output file behind.
//
// # Environment Variables
//
//   - LOG_LEVEL, DEBUG: initial log level (overridden by -v and -q)
//   - MOSAIC_WORKERS, MOSAIC_BLOCK_SIZE, MOSAIC_MAGNIFICATION: setting overrides
//   - MEMORY_RATIO: overrides memory_ratio from the config file
//   - MEMORY_LIMIT, GOMEMLIMIT: heap sizing
package main
