// Package config holds the mosaic run configuration.
//
// Settings are resolved in increasing precedence: built-in defaults, an
// optional TOML file, MOSAIC_* environment variables, then command-line
// flags. The result is validated once and treated as immutable afterwards.
//
// Example file:
//
//	block_size = 24
//	magnification = 3
//	workers = 0
//	color_cache = true
//	metric = "lab"
//	tile_cache_size = 512
//	memory_ratio = 0.75
package config
