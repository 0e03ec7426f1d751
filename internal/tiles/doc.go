// Package tiles caches library images decoded and resized to the output tile
// size, so a tile chosen for many regions is decoded only once per run.
package tiles
