package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Indexer metrics
var (
	IndexerFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mosaic_indexer_files_total",
			Help: "Library files processed by the indexer, by outcome",
		},
		[]string{"outcome"}, // "reused", "computed", "skipped"
	)

	IndexerEvictedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mosaic_indexer_evicted_total",
			Help: "Index entries dropped because their file no longer exists",
		},
	)

	IndexerEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mosaic_indexer_entries",
			Help: "Number of entries in the library index after the last refresh",
		},
	)

	IndexerFileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mosaic_indexer_file_duration_seconds",
			Help:    "Time spent fingerprinting and summarizing one library file",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)
)

// Matcher metrics
var (
	MatcherLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mosaic_matcher_lookups_total",
			Help: "Closest-color lookups, by result source",
		},
		[]string{"source"}, // "cache", "scan"
	)
)

// Tile cache metrics
var (
	TileCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mosaic_tile_cache_hits_total",
			Help: "Tile requests served from the resized tile cache",
		},
	)

	TileCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mosaic_tile_cache_misses_total",
			Help: "Tile requests that required decoding and resizing",
		},
	)

	TileCacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mosaic_tile_cache_evictions_total",
			Help: "Resized tiles evicted from a bounded tile cache",
		},
	)

	TileDecodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mosaic_tile_decode_duration_seconds",
			Help:    "Tile decode and resize duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"loader"}, // "imaging", "vips"
	)
)

// Compositor metrics
var (
	RegionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mosaic_regions_total",
			Help: "Source regions replaced by a tile",
		},
	)

	CompositeWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mosaic_composite_workers",
			Help: "Number of workers used for the compositing pass",
		},
	)
)

// Pipeline metrics
var (
	StageDuration = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mosaic_stage_duration_seconds",
			Help: "Wall-clock duration of each pipeline stage of the last run",
		},
		[]string{"stage"},
	)

	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mosaic_runs_total",
			Help: "Pipeline runs, by final status",
		},
		[]string{"status"}, // "success", "failed"
	)
)
