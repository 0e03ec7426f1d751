// Package metrics provides Prometheus instrumentation for the mosaic builder.
//
// A mosaic run is a short-lived batch job, so metrics are not scraped over
// HTTP. Instead the whole default registry can be written once, at the end of
// a run, to a textfile that node_exporter's textfile collector picks up (see
// WriteTextfile). All metrics are prefixed with "mosaic_".
//
// # Metric Categories
//
// ## Indexer Metrics
//   - IndexerFilesTotal: Library files by outcome (reused/computed/skipped)
//   - IndexerEvictedTotal: Entries dropped for files that disappeared
//   - IndexerEntries: Index size after the last refresh
//   - IndexerFileDuration: Per-file fingerprint and color time
//
// ## Matching and Tile Metrics
//   - MatcherLookupsTotal: Lookups served from the color cache or a scan
//   - TileCacheHits / TileCacheMisses / TileCacheEvictions
//   - TileDecodeDuration: Decode+resize time by loader (imaging/vips)
//
// ## Compositor and Pipeline Metrics
//   - RegionsTotal: Regions composited
//   - CompositeWorkers: Worker pool size of the compositing pass
//   - StageDuration: Duration of each pipeline stage
//   - RunsTotal: Runs by final status
package metrics
