// Package memory sizes the Go heap for mosaic runs.
//
// [Configure] establishes a [Budget]: an explicit GOMEMLIMIT wins; otherwise
// MEMORY_LIMIT (container limit in bytes) is scaled by the configured
// memory_ratio (default 0.85) and applied as GOMEMLIMIT.
//
// The output canvas of a mosaic grows with the square of the magnification,
// so a large source at a high factor can need several gigabytes.
// [EstimateComposite] and [Budget.Check] let the pipeline warn about that
// before the source is decoded.
package memory
