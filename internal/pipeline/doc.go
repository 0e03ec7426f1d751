// Package pipeline sequences a photomosaic run.
//
// An [Orchestrator] moves through a fixed set of stages:
//
//	idle -> indexing -> preprocessing -> compositing -> persisting -> done
//
// Any error moves it to the failed state and is returned as a [StageError]
// naming the stage. With PrintTimings set, each completed stage prints its
// duration in milliseconds. Stage durations and the run outcome are also
// recorded as Prometheus metrics and, when MetricsFile is set, written to a
// textfile at the end of the run.
package pipeline
