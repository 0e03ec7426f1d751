package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Stages lists the pipeline stages that report a duration.
var Stages = []string{"indexing", "preprocessing", "compositing", "persisting"}

// InitializeMetrics pre-populates all expected label combinations so that
// every metric appears in the exported textfile even when it stayed at zero.
// Call this once at startup.
func InitializeMetrics() {
	for _, outcome := range []string{"reused", "computed", "skipped"} {
		IndexerFilesTotal.WithLabelValues(outcome)
	}

	for _, source := range []string{"cache", "scan"} {
		MatcherLookupsTotal.WithLabelValues(source)
	}

	for _, loader := range []string{"imaging", "vips"} {
		TileDecodeDuration.WithLabelValues(loader)
	}

	for _, stage := range Stages {
		StageDuration.WithLabelValues(stage)
	}

	for _, status := range []string{"success", "failed"} {
		RunsTotal.WithLabelValues(status)
	}
}

// WriteTextfile writes every registered metric to path in the Prometheus
// text exposition format, suitable for the node_exporter textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
