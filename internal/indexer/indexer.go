package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"photomosaic/internal/index"
	"photomosaic/internal/logging"
	"photomosaic/internal/metrics"
)

// Stats summarizes one refresh of a library index.
type Stats struct {
	Reused   int
	Computed int
	Skipped  int
	Evicted  int
	Workers  int
	Duration time.Duration
}

// Indexer keeps the content index of a tile library directory up to date.
type Indexer struct {
	config ScanConfig
}

// New creates an Indexer that scans with the given configuration.
func New(config ScanConfig) *Indexer {
	return &Indexer{config: config}
}

// Refresh loads the index of dir, drops entries for deleted files,
// fingerprints every library file in parallel, recomputes average colors for
// new or changed files and persists the result.
//
// Files that cannot be read or decoded are skipped and never become match
// candidates. An unreadable directory, a corrupt index file or a failed save
// abort the refresh.
func (i *Indexer) Refresh(ctx context.Context, dir string) (*index.Index, Stats, error) {
	start := time.Now()

	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("failed to resolve library directory: %w", err)
	}

	if info, err := os.Stat(dir); err != nil {
		return nil, Stats{}, fmt.Errorf("failed to read library directory: %w", err)
	} else if !info.IsDir() {
		return nil, Stats{}, fmt.Errorf("library path %s is not a directory", dir)
	}

	unlock, err := index.Lock(ctx, dir)
	if err != nil {
		return nil, Stats{}, err
	}
	defer unlock()

	idx, evicted, err := index.Load(dir)
	if err != nil {
		return nil, Stats{}, err
	}
	metrics.IndexerEvictedTotal.Add(float64(evicted))

	names, err := listFiles(dir)
	if err != nil {
		return nil, Stats{}, err
	}

	logging.Info("Indexing %d files in %s...", len(names), dir)

	s := newScanner(idx, i.config)
	if err := s.scan(ctx, names); err != nil {
		return nil, Stats{}, fmt.Errorf("library scan interrupted: %w", err)
	}

	if err := idx.Save(); err != nil {
		return nil, Stats{}, err
	}
	metrics.IndexerEntries.Set(float64(idx.Len()))

	stats := Stats{
		Reused:   int(s.reused.Load()),
		Computed: int(s.computed.Load()),
		Skipped:  int(s.skipped.Load()),
		Evicted:  evicted,
		Workers:  s.config.NumWorkers,
		Duration: time.Since(start),
	}
	logging.Info("Index complete: %d entries (%d reused, %d computed, %d skipped, %d evicted) in %v",
		idx.Len(), stats.Reused, stats.Computed, stats.Skipped, stats.Evicted, stats.Duration)

	return idx, stats, nil
}

// listFiles returns the names of every non-directory entry of dir except the
// index's own files.
func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read library directory %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || index.IsReserved(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}
