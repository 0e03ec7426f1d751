package indexer

import (
	"context"
	"crypto/md5" //nolint:gosec // MD5 used for change detection, not security
	"encoding/hex"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"photomosaic/internal/index"
	"photomosaic/internal/logging"
	"photomosaic/internal/media"
	"photomosaic/internal/metrics"
	"photomosaic/internal/workers"
)

// ScanConfig configures the parallel library scan
type ScanConfig struct {
	// NumWorkers is the number of parallel workers (0 = auto based on CPU)
	NumWorkers int
	// ChannelBuffer is the size of the work channel buffer
	ChannelBuffer int
}

// DefaultScanConfig returns sensible defaults based on available resources.
// INDEX_WORKERS overrides the worker count.
func DefaultScanConfig() ScanConfig {
	numWorkers := workers.ForMixed(8)
	if override := os.Getenv("INDEX_WORKERS"); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			numWorkers = count
		}
	}

	return ScanConfig{
		NumWorkers:    numWorkers,
		ChannelBuffer: 256,
	}
}

// outcome is what happened to one library file during a scan
type outcome int

const (
	outcomeReused outcome = iota
	outcomeComputed
	outcomeSkipped
)

func (o outcome) label() string {
	switch o {
	case outcomeReused:
		return "reused"
	case outcomeComputed:
		return "computed"
	default:
		return "skipped"
	}
}

// scanner fingerprints library files in parallel and records the results in
// a shared index
type scanner struct {
	config ScanConfig
	idx    *index.Index

	jobs chan string
	wg   sync.WaitGroup

	// Statistics
	reused   atomic.Int64
	computed atomic.Int64
	skipped  atomic.Int64
}

func newScanner(idx *index.Index, config ScanConfig) *scanner {
	if config.NumWorkers < 1 {
		config.NumWorkers = workers.ForMixed(8)
	}
	if config.ChannelBuffer < 0 {
		config.ChannelBuffer = 0
	}
	return &scanner{
		config: config,
		idx:    idx,
		jobs:   make(chan string, config.ChannelBuffer),
	}
}

// scan processes every name and blocks until all workers have finished.
func (s *scanner) scan(ctx context.Context, names []string) error {
	logging.Debug("Scanning %d library files with %d workers", len(names), s.config.NumWorkers)

	for i := 0; i < s.config.NumWorkers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	var err error
enqueue:
	for _, name := range names {
		select {
		case s.jobs <- name:
		case <-ctx.Done():
			err = ctx.Err()
			break enqueue
		}
	}

	close(s.jobs)
	s.wg.Wait()

	if err == nil {
		err = ctx.Err()
	}
	return err
}

// worker processes file names from the jobs channel
func (s *scanner) worker(ctx context.Context, id int) {
	defer s.wg.Done()

	logging.Debug("Index worker %d started", id)

	for name := range s.jobs {
		if ctx.Err() != nil {
			continue // drain
		}

		start := time.Now()
		o := s.processFile(name)
		metrics.IndexerFileDuration.Observe(time.Since(start).Seconds())
		metrics.IndexerFilesTotal.WithLabelValues(o.label()).Inc()

		switch o {
		case outcomeReused:
			s.reused.Add(1)
		case outcomeComputed:
			s.computed.Add(1)
		default:
			s.skipped.Add(1)
		}
	}

	logging.Debug("Index worker %d finished", id)
}

// processFile fingerprints one file and refreshes its index entry. Reading,
// hashing and decoding happen outside the index lock; only the final map
// mutation takes it.
func (s *scanner) processFile(name string) outcome {
	path := s.idx.Path(name)

	data, err := os.ReadFile(path)
	if err != nil {
		logging.Warn("Skipping unreadable file %s: %v", name, err)
		s.idx.Delete(name)
		return outcomeSkipped
	}

	sum := md5.Sum(data) //nolint:gosec // MD5 used for change detection, not security
	fingerprint := hex.EncodeToString(sum[:])

	if existing, ok := s.idx.Get(name); ok && existing.Fingerprint == fingerprint {
		logging.Debug("File %s has not changed", name)
		return outcomeReused
	}

	img, err := media.Decode(data)
	if err != nil {
		logging.Warn("Skipping unsupported file %s: %v", name, err)
		// A previously indexed file that no longer decodes must not keep its
		// old entry.
		s.idx.Delete(name)
		return outcomeSkipped
	}

	avg := media.AverageColorOf(img)
	s.idx.Put(index.Entry{Name: name, Fingerprint: fingerprint, Average: avg})
	logging.Debug("Indexed %s: average %s", name, avg.Hex())
	return outcomeComputed
}
