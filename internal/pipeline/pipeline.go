package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"sync/atomic"
	"time"

	"photomosaic/internal/compositor"
	"photomosaic/internal/config"
	"photomosaic/internal/index"
	"photomosaic/internal/indexer"
	"photomosaic/internal/logging"
	"photomosaic/internal/matcher"
	"photomosaic/internal/media"
	"photomosaic/internal/memory"
	"photomosaic/internal/metrics"
	"photomosaic/internal/progress"
	"photomosaic/internal/tiles"

	"github.com/fatih/color"
)

// ErrAlreadyRun is returned when Run is called on an orchestrator that has
// left StageIdle.
var ErrAlreadyRun = errors.New("pipeline has already run")

// Timing is the wall-clock duration of one completed stage.
type Timing struct {
	Stage    Stage
	Duration time.Duration
}

// Orchestrator runs one mosaic build: index the library, load and align the
// source, composite, and save the output.
type Orchestrator struct {
	cfg    config.Config
	out    io.Writer
	budget memory.Budget

	stage   atomic.Int32
	timings []Timing
	stats   indexer.Stats
}

// New creates an orchestrator for cfg. cfg must already be validated.
// Timings and the progress bar are written to stderr, and the canvas is
// checked against the memory limit currently in force.
func New(cfg config.Config) *Orchestrator {
	return &Orchestrator{cfg: cfg, out: os.Stderr, budget: memory.Current()}
}

// SetBudget replaces the memory budget the canvas estimate is checked
// against. Call before Run.
func (o *Orchestrator) SetBudget(b memory.Budget) {
	o.budget = b
}

// SetOutput redirects timing and progress output. Call before Run.
func (o *Orchestrator) SetOutput(w io.Writer) {
	o.out = w
}

// Stage returns the current state. Safe to call while Run is in progress.
func (o *Orchestrator) Stage() Stage {
	return Stage(o.stage.Load())
}

// Timings returns the durations of the stages completed so far.
func (o *Orchestrator) Timings() []Timing {
	return o.timings
}

// IndexStats returns the statistics of the indexing stage.
func (o *Orchestrator) IndexStats() indexer.Stats {
	return o.stats
}

// Run executes every stage in order. The first error aborts the run, moves the
// orchestrator to StageFailed and is returned as a *StageError. The output
// file is only created once Persisting succeeds.
func (o *Orchestrator) Run(ctx context.Context) (err error) {
	if !o.stage.CompareAndSwap(int32(StageIdle), int32(StageIndexing)) {
		return ErrAlreadyRun
	}
	start := time.Now()

	defer func() {
		status := "success"
		if err != nil {
			status = "failed"
			o.stage.Store(int32(StageFailed))
		} else {
			o.stage.Store(int32(StageDone))
		}
		metrics.RunsTotal.WithLabelValues(status).Inc()
		o.writeMetrics()
		if err == nil {
			logging.Debug("Run complete in %v", time.Since(start))
		}
	}()

	var idx *index.Index
	err = o.runStage(ctx, StageIndexing, func(ctx context.Context) error {
		var err error
		idx, err = o.index(ctx)
		return err
	})
	if err != nil {
		return err
	}

	var src *image.NRGBA
	err = o.runStage(ctx, StagePreprocessing, func(context.Context) error {
		var err error
		src, err = o.preprocess()
		return err
	})
	if err != nil {
		return err
	}

	var canvas *image.NRGBA
	err = o.runStage(ctx, StageCompositing, func(ctx context.Context) error {
		var err error
		canvas, err = o.composite(ctx, idx, src)
		return err
	})
	if err != nil {
		return err
	}

	return o.runStage(ctx, StagePersisting, func(context.Context) error {
		return media.Save(canvas, o.cfg.OutputPath)
	})
}

// runStage enters stage, runs fn and records its duration.
func (o *Orchestrator) runStage(ctx context.Context, stage Stage, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return &StageError{Stage: stage, Err: err}
	}
	o.stage.Store(int32(stage))
	logging.Debug("Entering stage %s", stage)

	t0 := time.Now()
	err := fn(ctx)
	elapsed := time.Since(t0)

	if err != nil {
		logging.Debug("Stage %s failed after %v: %v", stage, elapsed, err)
		return &StageError{Stage: stage, Err: err}
	}

	o.timings = append(o.timings, Timing{Stage: stage, Duration: elapsed})
	metrics.StageDuration.WithLabelValues(stage.String()).Set(elapsed.Seconds())
	if o.cfg.PrintTimings {
		o.printTiming(stage, elapsed)
	}
	return nil
}

func (o *Orchestrator) printTiming(stage Stage, elapsed time.Duration) {
	fmt.Fprintf(o.out, "%s %s\n",
		color.CyanString("%-14s", stage.String()+":"),
		color.YellowString("%d ms", elapsed.Milliseconds()))
}

// index refreshes the library. An explicit pool size applies to the scan;
// with Workers = 0 the scan keeps its own default (INDEX_WORKERS or a mixed
// I/O and CPU sizing).
func (o *Orchestrator) index(ctx context.Context) (*index.Index, error) {
	scan := indexer.DefaultScanConfig()
	if o.cfg.Workers > 0 {
		scan.NumWorkers = o.cfg.Workers
	}
	idx, stats, err := indexer.New(scan).Refresh(ctx, o.cfg.LibraryDir)
	if err != nil {
		return nil, err
	}
	o.stats = stats
	return idx, nil
}

// preprocess checks the canvas size against the memory budget from the
// source header, then decodes and aligns the source.
func (o *Orchestrator) preprocess() (*image.NRGBA, error) {
	w, h, err := media.Dimensions(o.cfg.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load source image: %w", err)
	}
	aw, ah := compositor.AlignedSize(w, h, o.cfg.BlockSize)
	o.budget.Check(memory.EstimateComposite(aw, ah, o.cfg.Magnification))

	img, err := media.Open(o.cfg.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load source image: %w", err)
	}

	b := img.Bounds()
	aligned := compositor.Align(img, o.cfg.BlockSize)
	ab := aligned.Bounds()
	logging.Debug("Source %dx%d aligned to %dx%d (%dx%d regions)",
		b.Dx(), b.Dy(), ab.Dx(), ab.Dy(), ab.Dx()/o.cfg.BlockSize, ab.Dy()/o.cfg.BlockSize)
	return aligned, nil
}

func (o *Orchestrator) composite(ctx context.Context, idx *index.Index, src *image.NRGBA) (*image.NRGBA, error) {
	metric, err := matcher.ParseMetric(o.cfg.Metric)
	if err != nil {
		return nil, err
	}
	m, err := matcher.New(idx, matcher.Options{Metric: metric, Cache: o.cfg.ColorCache})
	if err != nil {
		return nil, err
	}

	tc, err := tiles.New(tiles.Options{
		Size:     o.cfg.TileSize(),
		Capacity: o.cfg.TileCacheSize,
		UseVips:  o.cfg.UseVips,
	})
	if err != nil {
		return nil, err
	}

	opts := compositor.Options{
		BlockSize:     o.cfg.BlockSize,
		Magnification: o.cfg.Magnification,
		Workers:       o.cfg.Workers,
	}

	var bar *progress.Reporter
	if o.cfg.Progress {
		b := src.Bounds()
		total := (b.Dx() / o.cfg.BlockSize) * (b.Dy() / o.cfg.BlockSize)
		bar = progress.New(o.out, "compositing", total)
		opts.OnRegionDone = bar.Increment
		bar.Start()
		defer bar.Stop()
	}

	c, err := compositor.New(opts, m, tc)
	if err != nil {
		return nil, err
	}

	canvas, err := c.Composite(ctx, src)
	if err != nil {
		return nil, err
	}
	logging.Debug("Composited with %d tiles cached", tc.Len())
	return canvas, nil
}

func (o *Orchestrator) writeMetrics() {
	if o.cfg.MetricsFile == "" {
		return
	}
	if err := metrics.WriteTextfile(o.cfg.MetricsFile); err != nil {
		logging.Warn("%v", err)
		return
	}
	logging.Debug("Wrote metrics to %s", o.cfg.MetricsFile)
}
