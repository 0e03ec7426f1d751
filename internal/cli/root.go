package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"photomosaic/internal/config"
	"photomosaic/internal/logging"
	"photomosaic/internal/media"
	"photomosaic/internal/memory"
	"photomosaic/internal/metrics"
	"photomosaic/internal/pipeline"
	"photomosaic/internal/progress"
	"photomosaic/internal/startup"
	"photomosaic/internal/workers"

	"github.com/spf13/cobra"
)

// options holds the raw flag values before they are merged into a Config.
type options struct {
	configFile    string
	colorCache    bool
	verbosity     int
	quiet         bool
	printTimings  bool
	blockSize     int
	magnification int
	threads       int
	metric        string
	tileCacheSize int
	useVips       bool
	metricsFile   string
	progress      bool
}

// NewRootCmd builds the mosaic command.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&options{})
}

func newRootCmd(opts *options) *cobra.Command {
	defaults := config.Defaults()

	cmd := &cobra.Command{
		Use:   "mosaic INPUT LIBRARY OUT_FILE",
		Short: "Build a photomosaic",
		Long: `mosaic recreates INPUT as a photomosaic. Every square block of the source
image is replaced by the image from the LIBRARY directory whose average color
is closest, and the result is written to OUT_FILE in the format implied by
its extension.

The library is indexed into LIBRARY/.mosaic_index so later runs only decode
new or changed files.`,
		Args:          cobra.ExactArgs(3),
		Version:       startup.GetBuildInfo().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd, opts, args)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configFile, "config", "", "TOML file with default settings")
	f.BoolVarP(&opts.colorCache, "color-caching", "c", defaults.ColorCache,
		"Cache closest-color matches. Helps when the input repeats colors or the library is large")
	f.CountVarP(&opts.verbosity, "verbose", "v", "Increase verbosity (repeatable)")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "Only log warnings and errors")
	f.BoolVarP(&opts.printTimings, "print-timings", "t", defaults.PrintTimings, "Print the duration of each stage")
	f.IntVarP(&opts.blockSize, "pixel-group-size", "g", defaults.BlockSize,
		"Edge length in pixels of the square regions replaced in the source image")
	f.IntVarP(&opts.magnification, "magnification", "m", defaults.Magnification,
		"Integer factor by which the source dimensions are increased")
	f.IntVar(&opts.threads, "threads", defaults.Workers, "Number of worker threads (0 = one per CPU)")
	f.StringVar(&opts.metric, "metric", defaults.Metric, "Color distance metric: rms or lab")
	f.IntVar(&opts.tileCacheSize, "tile-cache-size", defaults.TileCacheSize,
		"Maximum number of resized tiles kept in memory (0 = unbounded)")
	f.BoolVar(&opts.useVips, "vips", defaults.UseVips, "Decode library tiles with libvips when available")
	f.StringVar(&opts.metricsFile, "metrics-file", defaults.MetricsFile,
		"Write Prometheus metrics of the run to this file")
	f.BoolVar(&opts.progress, "progress", false, "Show a progress bar (default: on when stderr is a terminal)")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	return cmd
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// buildConfig merges defaults, the config file, the environment and the
// flags that were set explicitly, in that order.
func buildConfig(cmd *cobra.Command, opts *options, args []string) (config.Config, error) {
	cfg := config.Defaults()
	cfg.Progress = progress.IsTerminal(os.Stderr)

	if opts.configFile != "" {
		if err := config.LoadFile(opts.configFile, &cfg); err != nil {
			return cfg, err
		}
	}
	config.ApplyEnv(&cfg)

	cfg.SourcePath, cfg.LibraryDir, cfg.OutputPath = args[0], args[1], args[2]

	f := cmd.Flags()
	if f.Changed("color-caching") {
		cfg.ColorCache = opts.colorCache
	}
	if f.Changed("print-timings") {
		cfg.PrintTimings = opts.printTimings
	}
	if f.Changed("pixel-group-size") {
		cfg.BlockSize = opts.blockSize
	}
	if f.Changed("magnification") {
		cfg.Magnification = opts.magnification
	}
	if f.Changed("threads") {
		cfg.Workers = opts.threads
	}
	if f.Changed("metric") {
		cfg.Metric = opts.metric
	}
	if f.Changed("tile-cache-size") {
		cfg.TileCacheSize = opts.tileCacheSize
	}
	if f.Changed("vips") {
		cfg.UseVips = opts.useVips
	}
	if f.Changed("metrics-file") {
		cfg.MetricsFile = opts.metricsFile
	}
	if f.Changed("progress") {
		cfg.Progress = opts.progress
	}

	cfg.Verbosity = opts.verbosity
	if opts.quiet {
		cfg.Verbosity = -1
		if !f.Changed("progress") {
			cfg.Progress = false
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// run executes one pipeline with cfg.
func run(ctx context.Context, cfg config.Config) error {
	start := time.Now()

	if cfg.Verbosity != 0 {
		logging.SetLevel(logging.LevelFromVerbosity(cfg.Verbosity))
	}
	budget := memory.Configure(cfg.MemoryRatio)
	startup.LogConfig(cfg)
	startup.LogMemoryConfig(budget)
	metrics.InitializeMetrics()

	if cfg.UseVips {
		if err := media.InitVips(workers.Resolve(cfg.Workers)); err != nil {
			logging.Warn("libvips unavailable, decoding tiles with imaging: %v", err)
		}
		defer media.ShutdownVips()
	}

	o := pipeline.New(cfg)
	o.SetBudget(budget)
	if err := o.Run(ctx); err != nil {
		return fmt.Errorf("mosaic failed: %w", err)
	}

	startup.LogRunComplete(cfg.OutputPath, time.Since(start))
	return nil
}
