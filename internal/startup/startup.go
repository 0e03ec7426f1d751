package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"photomosaic/internal/config"
	"photomosaic/internal/logging"
	"photomosaic/internal/memory"
	"photomosaic/internal/workers"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// String renders the build info on one line for --version.
func (b BuildInfo) String() string {
	return fmt.Sprintf("%s (commit %s, built %s, %s %s/%s)",
		b.Version, b.Commit, b.BuildTime, b.GoVersion, b.OS, b.Arch)
}

// LogConfig prints the banner, system information and the resolved run
// configuration. Banner and system sections are only shown at debug level so
// a normal run stays quiet.
func LogConfig(cfg config.Config) {
	if logging.IsDebugEnabled() {
		printBanner()
		logSystemInfo()
	}

	logging.Debug("------------------------------------------------------------")
	logging.Debug("CONFIGURATION")
	logging.Debug("------------------------------------------------------------")
	logging.Debug("  Source:          %s", cfg.SourcePath)
	logging.Debug("  Library:         %s", cfg.LibraryDir)
	logging.Debug("  Output:          %s", cfg.OutputPath)
	logging.Debug("  Block size:      %d", cfg.BlockSize)
	logging.Debug("  Magnification:   %d (tile %dx%d)", cfg.Magnification, cfg.TileSize(), cfg.TileSize())
	logging.Debug("  Workers:         %s", workersString(cfg.Workers))
	logging.Debug("  Color metric:    %s", cfg.Metric)
	logging.Debug("  Color cache:     %s", enabledString(cfg.ColorCache))
	logging.Debug("  Tile cache size: %s", tileCacheString(cfg.TileCacheSize))
	logging.Debug("  libvips loader:  %s", enabledString(cfg.UseVips))
	logging.Debug("  Memory ratio:    %.2f", cfg.MemoryRatio)
	logging.Debug("  Print timings:   %s", enabledString(cfg.PrintTimings))
	logging.Debug("  Progress:        %s", enabledString(cfg.Progress))
	if cfg.MetricsFile != "" {
		logging.Debug("  Metrics file:    %s", cfg.MetricsFile)
	}
	logging.Debug("  LOG_LEVEL:       %s", logging.GetLevel())

	if logging.IsDebugEnabled() {
		logLibraryContents(cfg.LibraryDir)
	}
	logging.Debug("")
}

// LogMemoryConfig logs the heap budget of the run.
func LogMemoryConfig(b memory.Budget) {
	logging.Debug("  Memory limit:    %s", b)
	logging.Debug("")
}

// LogRunComplete logs the final summary of a successful run.
func LogRunComplete(output string, duration time.Duration) {
	logging.Info("Wrote %s in %v", output, duration.Round(time.Millisecond))
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
    ____  __          __                                  _
   / __ \/ /_  ____  / /_____  ____ ___  ____  _________ _(_)____
  / /_/ / __ \/ __ \/ __/ __ \/ __ '__ \/ __ \/ ___/ __ '/ / ___/
 / ____/ / / / /_/ / /_/ /_/ / / / / / / /_/ (__  ) /_/ / / /__
/_/   /_/ /_/\____/\__/\____/_/ /_/ /_/\____/____/\__,_/_/\___/

------------------------------------------------------------`
	fmt.Fprintln(os.Stderr, banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if wd, err := os.Getwd(); err == nil {
		logging.Debug("  Working dir:     %s", wd)
	}

	logging.Info("")
}

func logLibraryContents(dir string) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		logging.Debug("  Library contents: unreadable (%v)", err)
		return
	}

	fileCount := 0
	dirCount := 0
	for _, e := range entries {
		if e.IsDir() {
			dirCount++
		} else {
			fileCount++
		}
	}
	logging.Debug("  Library (absolute): %s", abs)
	logging.Debug("    Contents: %d files, %d directories (top level)", fileCount, dirCount)
}

func workersString(n int) string {
	if n == 0 {
		return "auto (" + strconv.Itoa(workers.Resolve(0)) + ")"
	}
	return strconv.Itoa(n)
}

func tileCacheString(n int) string {
	if n == 0 {
		return "unbounded"
	}
	return strconv.Itoa(n) + " tiles"
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}
