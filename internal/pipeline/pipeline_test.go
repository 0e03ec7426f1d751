package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"photomosaic/internal/config"
	"photomosaic/internal/index"
	"photomosaic/internal/logging"
	"photomosaic/internal/matcher"
	"photomosaic/internal/media"
	"photomosaic/internal/memory"

	fcolor "github.com/fatih/color"
)

var (
	red  = color.NRGBA{255, 0, 0, 255}
	blue = color.NRGBA{0, 0, 255, 255}
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("Failed to encode %s: %v", path, err)
	}
}

// setup writes a red/blue tile library and returns a config pointing at it
// with src as the source image.
func setup(t *testing.T, src image.Image) config.Config {
	t.Helper()
	dir := t.TempDir()
	lib := filepath.Join(dir, "library")
	if err := os.Mkdir(lib, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	writePNG(t, filepath.Join(lib, "red.png"), solid(7, 7, red))
	writePNG(t, filepath.Join(lib, "blue.png"), solid(3, 9, blue))

	srcPath := filepath.Join(dir, "source.png")
	writePNG(t, srcPath, src)

	cfg := config.Defaults()
	cfg.SourcePath = srcPath
	cfg.LibraryDir = lib
	cfg.OutputPath = filepath.Join(dir, "out.png")
	return cfg
}

func newQuiet(cfg config.Config) (*Orchestrator, *bytes.Buffer) {
	var buf bytes.Buffer
	o := New(cfg)
	o.SetOutput(&buf)
	return o, &buf
}

func assertRegion(t *testing.T, img image.Image, r image.Rectangle, want color.NRGBA) {
	t.Helper()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			got := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if got != want {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestRunSolidRed(t *testing.T) {
	cfg := setup(t, solid(32, 32, red))
	cfg.Magnification = 1

	o, _ := newQuiet(cfg)
	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if o.Stage() != StageDone {
		t.Errorf("Stage() = %v, want done", o.Stage())
	}

	out, err := media.Open(cfg.OutputPath)
	if err != nil {
		t.Fatalf("Open output: %v", err)
	}
	if b := out.Bounds(); b.Dx() != 32 || b.Dy() != 32 {
		t.Fatalf("output is %dx%d, want 32x32", b.Dx(), b.Dy())
	}
	assertRegion(t, out, image.Rect(0, 0, 32, 32), red)

	stats := o.IndexStats()
	if stats.Computed != 2 {
		t.Errorf("IndexStats().Computed = %d, want 2", stats.Computed)
	}
}

func TestRunQuadrants(t *testing.T) {
	src := solid(32, 32, blue)
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			src.SetNRGBA(x, y, red)
		}
	}
	cfg := setup(t, src)
	cfg.BlockSize = 16
	cfg.Magnification = 2
	cfg.ColorCache = true

	o, _ := newQuiet(cfg)
	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	out, err := media.Open(cfg.OutputPath)
	if err != nil {
		t.Fatalf("Open output: %v", err)
	}
	if b := out.Bounds(); b.Dx() != 64 || b.Dy() != 64 {
		t.Fatalf("output is %dx%d, want 64x64", b.Dx(), b.Dy())
	}
	assertRegion(t, out, image.Rect(0, 0, 32, 32), red)
	assertRegion(t, out, image.Rect(32, 0, 64, 32), blue)
	assertRegion(t, out, image.Rect(0, 32, 32, 64), blue)
	assertRegion(t, out, image.Rect(32, 32, 64, 64), blue)
}

func TestRunDeterministicAcrossWorkerCounts(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 48, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 48; x++ {
			src.SetNRGBA(x, y, color.NRGBA{uint8(x * 5), uint8(y * 6), uint8((x + y) * 3), 255})
		}
	}

	var outputs [][]byte
	for _, n := range []int{1, 6} {
		cfg := setup(t, src)
		cfg.BlockSize = 8
		cfg.Workers = n
		o, _ := newQuiet(cfg)
		if err := o.Run(context.Background()); err != nil {
			t.Fatalf("Run() with %d workers error = %v", n, err)
		}
		data, err := os.ReadFile(cfg.OutputPath)
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		outputs = append(outputs, data)
	}

	if !bytes.Equal(outputs[0], outputs[1]) {
		t.Error("output differs between 1 and 6 workers")
	}
}

func TestRunFailures(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(t *testing.T, cfg *config.Config)
		wantStage Stage
		wantErr   error
	}{
		{
			name: "missing source",
			mutate: func(_ *testing.T, cfg *config.Config) {
				cfg.SourcePath = filepath.Join(filepath.Dir(cfg.SourcePath), "nope.png")
			},
			wantStage: StagePreprocessing,
		},
		{
			name: "undecodable source",
			mutate: func(t *testing.T, cfg *config.Config) {
				if err := os.WriteFile(cfg.SourcePath, []byte("not an image"), 0o644); err != nil {
					t.Fatalf("WriteFile: %v", err)
				}
			},
			wantStage: StagePreprocessing,
		},
		{
			name: "missing library",
			mutate: func(_ *testing.T, cfg *config.Config) {
				cfg.LibraryDir = filepath.Join(cfg.LibraryDir, "missing")
			},
			wantStage: StageIndexing,
		},
		{
			name: "corrupt index",
			mutate: func(t *testing.T, cfg *config.Config) {
				path := filepath.Join(cfg.LibraryDir, index.FileName)
				if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
					t.Fatalf("WriteFile: %v", err)
				}
			},
			wantStage: StageIndexing,
			wantErr:   index.ErrCorruptIndex,
		},
		{
			name: "empty library",
			mutate: func(t *testing.T, cfg *config.Config) {
				for _, name := range []string{"red.png", "blue.png"} {
					if err := os.Remove(filepath.Join(cfg.LibraryDir, name)); err != nil {
						t.Fatalf("Remove: %v", err)
					}
				}
				if err := os.WriteFile(filepath.Join(cfg.LibraryDir, "notes.txt"), []byte("hi"), 0o644); err != nil {
					t.Fatalf("WriteFile: %v", err)
				}
			},
			wantStage: StageCompositing,
			wantErr:   matcher.ErrNoTilesAvailable,
		},
		{
			name: "unwritable output",
			mutate: func(_ *testing.T, cfg *config.Config) {
				cfg.OutputPath = filepath.Join(filepath.Dir(cfg.OutputPath), "no", "such", "dir", "out.png")
			},
			wantStage: StagePersisting,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := setup(t, solid(32, 32, red))
			tt.mutate(t, &cfg)

			o, _ := newQuiet(cfg)
			err := o.Run(context.Background())
			if err == nil {
				t.Fatal("Run() succeeded, want error")
			}

			var stageErr *StageError
			if !errors.As(err, &stageErr) {
				t.Fatalf("Run() error = %T %v, want *StageError", err, err)
			}
			if stageErr.Stage != tt.wantStage {
				t.Errorf("failed in %v, want %v (err %v)", stageErr.Stage, tt.wantStage, err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Run() error = %v, want %v", err, tt.wantErr)
			}
			if o.Stage() != StageFailed {
				t.Errorf("Stage() = %v, want failed", o.Stage())
			}
			if _, err := os.Stat(cfg.OutputPath); !os.IsNotExist(err) {
				t.Errorf("output file should not exist after a failed run")
			}
		})
	}
}

func TestRunCancelled(t *testing.T) {
	cfg := setup(t, solid(32, 32, red))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o, _ := newQuiet(cfg)
	err := o.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if o.Stage() != StageFailed {
		t.Errorf("Stage() = %v, want failed", o.Stage())
	}
}

func TestRunOnlyOnce(t *testing.T) {
	cfg := setup(t, solid(16, 16, red))
	o, _ := newQuiet(cfg)
	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if err := o.Run(context.Background()); !errors.Is(err, ErrAlreadyRun) {
		t.Errorf("second Run() error = %v, want ErrAlreadyRun", err)
	}
}

func TestRunPrintsTimings(t *testing.T) {
	fcolor.NoColor = true

	cfg := setup(t, solid(32, 32, red))
	cfg.PrintTimings = true

	o, buf := newQuiet(cfg)
	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	timings := o.Timings()
	if len(timings) != 4 {
		t.Fatalf("Timings() has %d entries, want 4", len(timings))
	}
	want := []Stage{StageIndexing, StagePreprocessing, StageCompositing, StagePersisting}
	for i, stage := range want {
		if timings[i].Stage != stage {
			t.Errorf("Timings()[%d].Stage = %v, want %v", i, timings[i].Stage, stage)
		}
		if !strings.Contains(buf.String(), stage.String()+":") {
			t.Errorf("timing output missing %q: %q", stage, buf.String())
		}
	}
	if !strings.Contains(buf.String(), " ms") {
		t.Errorf("timing output missing milliseconds: %q", buf.String())
	}
}

func TestRunProgressAndMetricsFile(t *testing.T) {
	cfg := setup(t, solid(32, 32, red))
	cfg.BlockSize = 8
	cfg.Progress = true
	cfg.MetricsFile = filepath.Join(t.TempDir(), "mosaic.prom")

	o, buf := newQuiet(cfg)
	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !strings.Contains(buf.String(), "100% (16/16)") {
		t.Errorf("progress output = %q, want completed bar", buf.String())
	}

	data, err := os.ReadFile(cfg.MetricsFile)
	if err != nil {
		t.Fatalf("metrics file not written: %v", err)
	}
	for _, name := range []string{"mosaic_runs_total", "mosaic_stage_duration_seconds", "mosaic_regions_total"} {
		if !strings.Contains(string(data), name) {
			t.Errorf("metrics file missing %s", name)
		}
	}
}

func TestStageString(t *testing.T) {
	tests := []struct {
		stage Stage
		want  string
	}{
		{StageIdle, "idle"},
		{StageIndexing, "indexing"},
		{StagePreprocessing, "preprocessing"},
		{StageCompositing, "compositing"},
		{StagePersisting, "persisting"},
		{StageDone, "done"},
		{StageFailed, "failed"},
		{Stage(42), "stage(42)"},
	}
	for _, tt := range tests {
		if got := tt.stage.String(); got != tt.want {
			t.Errorf("Stage(%d).String() = %q, want %q", tt.stage, got, tt.want)
		}
	}
}

func TestStageErrorUnwrap(t *testing.T) {
	err := &StageError{Stage: StagePersisting, Err: os.ErrPermission}
	if !errors.Is(err, os.ErrPermission) {
		t.Error("StageError should unwrap to its cause")
	}
	if got := err.Error(); !strings.HasPrefix(got, "persisting failed:") {
		t.Errorf("Error() = %q", got)
	}
}

func TestRunChecksCanvasAgainstBudget(t *testing.T) {
	// 40x24 aligns to 48x32 at block size 16; at magnification 2 the source
	// and canvas need 6144 + 24576 bytes.
	tests := []struct {
		name     string
		limit    int64
		wantWarn bool
	}{
		{name: "unlimited", limit: 0},
		{name: "fits", limit: 30720},
		{name: "too small", limit: 30719, wantWarn: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := setup(t, solid(40, 24, red))

			var logs bytes.Buffer
			log.SetOutput(&logs)
			prev := logging.GetLevel()
			logging.SetLevel(logging.LevelInfo)
			defer func() {
				log.SetOutput(os.Stderr)
				logging.SetLevel(prev)
			}()

			o, _ := newQuiet(cfg)
			o.SetBudget(memory.Budget{Limit: tt.limit, Source: "GOMEMLIMIT"})
			if err := o.Run(context.Background()); err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			warned := strings.Contains(logs.String(), "exceeds GOMEMLIMIT")
			if warned != tt.wantWarn {
				t.Errorf("budget warning = %v, want %v; log: %s", warned, tt.wantWarn, logs.String())
			}
		})
	}
}

func TestRunScanWorkers(t *testing.T) {
	tests := []struct {
		name         string
		workers      int
		indexWorkers string
		want         int
	}{
		{name: "explicit pool size", workers: 3, indexWorkers: "5", want: 3},
		{name: "auto uses INDEX_WORKERS", workers: 0, indexWorkers: "5", want: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("INDEX_WORKERS", tt.indexWorkers)
			cfg := setup(t, solid(16, 16, red))
			cfg.Workers = tt.workers

			o, _ := newQuiet(cfg)
			if err := o.Run(context.Background()); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if got := o.IndexStats().Workers; got != tt.want {
				t.Errorf("IndexStats().Workers = %d, want %d", got, tt.want)
			}
		})
	}
}
