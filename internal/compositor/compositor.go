package compositor

import (
	"context"
	"fmt"
	"image"
	"math"

	"photomosaic/internal/logging"
	"photomosaic/internal/media"
	"photomosaic/internal/metrics"
	"photomosaic/internal/workers"

	"golang.org/x/sync/errgroup"
)

// ColorMatcher resolves an average color to a library tile path.
type ColorMatcher interface {
	Closest(target media.RGB) (string, error)
}

// TileResolver returns a library tile resized to the output tile size.
type TileResolver interface {
	Resolve(path string) (*image.NRGBA, error)
}

// Region identifies one block of the aligned source image by grid position.
type Region struct {
	X, Y int
}

// Options configures a Compositor.
type Options struct {
	BlockSize     int
	Magnification int
	// Workers is the size of the worker pool (0 = one per CPU).
	Workers int
	// OnRegionDone, if set, is called once per completed region from the
	// worker goroutines.
	OnRegionDone func()
}

// Compositor replaces every block of a source image with its best matching
// tile.
type Compositor struct {
	opts    Options
	matcher ColorMatcher
	tiles   TileResolver
}

// New creates a Compositor.
func New(opts Options, matcher ColorMatcher, tiles TileResolver) (*Compositor, error) {
	if opts.BlockSize < 1 {
		return nil, fmt.Errorf("invalid block size %d", opts.BlockSize)
	}
	if opts.Magnification < 1 {
		return nil, fmt.Errorf("invalid magnification %d", opts.Magnification)
	}
	opts.Workers = workers.Resolve(opts.Workers)
	return &Compositor{opts: opts, matcher: matcher, tiles: tiles}, nil
}

// TileSize is the edge length of a tile in the output canvas.
func (c *Compositor) TileSize() int {
	return c.opts.BlockSize * c.opts.Magnification
}

// Regions lists the grid of blocks of an aligned image of the given bounds,
// row by row.
func (c *Compositor) Regions(bounds image.Rectangle) []Region {
	cols, rows := bounds.Dx()/c.opts.BlockSize, bounds.Dy()/c.opts.BlockSize
	regions := make([]Region, 0, cols*rows)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			regions = append(regions, Region{X: x, Y: y})
		}
	}
	return regions
}

// Composite builds the mosaic of src, which must already be aligned to the
// block size (see Align). The output canvas is Magnification times larger
// on both axes.
//
// Regions are processed by a fixed pool of workers. Each region owns a
// disjoint rectangle of the canvas, so workers write into it without
// locking. The first error cancels the remaining work.
func (c *Compositor) Composite(ctx context.Context, src *image.NRGBA) (*image.NRGBA, error) {
	bs, mag := c.opts.BlockSize, c.opts.Magnification
	w, h := src.Rect.Dx(), src.Rect.Dy()
	if w == 0 || h == 0 || w%bs != 0 || h%bs != 0 {
		return nil, fmt.Errorf("source %dx%d is not aligned to block size %d", w, h, bs)
	}
	if src.Rect.Min != (image.Point{}) {
		src = media.ToNRGBA(src)
	}

	canvas := image.NewNRGBA(image.Rect(0, 0, w*mag, h*mag))
	regions := c.Regions(src.Rect)

	logging.Info("Compositing %d regions (%dx%d grid) with %d workers into %dx%d canvas",
		len(regions), w/bs, h/bs, c.opts.Workers, canvas.Rect.Dx(), canvas.Rect.Dy())
	metrics.CompositeWorkers.Set(float64(c.opts.Workers))

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan Region)

	g.Go(func() error {
		defer close(jobs)
		for _, r := range regions {
			select {
			case jobs <- r:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for i := 0; i < c.opts.Workers; i++ {
		g.Go(func() error {
			for r := range jobs {
				if err := c.processRegion(src, canvas, r); err != nil {
					return err
				}
				metrics.RegionsTotal.Inc()
				if c.opts.OnRegionDone != nil {
					c.opts.OnRegionDone()
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return canvas, nil
}

// processRegion summarizes one source block, resolves its tile and copies
// the tile into the region's rectangle of the canvas.
func (c *Compositor) processRegion(src, canvas *image.NRGBA, r Region) error {
	bs := c.opts.BlockSize
	block := image.Rect(r.X*bs, r.Y*bs, (r.X+1)*bs, (r.Y+1)*bs)

	avg := media.AverageColor(src, block)
	path, err := c.matcher.Closest(avg)
	if err != nil {
		return fmt.Errorf("region (%d,%d): %w", r.X, r.Y, err)
	}

	tile, err := c.tiles.Resolve(path)
	if err != nil {
		return fmt.Errorf("region (%d,%d): %w", r.X, r.Y, err)
	}

	size := c.TileSize()
	if tile.Rect.Dx() != size || tile.Rect.Dy() != size {
		return fmt.Errorf("region (%d,%d): tile %s is %dx%d, want %dx%d",
			r.X, r.Y, path, tile.Rect.Dx(), tile.Rect.Dy(), size, size)
	}

	ox, oy := r.X*size, r.Y*size
	rowBytes := 4 * size
	for y := 0; y < size; y++ {
		s := tile.PixOffset(tile.Rect.Min.X, tile.Rect.Min.Y+y)
		d := canvas.PixOffset(ox, oy+y)
		copy(canvas.Pix[d:d+rowBytes], tile.Pix[s:s+rowBytes])
	}
	return nil
}

// AlignedSize rounds width and height to the nearest multiple of blockSize,
// never below one block.
func AlignedSize(width, height, blockSize int) (int, int) {
	round := func(v int) int {
		n := int(math.Round(float64(v) / float64(blockSize)))
		if n < 1 {
			n = 1
		}
		return n * blockSize
	}
	return round(width), round(height)
}

// Align resizes img so both dimensions are multiples of blockSize, using
// nearest-neighbor sampling.
func Align(img image.Image, blockSize int) *image.NRGBA {
	b := img.Bounds()
	w, h := AlignedSize(b.Dx(), b.Dy(), blockSize)
	if w != b.Dx() || h != b.Dy() {
		logging.Info("Resizing source from %dx%d to %dx%d", b.Dx(), b.Dy(), w, h)
	}
	return media.ResizeNearest(img, w, h)
}
