package tiles

import (
	"fmt"
	"image"
	"math"
	"time"

	"photomosaic/internal/logging"
	"photomosaic/internal/media"
	"photomosaic/internal/metrics"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Options configures a Cache.
type Options struct {
	// Size is the edge length, in pixels, of every resized tile.
	Size int
	// Capacity bounds the number of cached tiles (0 = unbounded).
	Capacity int
	// UseVips decodes tiles with libvips when it is available.
	UseVips bool
}

// Cache memoizes decoded tiles resized to Size x Size, keyed by library path.
// Concurrent requests for the same uncached path share one decode. Returned
// images are shared and must not be modified.
type Cache struct {
	size    int
	useVips bool

	tiles *lru.Cache[string, *image.NRGBA]
	group singleflight.Group
}

// New creates an empty tile cache.
func New(opts Options) (*Cache, error) {
	if opts.Size < 1 {
		return nil, fmt.Errorf("invalid tile size %d", opts.Size)
	}

	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = math.MaxInt32
	}
	tiles, err := lru.NewWithEvict(capacity, func(path string, _ *image.NRGBA) {
		metrics.TileCacheEvictions.Inc()
		logging.Debug("Evicted tile %s", path)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tile cache: %w", err)
	}

	return &Cache{
		size:    opts.Size,
		useVips: opts.UseVips,
		tiles:   tiles,
	}, nil
}

// Size returns the edge length of the cached tiles.
func (c *Cache) Size() int {
	return c.size
}

// Len returns the number of cached tiles.
func (c *Cache) Len() int {
	return c.tiles.Len()
}

// Resolve returns the tile at path resized to Size x Size, decoding it on the
// first request.
func (c *Cache) Resolve(path string) (*image.NRGBA, error) {
	if tile, ok := c.tiles.Get(path); ok {
		metrics.TileCacheHits.Inc()
		return tile, nil
	}

	v, err, _ := c.group.Do(path, func() (interface{}, error) {
		if tile, ok := c.tiles.Get(path); ok {
			metrics.TileCacheHits.Inc()
			return tile, nil
		}
		metrics.TileCacheMisses.Inc()

		tile, err := c.load(path)
		if err != nil {
			return nil, err
		}
		c.tiles.Add(path, tile)
		return tile, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*image.NRGBA), nil
}

// load decodes and resizes one tile.
func (c *Cache) load(path string) (*image.NRGBA, error) {
	start := time.Now()

	if c.useVips && media.IsVipsAvailable() {
		tile, err := media.LoadTileWithVips(path, c.size)
		if err == nil {
			metrics.TileDecodeDuration.WithLabelValues("vips").Observe(time.Since(start).Seconds())
			return tile, nil
		}
		logging.Debug("vips failed for %s: %v, falling back to imaging", path, err)
	}

	img, err := media.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load tile: %w", err)
	}
	tile := media.ResizeNearest(img, c.size, c.size)
	metrics.TileDecodeDuration.WithLabelValues("imaging").Observe(time.Since(start).Seconds())
	return tile, nil
}
