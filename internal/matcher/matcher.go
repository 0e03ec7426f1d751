package matcher

import (
	"errors"
	"fmt"
	"math"

	"photomosaic/internal/index"
	"photomosaic/internal/logging"
	"photomosaic/internal/media"
	"photomosaic/internal/metrics"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/sync/singleflight"
)

// ErrNoTilesAvailable is returned when the library index has no entries.
var ErrNoTilesAvailable = errors.New("no tiles available")

// DefaultCacheSize bounds the color cache when Options.CacheSize is zero.
const DefaultCacheSize = 1 << 16

// Metric selects how the distance between two average colors is measured.
type Metric string

const (
	// MetricRMS compares squared channel values:
	// sqrt(|r²-R²| + |g²-G²| + |b²-B²|), truncated to an integer.
	MetricRMS Metric = "rms"
	// MetricLab is the euclidean distance in CIE L*a*b*.
	MetricLab Metric = "lab"
)

// ParseMetric validates a metric name.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(s); m {
	case MetricRMS, MetricLab:
		return m, nil
	case "":
		return MetricRMS, nil
	default:
		return "", fmt.Errorf("unknown color metric %q (want %q or %q)", s, MetricRMS, MetricLab)
	}
}

// Options configures a Matcher.
type Options struct {
	Metric Metric
	// Cache enables memoization of target color -> path.
	Cache bool
	// CacheSize bounds the number of memoized colors (0 = DefaultCacheSize).
	CacheSize int
}

// candidate is one library entry prepared for scanning.
type candidate struct {
	path    string
	average media.RGB
	lab     [3]float64
}

// Matcher finds the library tile whose average color is closest to a target.
// It works on a snapshot of the index taken by New and is safe for concurrent
// use.
type Matcher struct {
	metric     Metric
	candidates []candidate

	cache *lru.Cache[media.RGB, string]
	group singleflight.Group
}

// New snapshots idx, ordered by file name so that ties resolve the same way
// on every run.
func New(idx *index.Index, opts Options) (*Matcher, error) {
	metric, err := ParseMetric(string(opts.Metric))
	if err != nil {
		return nil, err
	}

	entries := idx.Entries()
	m := &Matcher{
		metric:     metric,
		candidates: make([]candidate, len(entries)),
	}
	for i, e := range entries {
		m.candidates[i] = candidate{
			path:    idx.Path(e.Name),
			average: e.Average,
			lab:     labOf(e.Average),
		}
	}

	if opts.Cache {
		size := opts.CacheSize
		if size <= 0 {
			size = DefaultCacheSize
		}
		m.cache, err = lru.New[media.RGB, string](size)
		if err != nil {
			return nil, fmt.Errorf("failed to create color cache: %w", err)
		}
		logging.Debug("Color match cache enabled (size %d)", size)
	}

	return m, nil
}

// Len returns the number of candidate tiles.
func (m *Matcher) Len() int {
	return len(m.candidates)
}

// Closest returns the path of the library tile nearest to target.
//
// With caching enabled, concurrent misses on the same color share a single
// scan and its result is memoized.
func (m *Matcher) Closest(target media.RGB) (string, error) {
	if len(m.candidates) == 0 {
		return "", ErrNoTilesAvailable
	}

	if m.cache == nil {
		metrics.MatcherLookupsTotal.WithLabelValues("scan").Inc()
		return m.scan(target), nil
	}

	if path, ok := m.cache.Get(target); ok {
		metrics.MatcherLookupsTotal.WithLabelValues("cache").Inc()
		return path, nil
	}

	v, _, _ := m.group.Do(target.Hex(), func() (interface{}, error) {
		if path, ok := m.cache.Get(target); ok {
			return path, nil
		}
		metrics.MatcherLookupsTotal.WithLabelValues("scan").Inc()
		path := m.scan(target)
		m.cache.Add(target, path)
		return path, nil
	})
	return v.(string), nil
}

// scan is a linear search over all candidates. The first candidate with the
// smallest distance wins.
func (m *Matcher) scan(target media.RGB) string {
	best := 0
	switch m.metric {
	case MetricLab:
		t := labOf(target)
		bestDist := math.Inf(1)
		for i := range m.candidates {
			if d := labDistance(m.candidates[i].lab, t); d < bestDist {
				best, bestDist = i, d
			}
		}
	default:
		bestDist := math.MaxInt
		for i := range m.candidates {
			if d := Distance(m.candidates[i].average, target); d < bestDist {
				best, bestDist = i, d
				if d == 0 {
					break
				}
			}
		}
	}
	return m.candidates[best].path
}

// Distance is the tile matching metric: the square root of the summed
// absolute differences of squared channel values, truncated to an integer.
// It is deliberately not the euclidean RGB distance.
func Distance(a, b media.RGB) int {
	var sum int
	for c := 0; c < 3; c++ {
		x, y := int(a[c]), int(b[c])
		d := x*x - y*y
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return int(math.Sqrt(float64(sum)))
}

func labOf(c media.RGB) [3]float64 {
	l, a, b := colorful.Color{
		R: float64(c[0]) / 255,
		G: float64(c[1]) / 255,
		B: float64(c[2]) / 255,
	}.Lab()
	return [3]float64{l, a, b}
}

func labDistance(a, b [3]float64) float64 {
	dl, da, db := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return math.Sqrt(dl*dl + da*da + db*db)
}
