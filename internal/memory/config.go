package memory

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"photomosaic/internal/logging"
)

// DefaultMemoryRatio is the share of a container limit given to the Go heap
// when the run configuration does not set memory_ratio.
const DefaultMemoryRatio = 0.85

// Budget is the heap budget a run composites against.
type Budget struct {
	// Limit is the effective GOMEMLIMIT in bytes (0 = unlimited).
	Limit int64

	// Source is "GOMEMLIMIT", "MEMORY_LIMIT" or "none".
	Source string

	// ContainerLimit is MEMORY_LIMIT in bytes when that was the source.
	ContainerLimit int64

	// Ratio is the share of ContainerLimit applied.
	Ratio float64
}

// Configure establishes the heap budget for a run. An explicit GOMEMLIMIT is
// left untouched and reported. Otherwise, when MEMORY_LIMIT holds the
// container limit in bytes, GOMEMLIMIT is set to ratio of it (ratio outside
// (0, 1] falls back to DefaultMemoryRatio).
func Configure(ratio float64) Budget {
	if os.Getenv("GOMEMLIMIT") != "" {
		b := Current()
		b.Source = "GOMEMLIMIT"
		return b
	}

	memLimitStr := os.Getenv("MEMORY_LIMIT")
	if memLimitStr == "" {
		return Current()
	}
	memLimit, err := strconv.ParseInt(memLimitStr, 10, 64)
	if err != nil || memLimit <= 0 {
		logging.Warn("Ignoring MEMORY_LIMIT %q: not a positive byte count", memLimitStr)
		return Current()
	}

	if ratio <= 0 || ratio > 1 {
		ratio = DefaultMemoryRatio
	}
	limit := int64(float64(memLimit) * ratio)
	debug.SetMemoryLimit(limit)

	return Budget{
		Limit:          limit,
		Source:         "MEMORY_LIMIT",
		ContainerLimit: memLimit,
		Ratio:          ratio,
	}
}

// Current reports the limit the runtime is already enforcing.
func Current() Budget {
	limit := debug.SetMemoryLimit(-1)
	if limit <= 0 || limit == math.MaxInt64 {
		return Budget{Source: "none"}
	}
	return Budget{Limit: limit, Source: "GOMEMLIMIT"}
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
