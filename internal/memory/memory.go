package memory

import (
	"strconv"

	"photomosaic/internal/logging"
)

const bytesPerPixel = 4

// Estimate is the approximate peak heap needed to composite one image.
type Estimate struct {
	SourceBytes int64
	CanvasBytes int64
}

// Total returns the combined size of source and canvas buffers.
func (e Estimate) Total() int64 {
	return e.SourceBytes + e.CanvasBytes
}

// EstimateComposite sizes the aligned source buffer (width x height) and the
// output canvas it expands to at the given magnification, both as NRGBA.
func EstimateComposite(width, height, magnification int) Estimate {
	src := int64(width) * int64(height) * bytesPerPixel
	mag := int64(magnification)
	return Estimate{
		SourceBytes: src,
		CanvasBytes: src * mag * mag,
	}
}

// Check reports whether est fits the budget. An unlimited budget always
// fits. An oversized estimate is logged as a warning; the run continues and
// the runtime collects more aggressively.
func (b Budget) Check(est Estimate) bool {
	if b.Limit <= 0 {
		logging.Debug("Estimated composite memory: %s (no GOMEMLIMIT)", formatBytes(est.Total()))
		return true
	}
	if est.Total() > b.Limit {
		logging.Warn("Estimated composite memory %s exceeds GOMEMLIMIT %s (canvas %s)",
			formatBytes(est.Total()), formatBytes(b.Limit), formatBytes(est.CanvasBytes))
		return false
	}
	logging.Debug("Estimated composite memory: %s of %s", formatBytes(est.Total()), formatBytes(b.Limit))
	return true
}

// String describes the budget for the startup log.
func (b Budget) String() string {
	switch {
	case b.Limit <= 0:
		return "not configured"
	case b.Source == "MEMORY_LIMIT":
		return formatBytes(b.Limit) + " (" + formatPercent(b.Ratio) + " of container " + formatBytes(b.ContainerLimit) + ")"
	default:
		return formatBytes(b.Limit) + " (from " + b.Source + ")"
	}
}

func formatPercent(r float64) string {
	return strconv.FormatFloat(r*100, 'f', 0, 64) + "%"
}
