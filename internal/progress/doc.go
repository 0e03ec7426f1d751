// Package progress renders a coarse, single-line progress bar for
// long-running passes. Progress has no effect on the work itself.
package progress
