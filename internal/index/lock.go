package index

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"photomosaic/internal/logging"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 100 * time.Millisecond

// Lock takes an exclusive cross-process lock on the index of dir, waiting
// until it is available or ctx is done. The returned function releases it.
func Lock(ctx context.Context, dir string) (func(), error) {
	fl := flock.New(filepath.Join(dir, LockFileName))

	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to lock index in %s: %w", dir, err)
	}
	if !locked {
		return nil, fmt.Errorf("failed to lock index in %s", dir)
	}

	return func() {
		if err := fl.Unlock(); err != nil {
			logging.Warn("failed to unlock index in %s: %v", dir, err)
		}
	}, nil
}

// IsReserved reports whether name is one of the index's own files, which
// are never treated as library tiles.
func IsReserved(name string) bool {
	if name == FileName || name == LockFileName {
		return true
	}
	matched, _ := filepath.Match(FileName+".*.tmp", name)
	return matched
}
