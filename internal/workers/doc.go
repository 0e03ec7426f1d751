/*
Package workers provides utilities for determining worker pool sizes in
containerized environments.

Inside a container with a CPU limit, runtime.NumCPU() still reports the host's
CPU count, while GOMAXPROCS follows the cgroup limit (Go 1.19+). Sizing pools
from GOMAXPROCS keeps the library scan and the compositing pass from spawning
far more workers than the container can schedule.

# Basic Usage

	// Compositing and tile resizing are CPU-bound
	numWorkers := workers.ForCPU(8)

	// Library scanning reads files and decodes images
	numWorkers := workers.ForMixed(8)

	// Honor an explicit --workers value, fall back to one per CPU
	numWorkers := workers.Resolve(cfg.Workers)

# Workload Types

  - CPU-bound (multiplier 1.0): resizing, color averaging, encoding
  - Mixed (multiplier 1.5): read a file, then decode it

All functions in this package are safe for concurrent use.
*/
package workers
