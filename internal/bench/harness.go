package bench

import "github.com/lutzcle/gokmeans"

// RunStats is one completed run's result: the iteration count actually
// used (spec.md §8 scenario 6's iterations_used) and the root of its
// measurement tree. Mirrors the original implementation's KmeansStats.
type RunStats struct {
	IterationsUsed int
	Root           *DataPoint
}

// RunFunc executes one complete iteration loop and returns its stats.
type RunFunc func(run int) (*RunStats, error)

// Harness runs a RunFunc Runs times, tagging each resulting measurement
// tree with its run index. Run does not read Verify and compares nothing
// across runs.
type Harness struct {
	Runs   int
	Verify bool
}

// Run executes fn Runs times and returns one RunStats per run, in order.
func (h *Harness) Run(fn RunFunc) ([]*RunStats, error) {
	if h.Runs <= 0 {
		return nil, gokmeans.NewError("Harness.Run", gokmeans.InvalidArgument, "runs must be positive")
	}
	stats := make([]*RunStats, h.Runs)
	for run := 0; run < h.Runs; run++ {
		s, err := fn(run)
		if err != nil {
			return nil, gokmeans.WrapError("Harness.Run", err)
		}
		s.Root.Run = run
		stats[run] = s
	}
	return stats, nil
}

// Flatten gathers every run's CSV rows in run order.
func Flatten(stats []*RunStats) []CSVRow {
	var rows []CSVRow
	for _, s := range stats {
		rows = append(rows, s.Root.Flatten()...)
	}
	return rows
}
