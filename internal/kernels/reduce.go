package kernels

import (
	"github.com/lutzcle/gokmeans/internal/bench"
	"github.com/lutzcle/gokmeans/internal/device"
)

// ParallelColumn reduces an N×M matrix (N partial rows of width M) along N
// to an M-length vector by summation — spec §4.3's column reduction, used
// to merge mass-update and centroid-update partial accumulators.
type ParallelColumn[T Number] struct{}

// Reduce sums rows column-wise into out, zeroing out first. Rows shorter
// than len(out) contribute zero to the missing columns.
func (ParallelColumn[T]) Reduce(rows [][]T, out []T) {
	for i := range out {
		out[i] = 0
	}
	for _, row := range rows {
		n := len(row)
		if n > len(out) {
			n = len(out)
		}
		for j := 0; j < n; j++ {
			out[j] += row[j]
		}
	}
}

// Enqueue runs Reduce on queue, returning an event so it composes with the
// scheduler's event-dependency chaining like any other kernel adapter.
func (pc ParallelColumn[T]) Enqueue(queue device.Queue, wait device.WaitList, rows [][]T, out []T, dp *bench.DataPoint) *device.Event {
	return queue.Enqueue(wait, func() error {
		pc.Reduce(rows, out)
		return nil
	})
}
