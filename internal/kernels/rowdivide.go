package kernels

import (
	"github.com/lutzcle/gokmeans"
	"github.com/lutzcle/gokmeans/internal/bench"
	"github.com/lutzcle/gokmeans/internal/device"
)

// RowMatrixDivideConfig fixes the row count (clusters) and column count
// (features) a RowMatrixDivide adapter was prepared for.
type RowMatrixDivideConfig struct {
	Rows int
	Cols int
}

// RowMatrixDivide divides an Rows×Cols matrix's rows in place by an
// Rows-length vector, per spec §4.3: a zero mass produces a zero row, not
// a division-by-zero fault. Retaining the prior centroid for an empty
// cluster instead of this raw zero is the iteration controller's
// responsibility (spec §9's mandated deviation), not this kernel's.
type RowMatrixDivide[P gokmeans.Float, M gokmeans.Unsigned] struct {
	cfg RowMatrixDivideConfig
}

// NewRowMatrixDivide returns a RowMatrixDivide adapter prepared with cfg.
func NewRowMatrixDivide[P gokmeans.Float, M gokmeans.Unsigned](cfg RowMatrixDivideConfig) *RowMatrixDivide[P, M] {
	k := &RowMatrixDivide[P, M]{}
	k.Prepare(cfg)
	return k
}

// Prepare reconfigures the adapter's row and column counts.
func (k *RowMatrixDivide[P, M]) Prepare(cfg RowMatrixDivideConfig) {
	k.cfg = cfg
}

// Enqueue divides sums by masses row-wise into out (out may alias sums).
func (k *RowMatrixDivide[P, M]) Enqueue(queue device.Queue, wait device.WaitList, sums []P, masses []M, out []P, dp *bench.DataPoint) *device.Event {
	return queue.Enqueue(wait, func() error {
		for row := 0; row < k.cfg.Rows; row++ {
			m := masses[row]
			for f := 0; f < k.cfg.Cols; f++ {
				idx := row*k.cfg.Cols + f
				if m == 0 {
					out[idx] = 0
					continue
				}
				out[idx] = sums[idx] / P(m)
			}
		}
		return nil
	})
}
