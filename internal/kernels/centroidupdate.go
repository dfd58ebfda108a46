package kernels

import (
	"sync"

	"github.com/lutzcle/gokmeans"
	"github.com/lutzcle/gokmeans/internal/bench"
	"github.com/lutzcle/gokmeans/internal/codec"
	"github.com/lutzcle/gokmeans/internal/device"
)

// CentroidUpdateConfig fixes the cluster count, feature width, and
// accumulation strategy a CentroidUpdate adapter was prepared for.
type CentroidUpdateConfig struct {
	K        int
	F        int
	Strategy gokmeans.Strategy // StrategyFeatureSum | StrategyMergeSum
}

// CentroidUpdate accumulates per-cluster feature sums from a (points,
// labels) chunk pair, per spec §4.3. StrategyFeatureSum accumulates
// directly into the shared sums vector under a mutex; StrategyMergeSum
// hands a local per-chunk partial to a Partials collector for a later
// ParallelColumn reduction. The row-wise divide by mass is a separate
// RowMatrixDivide step, not performed here.
type CentroidUpdate[P gokmeans.Float, L gokmeans.Unsigned] struct {
	cfg CentroidUpdateConfig
}

// NewCentroidUpdate returns a CentroidUpdate adapter prepared with cfg.
func NewCentroidUpdate[P gokmeans.Float, L gokmeans.Unsigned](cfg CentroidUpdateConfig) *CentroidUpdate[P, L] {
	k := &CentroidUpdate[P, L]{}
	k.Prepare(cfg)
	return k
}

// Prepare reconfigures the adapter's cluster count, feature width, and
// strategy.
func (k *CentroidUpdate[P, L]) Prepare(cfg CentroidUpdateConfig) {
	k.cfg = cfg
}

// Enqueue accumulates one (points, labels) chunk pair into sums
// (StrategyFeatureSum, guarded by mu) or into collector (StrategyMergeSum,
// merged later via ParallelColumn.Reduce into sums). pointsLen/labelsLen
// are the chunk's valid byte lengths within each buffer, as computed by
// the scheduler. sums and any local partial are K*F-long, row-major by
// cluster.
func (k *CentroidUpdate[P, L]) Enqueue(queue device.Queue, wait device.WaitList, pointsBuf, labelsBuf device.Buffer, pointsLen, labelsLen int, sums []P, mu *sync.Mutex, collector *Partials[P], dp *bench.DataPoint) *device.Event {
	return queue.Enqueue(wait, func() error {
		pointBytes, err := bytesOf("CentroidUpdate.Enqueue", pointsBuf, pointsLen)
		if err != nil {
			return err
		}
		labelBytes, err := bytesOf("CentroidUpdate.Enqueue", labelsBuf, labelsLen)
		if err != nil {
			return err
		}
		points := codec.Floats[P](pointBytes)
		labels := codec.Unsigneds[L](labelBytes)

		F := k.cfg.F
		n := len(points) / F
		if n > len(labels) {
			n = len(labels)
		}

		local := make([]P, k.cfg.K*F)
		for i := 0; i < n; i++ {
			lbl := int(labels[i])
			if lbl < 0 || lbl >= k.cfg.K {
				continue
			}
			for f := 0; f < F; f++ {
				local[lbl*F+f] += points[i*F+f]
			}
		}

		if k.cfg.Strategy == gokmeans.StrategyMergeSum {
			collector.Add(local)
			return nil
		}

		mu.Lock()
		for i, v := range local {
			sums[i] += v
		}
		mu.Unlock()
		return nil
	})
}
