package kernels

import (
	"math"
	"sync/atomic"

	"github.com/lutzcle/gokmeans"
	"github.com/lutzcle/gokmeans/internal/bench"
	"github.com/lutzcle/gokmeans/internal/codec"
	"github.com/lutzcle/gokmeans/internal/device"
)

// FusedConfig fixes the cluster count and feature width a Fused adapter
// was prepared for.
type FusedConfig struct {
	K int
	F int
}

// Fused collapses labeling, mass accumulation, and centroid accumulation
// into a single chunk pass, per spec §4.3 and §4.5: it recomputes labels
// against oldCentroids, then accumulates this chunk's partial centroid
// sums and mass histogram against the freshly recomputed labels into
// sumsCollector/massCollector. The two ParallelColumn reductions and the
// final RowMatrixDivide run afterward, on the controller's main queue.
type Fused[P gokmeans.Float, L gokmeans.Unsigned, M gokmeans.Unsigned] struct {
	cfg FusedConfig
}

// NewFused returns a Fused adapter prepared with cfg.
func NewFused[P gokmeans.Float, L gokmeans.Unsigned, M gokmeans.Unsigned](cfg FusedConfig) *Fused[P, L, M] {
	k := &Fused[P, L, M]{}
	k.Prepare(cfg)
	return k
}

// Prepare reconfigures the adapter's cluster count and feature width.
func (k *Fused[P, L, M]) Prepare(cfg FusedConfig) {
	k.cfg = cfg
}

// Enqueue labels one chunk of pointsBuf against oldCentroids, writes the
// result into labelsBuf, sets changed if any label moved, and contributes
// this chunk's partial centroid sums and mass histogram to the
// collectors. pointsLen/labelsLen are the chunk's valid byte lengths
// within each buffer, as computed by the scheduler.
func (k *Fused[P, L, M]) Enqueue(queue device.Queue, wait device.WaitList, pointsBuf, labelsBuf device.Buffer, pointsLen, labelsLen int, oldCentroids []P, sumsCollector *Partials[P], massCollector *Partials[M], changed *uint32, dp *bench.DataPoint) *device.Event {
	return queue.Enqueue(wait, func() error {
		pointBytes, err := bytesOf("Fused.Enqueue", pointsBuf, pointsLen)
		if err != nil {
			return err
		}
		labelBytes, err := bytesOf("Fused.Enqueue", labelsBuf, labelsLen)
		if err != nil {
			return err
		}
		points := codec.Floats[P](pointBytes)
		labels := codec.Unsigneds[L](labelBytes)

		F, K := k.cfg.F, k.cfg.K
		n := len(points) / F
		if n > len(labels) {
			n = len(labels)
		}

		localSums := make([]P, K*F)
		localMass := make([]M, K)

		for i := 0; i < n; i++ {
			best := 0
			bestDist := math.Inf(1)
			for c := 0; c < K; c++ {
				var dist float64
				for f := 0; f < F; f++ {
					d := float64(points[i*F+f]) - float64(oldCentroids[c*F+f])
					dist += d * d
				}
				if dist < bestDist {
					bestDist = dist
					best = c
				}
			}
			newLabel := L(best)
			if labels[i] != newLabel {
				atomic.StoreUint32(changed, 1)
			}
			labels[i] = newLabel

			localMass[best]++
			for f := 0; f < F; f++ {
				localSums[best*F+f] += points[i*F+f]
			}
		}

		sumsCollector.Add(localSums)
		massCollector.Add(localMass)
		return nil
	})
}
