package kernels

import (
	"math"
	"sync/atomic"

	"github.com/lutzcle/gokmeans"
	"github.com/lutzcle/gokmeans/internal/bench"
	"github.com/lutzcle/gokmeans/internal/codec"
	"github.com/lutzcle/gokmeans/internal/device"
)

// LabelingConfig fixes the cluster count and feature width a Labeling
// adapter was prepared for.
type LabelingConfig struct {
	K int
	F int
}

// Labeling assigns each point in a chunk to its nearest centroid by
// squared Euclidean distance, breaking ties toward the lowest centroid
// index, per spec §4.3.
type Labeling[P gokmeans.Float, L gokmeans.Unsigned] struct {
	cfg LabelingConfig
}

// NewLabeling returns a Labeling adapter prepared with cfg.
func NewLabeling[P gokmeans.Float, L gokmeans.Unsigned](cfg LabelingConfig) *Labeling[P, L] {
	k := &Labeling[P, L]{}
	k.Prepare(cfg)
	return k
}

// Prepare reconfigures the adapter's cluster count and feature width.
func (k *Labeling[P, L]) Prepare(cfg LabelingConfig) {
	k.cfg = cfg
}

// Enqueue labels one chunk of pointsBuf against centroids (a K*F vector),
// writing into the matching region of labelsBuf. pointsLen/labelsLen are
// the chunk's valid byte lengths within each buffer, as computed by the
// scheduler. changed is set to 1 (via an atomic store) if any label in
// this chunk differs from its prior value, feeding the controller's
// did-changes convergence poll.
func (k *Labeling[P, L]) Enqueue(queue device.Queue, wait device.WaitList, pointsBuf, labelsBuf device.Buffer, pointsLen, labelsLen int, centroids []P, changed *uint32, dp *bench.DataPoint) *device.Event {
	return queue.Enqueue(wait, func() error {
		pointBytes, err := bytesOf("Labeling.Enqueue", pointsBuf, pointsLen)
		if err != nil {
			return err
		}
		labelBytes, err := bytesOf("Labeling.Enqueue", labelsBuf, labelsLen)
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

		for i := 0; i < n; i++ {
			best := 0
			bestDist := math.Inf(1)
			for c := 0; c < k.cfg.K; c++ {
				var dist float64
				for f := 0; f < F; f++ {
					d := float64(points[i*F+f]) - float64(centroids[c*F+f])
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
		}
		return nil
	})
}
