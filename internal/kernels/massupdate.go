package kernels

import (
	"sync"

	"github.com/lutzcle/gokmeans"
	"github.com/lutzcle/gokmeans/internal/bench"
	"github.com/lutzcle/gokmeans/internal/codec"
	"github.com/lutzcle/gokmeans/internal/device"
)

// MassUpdateConfig fixes the cluster count and accumulation strategy a
// MassUpdate adapter was prepared for.
type MassUpdateConfig struct {
	K        int
	Strategy gokmeans.Strategy // StrategyGlobalAtomic | StrategyMerge
}

// MassUpdate produces a per-cluster histogram of point counts from a
// labels chunk, per spec §4.3. StrategyGlobalAtomic accumulates directly
// into the shared masses vector under a mutex (the in-process analogue of
// one atomic-increment pass); StrategyMerge instead builds a local
// per-chunk histogram and hands it to a Partials collector for a later
// ParallelColumn reduction. Both must produce identical totals.
type MassUpdate[L gokmeans.Unsigned, M gokmeans.Unsigned] struct {
	cfg MassUpdateConfig
}

// NewMassUpdate returns a MassUpdate adapter prepared with cfg.
func NewMassUpdate[L gokmeans.Unsigned, M gokmeans.Unsigned](cfg MassUpdateConfig) *MassUpdate[L, M] {
	k := &MassUpdate[L, M]{}
	k.Prepare(cfg)
	return k
}

// Prepare reconfigures the adapter's cluster count and strategy.
func (k *MassUpdate[L, M]) Prepare(cfg MassUpdateConfig) {
	k.cfg = cfg
}

// Enqueue accumulates one chunk's labels into masses (StrategyGlobalAtomic,
// guarded by mu) or into collector (StrategyMerge, merged later via
// ParallelColumn.Reduce into masses). labelsLen is the chunk's valid byte
// length within labelsBuf, as computed by the scheduler.
func (k *MassUpdate[L, M]) Enqueue(queue device.Queue, wait device.WaitList, labelsBuf device.Buffer, labelsLen int, masses []M, mu *sync.Mutex, collector *Partials[M], dp *bench.DataPoint) *device.Event {
	return queue.Enqueue(wait, func() error {
		labelBytes, err := bytesOf("MassUpdate.Enqueue", labelsBuf, labelsLen)
		if err != nil {
			return err
		}
		labels := codec.Unsigneds[L](labelBytes)

		local := make([]M, k.cfg.K)
		for _, lbl := range labels {
			idx := int(lbl)
			if idx >= 0 && idx < k.cfg.K {
				local[idx]++
			}
		}

		if k.cfg.Strategy == gokmeans.StrategyMerge {
			collector.Add(local)
			return nil
		}

		mu.Lock()
		for i, v := range local {
			masses[i] += v
		}
		mu.Unlock()
		return nil
	})
}
