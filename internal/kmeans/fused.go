package kmeans

import (
	"sync/atomic"

	"github.com/lutzcle/gokmeans"
	"github.com/lutzcle/gokmeans/internal/bench"
	"github.com/lutzcle/gokmeans/internal/device"
	"github.com/lutzcle/gokmeans/internal/kernels"
	"github.com/lutzcle/gokmeans/internal/scheduler"
)

// FusedLoop drives spec §4.5's iteration: labeling, mass accumulation, and
// centroid accumulation collapse into a single enqueue per chunk, with the
// row-wise divide running once per iteration on the controller's own
// queue after every chunk's partials have landed.
type FusedLoop[P gokmeans.Float, L gokmeans.Unsigned, M gokmeans.Unsigned] struct {
	Scheduler     *scheduler.Scheduler
	DeviceID      int
	PointsOID     int
	LabelsOID     int
	PointElemSize int
	LabelElemSize int

	HostQueue device.Queue

	State *State[P, L, M]

	Fused     *kernels.Fused[P, L, M]
	RowDivide *kernels.RowMatrixDivide[P, M]

	sumsCollector *kernels.Partials[P]
	massCollector *kernels.Partials[M]
}

// NewFusedLoop wires the fused kernel adapter and row-divide step sharing
// state's K/F, ready for Run.
func NewFusedLoop[P gokmeans.Float, L gokmeans.Unsigned, M gokmeans.Unsigned](
	sched *scheduler.Scheduler, deviceID, pointsOID, labelsOID int, hostQueue device.Queue,
	state *State[P, L, M],
) *FusedLoop[P, L, M] {
	return &FusedLoop[P, L, M]{
		Scheduler:     sched,
		DeviceID:      deviceID,
		PointsOID:     pointsOID,
		LabelsOID:     labelsOID,
		PointElemSize: state.F * pointSize[P](),
		LabelElemSize: labelSize[L](),
		HostQueue:     hostQueue,
		State:         state,
		Fused:         kernels.NewFused[P, L, M](kernels.FusedConfig{K: state.K, F: state.F}),
		RowDivide:     kernels.NewRowMatrixDivide[P, M](kernels.RowMatrixDivideConfig{Rows: state.K, Cols: state.F}),
		sumsCollector: kernels.NewPartials[P](),
		massCollector: kernels.NewPartials[M](),
	}
}

// Run executes up to maxIterations iterations with the same convergence
// counting as ThreeStageLoop.Run: a relabeling pass that changes nothing
// terminates the run without incrementing the reported iteration count.
func (l *FusedLoop[P, L, M]) Run(maxIterations int) (int, *bench.DataPoint, error) {
	root := bench.NewDataPoint("fused_run", bench.KindRun)
	iterationsUsed := 0

	for iter := 0; iter < maxIterations; iter++ {
		l.State.ResetMasses()
		l.State.ZeroNewCentroids()
		l.sumsCollector.Reset()
		l.massCollector.Reset()

		var changed uint32
		fusedDP := bench.NewDataPoint("fused", bench.KindFused)
		fusedDP.Iteration = iter
		future, err := l.Scheduler.EnqueueBinary(l.DeviceID, l.PointsOID, l.PointElemSize, l.LabelsOID, l.LabelElemSize,
			func(q device.Queue, wait device.WaitList, offA, lenA int, bufA device.Buffer, offB, lenB int, bufB device.Buffer) *device.Event {
				return l.Fused.Enqueue(q, wait, bufA, bufB, lenA, lenB, l.State.OldCentroids, l.sumsCollector, l.massCollector, &changed, fusedDP)
			})
		if err != nil {
			return iterationsUsed, root, err
		}
		if err := attachFuture(fusedDP, future); err != nil {
			return iterationsUsed, root, err
		}
		root.AddChild(fusedDP)

		if atomic.LoadUint32(&changed) == 0 {
			break
		}
		iterationsUsed++

		sumsDP := bench.NewDataPoint("centroid_reduce", bench.KindParallelColumn)
		sumsDP.Iteration = iter
		ev := (kernels.ParallelColumn[P]{}).Enqueue(l.HostQueue, nil, l.sumsCollector.Rows(), l.State.NewCentroids, sumsDP)
		if err := sumsDP.AttachEvent(ev); err != nil {
			return iterationsUsed, root, err
		}
		root.AddChild(sumsDP)

		massDP := bench.NewDataPoint("mass_reduce", bench.KindParallelColumn)
		massDP.Iteration = iter
		ev = (kernels.ParallelColumn[M]{}).Enqueue(l.HostQueue, nil, l.massCollector.Rows(), l.State.Masses, massDP)
		if err := massDP.AttachEvent(ev); err != nil {
			return iterationsUsed, root, err
		}
		root.AddChild(massDP)

		divideDP := bench.NewDataPoint("row_matrix_divide", bench.KindRowMatrixDivide)
		divideDP.Iteration = iter
		ev = l.RowDivide.Enqueue(l.HostQueue, nil, l.State.NewCentroids, l.State.Masses, l.State.NewCentroids, divideDP)
		if err := divideDP.AttachEvent(ev); err != nil {
			return iterationsUsed, root, err
		}
		root.AddChild(divideDP)

		l.State.RetainEmptyClusters()
		l.State.Swap()

		if err := l.Scheduler.EnqueueBarrier(); err != nil {
			return iterationsUsed, root, err
		}
	}

	return iterationsUsed, root, nil
}
