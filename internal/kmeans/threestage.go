package kmeans

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/lutzcle/gokmeans"
	"github.com/lutzcle/gokmeans/internal/bench"
	"github.com/lutzcle/gokmeans/internal/device"
	"github.com/lutzcle/gokmeans/internal/kernels"
	"github.com/lutzcle/gokmeans/internal/scheduler"
)

// ThreeStageLoop drives spec §4.4's iteration: labeling, mass update, and
// centroid update as three separate enqueues per iteration, sharing one
// Scheduler and one points/labels object pair across the whole run.
type ThreeStageLoop[P gokmeans.Float, L gokmeans.Unsigned, M gokmeans.Unsigned] struct {
	Scheduler     *scheduler.Scheduler
	DeviceID      int
	PointsOID     int
	LabelsOID     int
	PointElemSize int // F * sizeof(P)
	LabelElemSize int // sizeof(L)

	// HostQueue runs the reduce/divide steps that operate directly on
	// controller-owned slices rather than cache-resident chunks; any
	// device's queue works since these closures never touch a Buffer.
	HostQueue device.Queue

	State *State[P, L, M]

	Labeling       *kernels.Labeling[P, L]
	MassUpdate     *kernels.MassUpdate[L, M]
	CentroidUpdate *kernels.CentroidUpdate[P, L]
	RowDivide      *kernels.RowMatrixDivide[P, M]

	MassStrategy     gokmeans.Strategy
	CentroidStrategy gokmeans.Strategy

	mu                sync.Mutex
	massCollector     *kernels.Partials[M]
	centroidCollector *kernels.Partials[P]
}

// NewThreeStageLoop wires the four kernel adapters per the shared K/F,
// strategies, and state, ready for Run.
func NewThreeStageLoop[P gokmeans.Float, L gokmeans.Unsigned, M gokmeans.Unsigned](
	sched *scheduler.Scheduler, deviceID, pointsOID, labelsOID int, hostQueue device.Queue,
	state *State[P, L, M], massStrategy, centroidStrategy gokmeans.Strategy,
) *ThreeStageLoop[P, L, M] {
	return &ThreeStageLoop[P, L, M]{
		Scheduler:        sched,
		DeviceID:         deviceID,
		PointsOID:        pointsOID,
		LabelsOID:        labelsOID,
		PointElemSize:    state.F * pointSize[P](),
		LabelElemSize:    labelSize[L](),
		HostQueue:        hostQueue,
		State:            state,
		Labeling:         kernels.NewLabeling[P, L](kernels.LabelingConfig{K: state.K, F: state.F}),
		MassUpdate:       kernels.NewMassUpdate[L, M](kernels.MassUpdateConfig{K: state.K, Strategy: massStrategy}),
		CentroidUpdate:   kernels.NewCentroidUpdate[P, L](kernels.CentroidUpdateConfig{K: state.K, F: state.F, Strategy: centroidStrategy}),
		RowDivide:        kernels.NewRowMatrixDivide[P, M](kernels.RowMatrixDivideConfig{Rows: state.K, Cols: state.F}),
		MassStrategy:     massStrategy,
		CentroidStrategy: centroidStrategy,
		massCollector:    kernels.NewPartials[M](),
		centroidCollector: kernels.NewPartials[P](),
	}
}

func pointSize[P gokmeans.Float]() int {
	var p P
	return sizeofFloat(p)
}

func labelSize[L gokmeans.Unsigned]() int {
	var l L
	return sizeofUnsigned(l)
}

func sizeofFloat(v any) int {
	switch v.(type) {
	case float32:
		return 4
	default:
		return 8
	}
}

func sizeofUnsigned(v any) int {
	switch v.(type) {
	case uint32:
		return 4
	default:
		return 8
	}
}

// attachFuture waits for future, recording the wall-clock span as dp's
// timing — the same stand-in AttachEvent uses for a single event, widened
// to cover every chunk event an Enqueue/EnqueueBinary call produced.
func attachFuture(dp *bench.DataPoint, future *scheduler.Future) error {
	start := time.Now().UnixNano()
	err := device.WaitList(future.Events()).Wait()
	dp.StartNS = start
	dp.EndNS = time.Now().UnixNano()
	return err
}

// Run executes up to maxIterations iterations, stopping early once a
// labeling pass leaves every label unchanged (spec §4.4 step 5). That
// terminating, no-change pass is not itself counted — see Naive's doc
// comment for why this matches the worked convergence example.
func (l *ThreeStageLoop[P, L, M]) Run(maxIterations int) (int, *bench.DataPoint, error) {
	root := bench.NewDataPoint("three_stage_run", bench.KindRun)
	iterationsUsed := 0

	for iter := 0; iter < maxIterations; iter++ {
		var changed uint32

		labelDP := bench.NewDataPoint("labeling", bench.KindLabeling)
		labelDP.Iteration = iter
		labelFuture, err := l.Scheduler.EnqueueBinary(l.DeviceID, l.PointsOID, l.PointElemSize, l.LabelsOID, l.LabelElemSize,
			func(q device.Queue, wait device.WaitList, offA, lenA int, bufA device.Buffer, offB, lenB int, bufB device.Buffer) *device.Event {
				return l.Labeling.Enqueue(q, wait, bufA, bufB, lenA, lenB, l.State.OldCentroids, &changed, labelDP)
			})
		if err != nil {
			return iterationsUsed, root, err
		}
		if err := attachFuture(labelDP, labelFuture); err != nil {
			return iterationsUsed, root, err
		}
		root.AddChild(labelDP)

		if atomic.LoadUint32(&changed) == 0 {
			break
		}
		iterationsUsed++

		l.State.ResetMasses()
		l.State.ZeroNewCentroids()
		l.massCollector.Reset()
		l.centroidCollector.Reset()

		massDP := bench.NewDataPoint("mass_update", bench.KindMassUpdate)
		massDP.Iteration = iter
		massFuture, err := l.Scheduler.Enqueue(l.DeviceID, l.LabelsOID, l.LabelElemSize,
			func(q device.Queue, wait device.WaitList, offset, byteLength int, buf device.Buffer) *device.Event {
				return l.MassUpdate.Enqueue(q, wait, buf, byteLength, l.State.Masses, &l.mu, l.massCollector, massDP)
			})
		if err != nil {
			return iterationsUsed, root, err
		}
		if err := attachFuture(massDP, massFuture); err != nil {
			return iterationsUsed, root, err
		}
		root.AddChild(massDP)

		if l.MassStrategy == gokmeans.StrategyMerge {
			reduceDP := bench.NewDataPoint("mass_reduce", bench.KindParallelColumn)
			reduceDP.Iteration = iter
			ev := (kernels.ParallelColumn[M]{}).Enqueue(l.deviceQueue(), nil, l.massCollector.Rows(), l.State.Masses, reduceDP)
			if err := reduceDP.AttachEvent(ev); err != nil {
				return iterationsUsed, root, err
			}
			root.AddChild(reduceDP)
		}

		centroidDP := bench.NewDataPoint("centroid_update", bench.KindCentroidUpdate)
		centroidDP.Iteration = iter
		centroidFuture, err := l.Scheduler.EnqueueBinary(l.DeviceID, l.PointsOID, l.PointElemSize, l.LabelsOID, l.LabelElemSize,
			func(q device.Queue, wait device.WaitList, offA, lenA int, bufA device.Buffer, offB, lenB int, bufB device.Buffer) *device.Event {
				return l.CentroidUpdate.Enqueue(q, wait, bufA, bufB, lenA, lenB, l.State.NewCentroids, &l.mu, l.centroidCollector, centroidDP)
			})
		if err != nil {
			return iterationsUsed, root, err
		}
		if err := attachFuture(centroidDP, centroidFuture); err != nil {
			return iterationsUsed, root, err
		}
		root.AddChild(centroidDP)

		if l.CentroidStrategy == gokmeans.StrategyMergeSum {
			reduceDP := bench.NewDataPoint("centroid_reduce", bench.KindParallelColumn)
			reduceDP.Iteration = iter
			ev := (kernels.ParallelColumn[P]{}).Enqueue(l.deviceQueue(), nil, l.centroidCollector.Rows(), l.State.NewCentroids, reduceDP)
			if err := reduceDP.AttachEvent(ev); err != nil {
				return iterationsUsed, root, err
			}
			root.AddChild(reduceDP)
		}

		divideDP := bench.NewDataPoint("row_matrix_divide", bench.KindRowMatrixDivide)
		divideDP.Iteration = iter
		ev := l.RowDivide.Enqueue(l.deviceQueue(), nil, l.State.NewCentroids, l.State.Masses, l.State.NewCentroids, divideDP)
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

// deviceQueue returns the queue used for reduction/divide steps that don't
// go through the scheduler's cached-object path.
func (l *ThreeStageLoop[P, L, M]) deviceQueue() device.Queue {
	return l.HostQueue
}
