package kmeans

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lutzcle/gokmeans"
)

func TestFusedLoopMatchesLiteralScenarioOneAndSix(t *testing.T) {
	points := scenarioOnePoints()
	sched, _, dev, did, pointsOID, labelsOID := newTestRig(t, points, 4, 2, 2)

	initial := make([]float32, 4)
	copy(initial, points[:4])
	state := NewState[float32, uint32, uint32](2, 2, initial)

	loop := NewFusedLoop[float32, uint32, uint32](sched, did, pointsOID, labelsOID, dev.NewQueue(), state)

	iterationsUsed, root, err := loop.Run(100)
	require.NoError(t, err)
	require.Equal(t, 2, iterationsUsed)
	require.NotEmpty(t, root.Children())
	require.InDeltaSlice(t, []float32{0, 0.5, 10, 10.5}, state.OldCentroids, 1e-6)
}

func TestFusedLoopMaxIterationsZeroLeavesStateUntouched(t *testing.T) {
	points := scenarioOnePoints()
	sched, _, dev, did, pointsOID, labelsOID := newTestRig(t, points, 4, 2, 2)

	initial := make([]float32, 4)
	copy(initial, points[:4])
	state := NewState[float32, uint32, uint32](2, 2, initial)

	loop := NewFusedLoop[float32, uint32, uint32](sched, did, pointsOID, labelsOID, dev.NewQueue(), state)

	iterationsUsed, _, err := loop.Run(0)
	require.NoError(t, err)
	require.Equal(t, 0, iterationsUsed)
	require.Equal(t, []float32{0, 0, 0, 1}, state.OldCentroids)
}

func TestFusedLoopAgreesWithThreeStageLoop(t *testing.T) {
	points := scenarioOnePoints()

	sched1, _, dev1, did1, pointsOID1, labelsOID1 := newTestRig(t, points, 4, 2, 2)
	initial1 := make([]float32, 4)
	copy(initial1, points[:4])
	state1 := NewState[float32, uint32, uint32](2, 2, initial1)
	threeStage := NewThreeStageLoop[float32, uint32, uint32](
		sched1, did1, pointsOID1, labelsOID1, dev1.NewQueue(),
		state1, gokmeans.StrategyGlobalAtomic, gokmeans.StrategyFeatureSum,
	)
	threeIterations, _, err := threeStage.Run(100)
	require.NoError(t, err)

	sched2, _, dev2, did2, pointsOID2, labelsOID2 := newTestRig(t, points, 4, 2, 2)
	initial2 := make([]float32, 4)
	copy(initial2, points[:4])
	state2 := NewState[float32, uint32, uint32](2, 2, initial2)
	fused := NewFusedLoop[float32, uint32, uint32](sched2, did2, pointsOID2, labelsOID2, dev2.NewQueue(), state2)
	fusedIterations, _, err := fused.Run(100)
	require.NoError(t, err)

	require.Equal(t, threeIterations, fusedIterations)
	require.InDeltaSlice(t, state1.OldCentroids, state2.OldCentroids, 1e-6)
}
