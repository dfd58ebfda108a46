// Package kmeans implements the iteration controllers of spec §4.4–4.5:
// ThreeStageLoop and FusedLoop, each owning device-resident centroid and
// mass vectors and driving the kernel adapters in internal/kernels over
// objects staged through internal/cache and internal/scheduler.
package kmeans

import "github.com/lutzcle/gokmeans"

// State holds the centroid and mass vectors an iteration controller owns
// for the lifetime of one run, per spec §3: two centroid vectors (old,
// new) sized K·F, and one mass vector sized K.
type State[P gokmeans.Float, L gokmeans.Unsigned, M gokmeans.Unsigned] struct {
	K, F int

	OldCentroids []P
	NewCentroids []P
	Masses       []M
}

// NewState returns a State seeded with initialCentroids (copied, never
// aliased) as the starting old-centroid vector.
func NewState[P gokmeans.Float, L gokmeans.Unsigned, M gokmeans.Unsigned](k, f int, initialCentroids []P) *State[P, L, M] {
	old := make([]P, k*f)
	copy(old, initialCentroids)
	return &State[P, L, M]{
		K:            k,
		F:            f,
		OldCentroids: old,
		NewCentroids: make([]P, k*f),
		Masses:       make([]M, k),
	}
}

// Swap exchanges the old and new centroid vectors at the end of an
// iteration, per spec §4.4 step 4.
func (s *State[P, L, M]) Swap() {
	s.OldCentroids, s.NewCentroids = s.NewCentroids, s.OldCentroids
}

// ResetMasses zeroes the mass vector; spec §4.4 step 2 requires masses be
// zeroed at the start of every iteration.
func (s *State[P, L, M]) ResetMasses() {
	for i := range s.Masses {
		s.Masses[i] = 0
	}
}

// ZeroNewCentroids zeroes the new-centroid accumulator before a
// three-stage iteration's centroid update accumulates into it.
func (s *State[P, L, M]) ZeroNewCentroids() {
	for i := range s.NewCentroids {
		s.NewCentroids[i] = 0
	}
}

// RetainEmptyClusters overwrites any cluster row in NewCentroids whose
// mass is zero with its prior value from OldCentroids. This is the
// mandated deviation from spec §9: the reference divides by zero and
// collapses the cluster, but the spec requires retaining the old centroid
// to keep test outputs deterministic.
func (s *State[P, L, M]) RetainEmptyClusters() {
	for c := 0; c < s.K; c++ {
		if s.Masses[c] != 0 {
			continue
		}
		copy(s.NewCentroids[c*s.F:(c+1)*s.F], s.OldCentroids[c*s.F:(c+1)*s.F])
	}
}
