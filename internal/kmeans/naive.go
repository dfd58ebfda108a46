package kmeans

import "github.com/lutzcle/gokmeans"

// Naive is a single-threaded CPU reference implementation used only by
// tests, per spec §8's K-means correctness property: the GPU-style
// pipelines must produce identical label arrays to this naive
// implementation at every iteration count, given identical "first K
// points" initialization. It is scaffolding for assertions, not a third
// execution pipeline offered to library consumers.
//
// Convergence counting: a labeling pass that leaves every label unchanged
// does not advance iterationsUsed. Labels start zero-valued, so the very
// first labeling pass against the initial centroids almost always counts
// (see spec scenario 6); the pass that finally detects no change is the
// terminating check and is not itself counted. This matches the literal
// worked example (4 points, K=2, "first K points" init) converging with
// iterationsUsed=2 even though three labeling passes run to confirm it.
func Naive[P gokmeans.Float, L gokmeans.Unsigned](points []P, numPoints, f, k, maxIterations int) (labels []L, centroids []P, iterationsUsed int) {
	centroids = make([]P, k*f)
	copy(centroids, points[:k*f])
	labels = make([]L, numPoints)

	for iter := 0; iter < maxIterations; iter++ {
		next := make([]L, numPoints)
		changed := false
		for i := 0; i < numPoints; i++ {
			best := 0
			var bestDist float64 = -1
			for c := 0; c < k; c++ {
				var dist float64
				for feat := 0; feat < f; feat++ {
					d := float64(points[i*f+feat]) - float64(centroids[c*f+feat])
					dist += d * d
				}
				if bestDist < 0 || dist < bestDist {
					bestDist = dist
					best = c
				}
			}
			next[i] = L(best)
			if labels[i] != next[i] {
				changed = true
			}
		}
		labels = next
		if !changed {
			break
		}
		iterationsUsed++

		sums := make([]P, k*f)
		masses := make([]int, k)
		for i := 0; i < numPoints; i++ {
			lbl := int(labels[i])
			masses[lbl]++
			for feat := 0; feat < f; feat++ {
				sums[lbl*f+feat] += points[i*f+feat]
			}
		}
		next2 := make([]P, k*f)
		for c := 0; c < k; c++ {
			if masses[c] == 0 {
				copy(next2[c*f:(c+1)*f], centroids[c*f:(c+1)*f])
				continue
			}
			for feat := 0; feat < f; feat++ {
				next2[c*f+feat] = sums[c*f+feat] / P(masses[c])
			}
		}
		centroids = next2
	}

	return labels, centroids, iterationsUsed
}
