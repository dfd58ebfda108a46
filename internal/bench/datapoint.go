// Package bench implements the benchmark harness and hierarchical
// measurement tree: running an iteration loop N times, recording
// event-derived timings as a tree of DataPoints, and writing them out as
// CSV rows.
package bench

import (
	"sync"
	"time"

	"github.com/lutzcle/gokmeans/internal/device"
)

// DataPointKind names what kind of device operation a measurement covers,
// mirroring the original implementation's DataPoint::Type enum so CSV rows
// can be grouped by operation, not just an opaque kernel name.
type DataPointKind int

const (
	KindRun DataPointKind = iota
	KindH2DPoints
	KindH2DCentroids
	KindD2HLabels
	KindD2HChanges
	KindFillChanges
	KindFillLabels
	KindLabeling
	KindMassUpdate
	KindCentroidUpdate
	KindFused
	KindParallelColumn
	KindRowMatrixDivide
	KindAggregateSumMass
)

func (k DataPointKind) String() string {
	switch k {
	case KindRun:
		return "run"
	case KindH2DPoints:
		return "h2d_points"
	case KindH2DCentroids:
		return "h2d_centroids"
	case KindD2HLabels:
		return "d2h_labels"
	case KindD2HChanges:
		return "d2h_changes"
	case KindFillChanges:
		return "fill_changes"
	case KindFillLabels:
		return "fill_labels"
	case KindLabeling:
		return "labeling"
	case KindMassUpdate:
		return "mass_update"
	case KindCentroidUpdate:
		return "centroid_update"
	case KindFused:
		return "fused"
	case KindParallelColumn:
		return "parallel_column"
	case KindRowMatrixDivide:
		return "row_matrix_divide"
	case KindAggregateSumMass:
		return "aggregate_sum_mass"
	default:
		return "unknown"
	}
}

// DataPoint is one node of the hierarchical measurement tree: a root per
// run, with child data points added by the iteration controllers as each
// stage's events complete. Adding a child widens the parent's [start, end)
// to the widest span covering it, as spec.md §3 describes.
type DataPoint struct {
	Name      string
	Kind      DataPointKind
	Run       int
	Iteration int
	Params    map[string]string
	StartNS   int64
	EndNS     int64

	mu       sync.Mutex
	children []*DataPoint
}

// NewDataPoint returns a named, empty measurement node.
func NewDataPoint(name string, kind DataPointKind) *DataPoint {
	return &DataPoint{Name: name, Kind: kind, Params: make(map[string]string)}
}

// AddChild appends c under d and widens d's own [StartNS, EndNS) span to
// cover c's, so a parent always bounds every child it contains.
func (d *DataPoint) AddChild(c *DataPoint) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.children = append(d.children, c)
	if d.StartNS == 0 || (c.StartNS != 0 && c.StartNS < d.StartNS) {
		d.StartNS = c.StartNS
	}
	if c.EndNS > d.EndNS {
		d.EndNS = c.EndNS
	}
}

// Children returns the data point's recorded children.
func (d *DataPoint) Children() []*DataPoint {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*DataPoint, len(d.children))
	copy(out, d.children)
	return out
}

// AttachEvent waits for ev and records the wall-clock span around the
// wait as this data point's timing. In-process kernels have no separate
// device clock to query, so the wait's own duration stands in for the
// device timestamp pair a real profiling event would expose.
func (d *DataPoint) AttachEvent(ev *device.Event) error {
	start := time.Now().UnixNano()
	err := ev.Wait()
	d.StartNS = start
	d.EndNS = time.Now().UnixNano()
	return err
}

// Flatten walks the tree rooted at d and returns one CSVRow per node, d
// included, in depth-first order — "one row per data point" per spec.md §6.
func (d *DataPoint) Flatten() []CSVRow {
	row := CSVRow{
		Name:      d.Name,
		Kind:      d.Kind.String(),
		Run:       d.Run,
		Iteration: d.Iteration,
		StartNS:   d.StartNS,
		EndNS:     d.EndNS,
		Params:    d.Params,
	}
	rows := []CSVRow{row}
	for _, c := range d.Children() {
		rows = append(rows, c.Flatten()...)
	}
	return rows
}
