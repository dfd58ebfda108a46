// Package kernels implements the kernel adapters of spec §4.3: thin
// wrappers each exposing Prepare(config) and an Enqueue call operator that
// returns a device.Event, composed by value rather than through
// inheritance, per the re-architecture hint in spec §9.
//
// The reference system treats the numerical kernels as external compute
// units supplied by an OpenCL runtime and explicitly out of scope. This
// module's only concrete Device is device.Software, an in-process stand-in
// for that runtime with no external kernel source to call into — so the
// adapters here perform the actual math directly against the chunk bytes a
// device.Software buffer holds, via internal/codec's typed views. This is
// the one place the numerical kernel contracts (labeling, mass update,
// centroid update, fused, reductions, row-divide) are not a stub: without
// it, spec §8's K-means correctness property (identical labels vs. a naive
// CPU reference) and the six literal end-to-end scenarios would have
// nothing to assert against.
package kernels

import (
	"sync"

	"github.com/lutzcle/gokmeans"
	"github.com/lutzcle/gokmeans/internal/device"
)

// bytesOf extracts the valid [0, byteLength) prefix of a device.Software
// buffer's raw backing bytes, or a DeviceFailure if buf is not a kind this
// in-process engine can introspect. byteLength is the scheduler's actual
// chunk length, not the buffer's full allocated capacity (internal/cache
// allocates every slot at the device's fixed bufferSize, so a chunk's real
// data is almost always a prefix of a larger backing array) — reading past
// it would pull in leftover bytes from a previous occupant or a zeroed
// tail as phantom points.
func bytesOf(op string, buf device.Buffer, byteLength int) ([]byte, error) {
	mb, ok := buf.(*device.MemBuffer)
	if !ok {
		return nil, gokmeans.NewError(op, gokmeans.DeviceFailure, "buffer does not expose raw bytes")
	}
	raw := mb.Bytes()
	if byteLength < 0 || byteLength > len(raw) {
		return nil, gokmeans.NewError(op, gokmeans.DeviceFailure, "requested byte length exceeds buffer capacity")
	}
	return raw[:byteLength], nil
}

// Number is the constraint satisfied by any element type a reduction or
// accumulator kernel can run over: point/centroid coordinates or label/mass
// counts.
type Number interface {
	gokmeans.Float | gokmeans.Unsigned
}

// Partials collects one local accumulator row per dispatched chunk, for the
// "merge" family of strategies (mass-update merge, centroid-update
// merge-sum, fused): each chunk contributes a local histogram or partial
// sum row without contending for a single shared accumulator, and
// ParallelColumn later reduces every row into the final vector.
type Partials[T Number] struct {
	mu   sync.Mutex
	rows [][]T
}

// NewPartials returns an empty partial-row collector.
func NewPartials[T Number]() *Partials[T] {
	return &Partials[T]{}
}

// Add appends row, copying it so the caller's chunk-local slice may be
// reused or discarded afterward.
func (p *Partials[T]) Add(row []T) {
	cp := make([]T, len(row))
	copy(cp, row)
	p.mu.Lock()
	p.rows = append(p.rows, cp)
	p.mu.Unlock()
}

// Rows returns every collected partial row.
func (p *Partials[T]) Rows() [][]T {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]T, len(p.rows))
	copy(out, p.rows)
	return out
}

// Reset clears every collected row, for reuse across iterations.
func (p *Partials[T]) Reset() {
	p.mu.Lock()
	p.rows = nil
	p.mu.Unlock()
}
