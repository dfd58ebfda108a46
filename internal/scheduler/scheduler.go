// Package scheduler implements the single-device scheduler: it enqueues
// kernel-like work items over cached buffer ranges, splitting a logical
// object into buffer-sized chunks. A slot's previous occupant is drained
// before the slot is acquired again, and every work item's wait list also
// holds every event dispatched since the last barrier, so work items run
// one after another in enqueue order; disjoint chunks do not overlap. A
// barrier is a true synchronization point.
package scheduler

import (
	"github.com/lutzcle/gokmeans"
	"github.com/lutzcle/gokmeans/internal/cache"
	"github.com/lutzcle/gokmeans/internal/device"
	"github.com/lutzcle/gokmeans/internal/logging"
)

// UnaryWork is the closure shape for a single-object enqueue: it receives
// the chunk's byte offset/length within the object, the resident device
// buffer, and a wait list of upstream dependencies, and must return the
// event signalling the work's completion.
type UnaryWork func(q device.Queue, wait device.WaitList, offset, byteLength int, buf device.Buffer) *device.Event

// BinaryWork is the closure shape for a paired two-object enqueue (e.g.
// points and labels), receiving both chunks' offsets/lengths/buffers.
type BinaryWork func(q device.Queue, wait device.WaitList, offA, lenA int, bufA device.Buffer, offB, lenB int, bufB device.Buffer) *device.Event

// Future resolves to every kernel event produced by one Enqueue call.
type Future struct {
	events []*device.Event
}

// Events returns the events produced by the enqueue that yielded this future.
func (f *Future) Events() []*device.Event {
	return f.events
}

// Wait blocks until every event in the future has completed.
func (f *Future) Wait() error {
	return device.WaitList(f.events).Wait()
}

// occupant tracks a slot's most recently dispatched, not-yet-unlocked
// tenancy so the scheduler can apply backpressure before reusing the slot.
type occupant struct {
	bid   int
	event *device.Event
}

// occupantKey identifies one (object, slot) pair on a device: the cache
// scopes slot tables per (device, object), so the scheduler's occupant
// bookkeeping mirrors that scoping.
type occupantKey struct {
	oid, slotIdx int
}

type deviceState struct {
	deviceID int
	queue    device.Queue
	occupied map[occupantKey]*occupant
}

// Scheduler orchestrates work items against a single Cache across one or
// more registered devices, on a single cooperative orchestration thread:
// the only blocking points are slot-reuse backpressure, explicit barriers,
// and future/run waits — never a GPU-side callback thread.
type Scheduler struct {
	cache   *cache.Cache
	logger  *logging.Logger
	devices map[int]*deviceState

	// group accumulates the events dispatched since the last barrier;
	// every new work item's wait list includes all of them. EnqueueBarrier
	// (and Run) clear it after draining every outstanding occupant.
	group []*device.Event
}

// New returns a Scheduler bound to c.
func New(c *cache.Cache, logger *logging.Logger) *Scheduler {
	return &Scheduler{cache: c, logger: logger, devices: make(map[int]*deviceState)}
}

// AddDevice registers a device the scheduler may enqueue work against. The
// device must already be known to the attached cache.
func (s *Scheduler) AddDevice(deviceID int, q device.Queue) {
	s.devices[deviceID] = &deviceState{deviceID: deviceID, queue: q, occupied: make(map[occupantKey]*occupant)}
}

// chunkElems returns how many elemSize-wide rows fit in one buffer-sized
// chunk, given the cache's configured buffer size.
func chunkElems(bufferSize, elemSize int) int {
	n := bufferSize / elemSize
	if n < 1 {
		n = 1
	}
	return n
}

// drainOccupant waits for a slot's previous tenant to finish and unlocks
// it, if one is outstanding. This is the explicit, well-defined sync point
// that replaces a callback-thread-driven unlock: the orchestrator blocks
// here instead of racing Cache.Get against an async unlock.
func (s *Scheduler) drainOccupant(ds *deviceState, oid, slotIdx int) error {
	key := occupantKey{oid: oid, slotIdx: slotIdx}
	occ, ok := ds.occupied[key]
	if !ok {
		return nil
	}
	if err := occ.event.Wait(); err != nil {
		return gokmeans.WrapError("Scheduler.drainOccupant", err)
	}
	if err := s.cache.Unlock(ds.deviceID, oid, occ.bid*s.cache.BufferSize()); err != nil {
		return err
	}
	delete(ds.occupied, key)
	return nil
}

// getChunk drains any conflicting occupant for (oid, bid)'s slot and calls
// Cache.Get, returning the resident buffer, its size, and the get event.
func (s *Scheduler) getChunk(ds *deviceState, oid, offset, length int) (device.Buffer, int, *device.Event, error) {
	bid := offset / s.cache.BufferSize()
	slotIdx := cache.SlotIndex(bid)
	if err := s.drainOccupant(ds, oid, slotIdx); err != nil {
		return nil, 0, nil, err
	}
	buf, size, ev, err := s.cache.Get(ds.queue, ds.deviceID, oid, offset, offset+length)
	if err != nil {
		return nil, 0, nil, err
	}
	return buf, size, ev, nil
}

// recordOccupant notes that ev is now the outstanding occupant of oid's
// slot for bid, and folds ev into the current barrier group.
func (s *Scheduler) recordOccupant(ds *deviceState, oid, bid int, ev *device.Event) {
	key := occupantKey{oid: oid, slotIdx: cache.SlotIndex(bid)}
	ds.occupied[key] = &occupant{bid: bid, event: ev}
	s.group = append(s.group, ev)
}

// Enqueue issues one work item per BufferSize-aligned chunk of object oid,
// where elemSize is the byte size of one logical row (e.g. F*sizeof(PointT)
// for points, sizeof(LabelT) for labels).
func (s *Scheduler) Enqueue(deviceID, oid, elemSize int, work UnaryWork) (*Future, error) {
	ds, ok := s.devices[deviceID]
	if !ok {
		return nil, gokmeans.NewError("Scheduler.Enqueue", gokmeans.InvalidArgument, "unknown device")
	}
	objLen, err := s.cache.ObjectLen(oid)
	if err != nil {
		return nil, err
	}

	bufferSize := s.cache.BufferSize()
	chunkBytes := chunkElems(bufferSize, elemSize) * elemSize
	future := &Future{}

	for offset := 0; offset < objLen; offset += chunkBytes {
		length := chunkBytes
		if offset+length > objLen {
			length = objLen - offset
		}

		buf, size, getEv, err := s.getChunk(ds, oid, offset, length)
		if err != nil {
			return nil, err
		}
		wait := append(device.WaitList{getEv}, s.group...)
		ev := work(ds.queue, wait, offset, length, buf)
		s.recordOccupant(ds, oid, offset/bufferSize, ev)

		s.logger.Debug("dispatched chunk", "device", deviceID, "object", oid, "bytes", size)
		future.events = append(future.events, ev)
	}
	return future, nil
}

// EnqueueBinary issues paired chunks of two objects (e.g. points and
// labels), sized so that chunkPoints elements of each stay index-aligned:
// chunkPoints = min(BufferSize/elemSizeA, BufferSize/elemSizeB).
func (s *Scheduler) EnqueueBinary(deviceID, oidA, elemSizeA, oidB, elemSizeB int, work BinaryWork) (*Future, error) {
	ds, ok := s.devices[deviceID]
	if !ok {
		return nil, gokmeans.NewError("Scheduler.EnqueueBinary", gokmeans.InvalidArgument, "unknown device")
	}
	lenA, err := s.cache.ObjectLen(oidA)
	if err != nil {
		return nil, err
	}
	lenB, err := s.cache.ObjectLen(oidB)
	if err != nil {
		return nil, err
	}

	bufferSize := s.cache.BufferSize()
	elems := chunkElems(bufferSize, elemSizeA)
	if b := chunkElems(bufferSize, elemSizeB); b < elems {
		elems = b
	}
	numElems := lenA / elemSizeA
	if alt := lenB / elemSizeB; alt < numElems {
		numElems = alt
	}

	future := &Future{}
	for start := 0; start < numElems; start += elems {
		n := elems
		if start+n > numElems {
			n = numElems - start
		}
		offA, chunkLenA := start*elemSizeA, n*elemSizeA
		offB, chunkLenB := start*elemSizeB, n*elemSizeB

		bufA, _, getEvA, err := s.getChunk(ds, oidA, offA, chunkLenA)
		if err != nil {
			return nil, err
		}
		bufB, _, getEvB, err := s.getChunk(ds, oidB, offB, chunkLenB)
		if err != nil {
			return nil, err
		}

		wait := append(device.WaitList{getEvA, getEvB}, s.group...)
		ev := work(ds.queue, wait, offA, chunkLenA, bufA, offB, chunkLenB, bufB)
		s.recordOccupant(ds, oidA, offA/bufferSize, ev)
		s.recordOccupant(ds, oidB, offB/bufferSize, ev)

		s.logger.Debug("dispatched binary chunk", "device", deviceID, "objectA", oidA, "objectB", oidB, "elems", n)
		future.events = append(future.events, ev)
	}
	return future, nil
}

// EnqueueBarrier waits for every outstanding event dispatched since the
// last barrier, unlocking their slots, and starts a fresh group: every
// item enqueued after this call observes every event enqueued before it.
func (s *Scheduler) EnqueueBarrier() error {
	bufferSize := s.cache.BufferSize()
	for _, ds := range s.devices {
		for key, occ := range ds.occupied {
			if err := occ.event.Wait(); err != nil {
				return gokmeans.WrapError("Scheduler.EnqueueBarrier", err)
			}
			if err := s.cache.Unlock(ds.deviceID, key.oid, occ.bid*bufferSize); err != nil {
				return err
			}
			delete(ds.occupied, key)
		}
	}
	s.group = nil
	return nil
}

// Run drains all outstanding work, equivalent to a final barrier. A run is
// expected to complete; cancellation is not supported.
func (s *Scheduler) Run() error {
	return s.EnqueueBarrier()
}
