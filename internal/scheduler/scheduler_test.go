package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lutzcle/gokmeans"
	"github.com/lutzcle/gokmeans/internal/cache"
	"github.com/lutzcle/gokmeans/internal/constants"
	"github.com/lutzcle/gokmeans/internal/device"
)

// timeAfter gives the backpressure test a short window to confirm Enqueue
// has not returned early, without hardcoding the delay inline everywhere.
func timeAfter() <-chan time.Time {
	return time.After(20 * time.Millisecond)
}

func newTestScheduler(t *testing.T, bufferSize int) (*Scheduler, *cache.Cache, int) {
	t.Helper()
	c := cache.NewSized(nil, bufferSize)
	dev := device.NewSoftware()
	did, err := c.AddDevice(dev, constants.DoubleBuffering*bufferSize)
	require.NoError(t, err)
	s := New(c, nil)
	s.AddDevice(did, dev.NewQueue())
	return s, c, did
}

// passthrough is a UnaryWork that enqueues a no-op kernel and records the
// (offset, length) it was handed.
func passthrough(t *testing.T, mu *sync.Mutex, chunks *[][2]int) UnaryWork {
	return func(q device.Queue, wait device.WaitList, offset, length int, buf device.Buffer) *device.Event {
		mu.Lock()
		*chunks = append(*chunks, [2]int{offset, length})
		mu.Unlock()
		return q.Enqueue(wait, func() error { return nil })
	}
}

func TestEnqueueSingleChunkWhenObjectFitsOneBuffer(t *testing.T) {
	s, c, did := newTestScheduler(t, constants.BufferSize)
	oid := c.AddObject(make([]byte, 32), gokmeans.Immutable)

	var mu sync.Mutex
	var chunks [][2]int
	future, err := s.Enqueue(did, oid, 4, passthrough(t, &mu, &chunks))
	require.NoError(t, err)
	require.NoError(t, future.Wait())

	require.Equal(t, [][2]int{{0, 32}}, chunks)
}

// TestLiteralScenarioFourChunking matches the documented boundary case: a
// 64-byte buffer size and a 192-byte uint32 object split into three
// 16-element (64-byte) chunks, occupying slots 0, 1, 0 in that order.
func TestLiteralScenarioFourChunking(t *testing.T) {
	const bufferSize = 64
	s, c, did := newTestScheduler(t, bufferSize)
	oid := c.AddObject(make([]byte, 192), gokmeans.Immutable)

	var mu sync.Mutex
	var chunks [][2]int
	future, err := s.Enqueue(did, oid, 4, passthrough(t, &mu, &chunks))
	require.NoError(t, err)
	require.NoError(t, future.Wait())

	require.Equal(t, [][2]int{{0, 64}, {64, 64}, {128, 64}}, chunks)

	slots := make([]int, len(chunks))
	for i, ch := range chunks {
		bid := ch[0] / bufferSize
		slots[i] = cache.SlotIndex(bid)
	}
	require.Equal(t, []int{0, 1, 0}, slots)
}

// TestEnqueueBackpressureSerializesSlotReuse verifies that dispatching a
// third chunk onto a slot still held by an earlier, unfinished occupant
// blocks until that occupant's event completes and is unlocked — the
// explicit-drain mechanism replacing a callback-driven unlock.
func TestEnqueueBackpressureSerializesSlotReuse(t *testing.T) {
	const bufferSize = 64
	s, c, did := newTestScheduler(t, bufferSize)
	oid := c.AddObject(make([]byte, 192), gokmeans.Immutable)

	gate0 := make(chan struct{})
	var mu sync.Mutex
	var dispatched []int

	work := func(q device.Queue, wait device.WaitList, offset, length int, buf device.Buffer) *device.Event {
		bid := offset / bufferSize
		return q.Enqueue(wait, func() error {
			if bid == 0 {
				<-gate0
			}
			mu.Lock()
			dispatched = append(dispatched, bid)
			mu.Unlock()
			return nil
		})
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.Enqueue(did, oid, 4, work)
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("Enqueue returned early (err=%v) before slot 0's occupant was released", err)
	case <-timeAfter():
	}

	mu.Lock()
	require.NotContains(t, dispatched, 2, "chunk with bid 2 must not dispatch while bid 0 still holds slot 0")
	mu.Unlock()

	close(gate0)
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, dispatched, 3)
	pos := map[int]int{}
	for i, bid := range dispatched {
		pos[bid] = i
	}
	require.Less(t, pos[0], pos[2], "bid 0 must finish before bid 2 (same slot) reuses it")
}

func TestEnqueueBinaryPairsMatchingChunksAndSharesOccupantEvent(t *testing.T) {
	const bufferSize = 64
	s, c, did := newTestScheduler(t, bufferSize)
	// 4 rows of uint32 points (one column) and 4 rows of uint32 labels.
	oidPoints := c.AddObject(make([]byte, 16), gokmeans.Immutable)
	oidLabels := c.AddObject(make([]byte, 16), gokmeans.Mutable)

	var mu sync.Mutex
	var pairs [][4]int
	work := func(q device.Queue, wait device.WaitList, offA, lenA int, bufA device.Buffer, offB, lenB int, bufB device.Buffer) *device.Event {
		mu.Lock()
		pairs = append(pairs, [4]int{offA, lenA, offB, lenB})
		mu.Unlock()
		return q.Enqueue(wait, func() error { return nil })
	}

	future, err := s.EnqueueBinary(did, oidPoints, 4, oidLabels, 4, work)
	require.NoError(t, err)
	require.NoError(t, future.Wait())

	require.Equal(t, [][4]int{{0, 16, 0, 16}}, pairs)

	ds := s.devices[did]
	require.Same(t, ds.occupied[occupantKey{oid: oidPoints, slotIdx: 0}].event,
		ds.occupied[occupantKey{oid: oidLabels, slotIdx: 0}].event)
}

func TestEnqueueBarrierUnlocksEveryOutstandingOccupant(t *testing.T) {
	s, c, did := newTestScheduler(t, constants.BufferSize)
	oid := c.AddObject(make([]byte, 16), gokmeans.Immutable)

	var mu sync.Mutex
	var chunks [][2]int
	_, err := s.Enqueue(did, oid, 4, passthrough(t, &mu, &chunks))
	require.NoError(t, err)

	require.NoError(t, s.EnqueueBarrier())

	// Re-acquiring the same slot must succeed now that the barrier drained
	// and unlocked every outstanding occupant.
	q := s.devices[did].queue
	_, _, ev, err := c.Get(q, did, oid, 0, 16)
	require.NoError(t, err)
	require.NoError(t, ev.Wait())
	require.NoError(t, c.Unlock(did, oid, 0))
}

func TestRunIsEquivalentToBarrier(t *testing.T) {
	s, c, did := newTestScheduler(t, constants.BufferSize)
	oid := c.AddObject(make([]byte, 16), gokmeans.Immutable)

	var mu sync.Mutex
	var chunks [][2]int
	_, err := s.Enqueue(did, oid, 4, passthrough(t, &mu, &chunks))
	require.NoError(t, err)
	require.NoError(t, s.Run())

	q := s.devices[did].queue
	_, _, ev, err := c.Get(q, did, oid, 0, 16)
	require.NoError(t, err)
	require.NoError(t, ev.Wait())
}

func TestEnqueueUnknownDeviceFails(t *testing.T) {
	s, c, _ := newTestScheduler(t, constants.BufferSize)
	oid := c.AddObject(make([]byte, 16), gokmeans.Immutable)

	_, err := s.Enqueue(99, oid, 4, func(q device.Queue, wait device.WaitList, offset, length int, buf device.Buffer) *device.Event {
		return device.Signalled()
	})
	require.Error(t, err)
	require.True(t, gokmeans.Is(err, gokmeans.InvalidArgument))
}
