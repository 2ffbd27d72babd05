package eventloop

import (
	"container/heap"
	"sync"
	"sync/atomic"

	"github.com/fxsim/backtester/pkg/ferrors"
)

type runState uint32

const (
	stateIdle runState = iota
	stateRunning
)

// Loop is a min-heap of Events ordered by ascending timestamp, with
// run/step/pause/resume/stop controls. Only one goroutine may run or step
// at a time; other goroutines may push freely — the enqueue path is the
// only engine-wide synchronization point.
type Loop struct {
	mu       sync.Mutex
	cond     *sync.Cond
	heap     eventHeap
	nextSeq  uint64
	paused   bool
	stopped  bool
	running  atomic.Uint32
	processed uint64
}

// New returns an empty, idle Loop.
func New() *Loop {
	l := &Loop{}
	l.cond = sync.NewCond(&l.mu)

	return l
}

// Push enqueues a single event. Thread-safe; may be called while the loop
// is running.
func (l *Loop) Push(e Event) {
	l.mu.Lock()
	e.seq = l.nextSeq
	l.nextSeq++
	heap.Push(&l.heap, e)
	l.cond.Signal()
	l.mu.Unlock()
}

// PushBatch enqueues many events under a single lock acquisition.
func (l *Loop) PushBatch(events []Event) {
	l.mu.Lock()
	for _, e := range events {
		e.seq = l.nextSeq
		l.nextSeq++
		heap.Push(&l.heap, e)
	}
	l.cond.Signal()
	l.mu.Unlock()
}

// Len returns the number of events currently queued.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.heap)
}

// EventsProcessed returns the count of successful handler invocations
// since the last Clear or construction.
func (l *Loop) EventsProcessed() uint64 {
	return atomic.LoadUint64(&l.processed)
}

// Run blocks until the queue drains or Stop is called, invoking handler on
// each event in timestamp order.
func (l *Loop) Run(handler func(Event)) error {
	if !l.running.CompareAndSwap(uint32(stateIdle), uint32(stateRunning)) {
		return ferrors.New(ferrors.ErrCodeAlreadyRunning, "eventloop: run/step already in progress")
	}
	defer l.running.Store(uint32(stateIdle))

	l.mu.Lock()
	l.stopped = false
	l.mu.Unlock()

	for {
		event, ok := l.waitAndPop()
		if !ok {
			return nil
		}

		handler(event)
		atomic.AddUint64(&l.processed, 1)
	}
}

// Step runs exactly n events or until the queue is empty.
func (l *Loop) Step(n int, handler func(Event)) error {
	if !l.running.CompareAndSwap(uint32(stateIdle), uint32(stateRunning)) {
		return ferrors.New(ferrors.ErrCodeAlreadyRunning, "eventloop: run/step already in progress")
	}
	defer l.running.Store(uint32(stateIdle))

	l.mu.Lock()
	l.stopped = false
	l.mu.Unlock()

	for i := 0; i < n; i++ {
		event, ok := l.tryPop()
		if !ok {
			return nil
		}

		handler(event)
		atomic.AddUint64(&l.processed, 1)
	}

	return nil
}

// waitAndPop blocks while the loop is paused, and returns false once Stop
// has been signaled or the queue is empty.
func (l *Loop) waitAndPop() (Event, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for l.paused && !l.stopped {
		l.cond.Wait()
	}

	if l.stopped || len(l.heap) == 0 {
		return Event{}, false
	}

	return heap.Pop(&l.heap).(Event), true
}

// tryPop pops the earliest event without blocking, honoring pause/stop.
func (l *Loop) tryPop() (Event, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopped || l.paused || len(l.heap) == 0 {
		return Event{}, false
	}

	return heap.Pop(&l.heap).(Event), true
}

// Pause gates the internal wait; the loop checks the flag between events.
func (l *Loop) Pause() {
	l.mu.Lock()
	l.paused = true
	l.mu.Unlock()
}

// Resume clears the pause flag and wakes the loop.
func (l *Loop) Resume() {
	l.mu.Lock()
	l.paused = false
	l.cond.Broadcast()
	l.mu.Unlock()
}

// Stop terminates the current Run, leaving unprocessed events in place. A
// subsequent Run may resume them.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopped = true
	l.cond.Broadcast()
	l.mu.Unlock()
}

// Clear empties the queue. Only legal while not running.
func (l *Loop) Clear() error {
	if l.running.Load() == uint32(stateRunning) {
		return ferrors.New(ferrors.ErrCodeAlreadyRunning, "eventloop: cannot clear while running")
	}

	l.mu.Lock()
	l.heap = nil
	atomic.StoreUint64(&l.processed, 0)
	l.mu.Unlock()

	return nil
}
