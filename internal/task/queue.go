// Package task implements the requeueable task-queue primitive the
// core treats as "external": the core only assumes a scheduler
// delivers init/connect/reconfigure/disconnect/detach/swap/
// delete-instance tasks and lets any of them requeue with a deadline
// instead of blocking. This package is a small in-process reference
// implementation of that contract, patterned on gravwell's
// emergencyQueue (ingest/muxer.go): a mutex-guarded list drained by
// worker goroutines, generalized from "list of stuck entries" to
// "list of deadline-ordered deferred work."
package task

import (
	"container/heap"
	"sync"
	"time"

	"github.com/streamgraph/filtercore/internal/lock"
)

// Func is one unit of work. A task that cannot complete yet should
// requeue itself (via Queue.Post with a future deadline) rather than
// block: "deferral is expressed by requeueing."
type Func func()

type item struct {
	fn       Func
	deadline time.Time
	index    int
}

type itemHeap []*item

func (h itemHeap) Len() int            { return len(h) }
func (h itemHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h itemHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index, h[j].index = i, j }
func (h *itemHeap) Push(x interface{}) {
	it := x.(*item)
	it.index = len(*h)
	*h = append(*h, it)
}
func (h *itemHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}

// Queue is a deadline-ordered work queue with N worker goroutines
// draining it. Tasks that touch the same filter are expected to be
// serialized by the caller (the "scheduler's filter-level
// mutual exclusion") — this Queue does not itself provide per-filter
// exclusion, only FIFO-by-deadline delivery.
type Queue struct {
	mu      lock.Mutex
	cond    *sync.Cond
	pending itemHeap
	closed  bool
	wg      sync.WaitGroup
}

// New creates a Queue and starts workers worker goroutines pulling
// ready tasks off it. Call Close to stop them.
func New(workers int) *Queue {
	if workers < 1 {
		workers = 1
	}
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	heap.Init(&q.pending)
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.loop()
	}
	return q
}

// Post schedules fn to run after delay (zero for "as soon as a
// worker is free"). Requeueing a task is just calling Post again from
// inside fn — the delete-instance task uses this to requeue itself
// with a 50 µs backoff.
func (q *Queue) Post(fn Func, delay time.Duration) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	heap.Push(&q.pending, &item{fn: fn, deadline: time.Now().Add(delay)})
	q.mu.Unlock()
	q.cond.Signal()
}

// PostNow is Post with a zero delay.
func (q *Queue) PostNow(fn Func) { q.Post(fn, 0) }

func (q *Queue) loop() {
	defer q.wg.Done()
	for {
		fn, ok := q.next()
		if !ok {
			return
		}
		if fn != nil {
			fn()
		}
	}
}

// next blocks until either a ready task is available (returned) or the
// queue is closed (ok=false). Deadline waits are looped over
// internally; a nil Func is returned only if one was posted.
func (q *Queue) next() (Func, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if q.closed {
			return nil, false
		}
		if q.pending.Len() == 0 {
			q.cond.Wait()
			continue
		}
		wait := time.Until(q.pending[0].deadline)
		if wait <= 0 {
			it := heap.Pop(&q.pending).(*item)
			return it.fn, true
		}
		// Release the lock while we sleep out the deadline so Post()
		// from another goroutine is not blocked. The sleep always runs
		// to the end; an earlier-deadline item posted meanwhile is seen
		// on the next loop iteration.
		q.mu.Unlock()
		timer := time.NewTimer(wait)
		<-timer.C
		timer.Stop()
		q.mu.Lock()
	}
}

// Close stops accepting new work and waits for workers to drain their
// current task before returning. Already-scheduled future tasks are
// discarded.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
	q.wg.Wait()
}

// Len reports the number of pending (not-yet-run) tasks, used by
// tests and /metrics to observe backlog.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.Len()
}
