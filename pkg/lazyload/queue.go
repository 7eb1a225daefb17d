// Package lazyload defers media loads until their render target becomes visible.
package lazyload

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/AzielCF/az-wrap/pkg/rendertree"
	"github.com/AzielCF/az-wrap/pkg/uiloop"
	"github.com/sirupsen/logrus"
)

// DefaultParallelLimit caps loads in flight at once.
const DefaultParallelLimit = 5

// Waiter is whatever a load returns to signal it has finished. Futures satisfy it.
type Waiter interface {
	Done() <-chan struct{}
}

// Task pairs a render target with the load to run once the target is visible.
type Task struct {
	Target *rendertree.Node
	Load   func() Waiter
	// WasSeen marks a target already known to be on screen; the load starts inside Push.
	WasSeen bool
}

// Stats is a snapshot of queue bookkeeping.
type Stats struct {
	Pending       int   `json:"pending"`
	Ready         int   `json:"ready"`
	InFlight      int   `json:"in_flight"`
	ParallelLimit int   `json:"parallel_limit"`
	TotalPushed   int64 `json:"total_pushed"`
	TotalReleased int64 `json:"total_released"`
	TotalDropped  int64 `json:"total_dropped"`
}

type entry struct {
	task     Task
	seq      uint64
	dist     float64
	released atomic.Bool
}

// Queue releases tasks nearest the viewport first, with at most ParallelLimit loads in
// flight. Loads run on the UI loop.
type Queue struct {
	tracker VisibilityTracker
	loop    *uiloop.Loop
	limit   int

	// checkPosted coalesces the visibility checks posted by Push within one loop tick.
	checkPosted atomic.Bool

	mu       sync.Mutex
	seq      uint64
	pending  []*entry
	ready    []*entry
	inFlight int

	totalPushed   int64
	totalReleased int64
	totalDropped  int64
}

// Option configures a Queue.
type Option func(*Queue)

// WithParallelLimit overrides DefaultParallelLimit. Values below 1 are ignored.
func WithParallelLimit(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.limit = n
		}
	}
}

// New returns a queue driven by tracker. When tracker announces changes, a refresh is
// posted to loop.
func New(tracker VisibilityTracker, loop *uiloop.Loop, opts ...Option) *Queue {
	q := &Queue{
		tracker: tracker,
		loop:    loop,
		limit:   DefaultParallelLimit,
	}
	for _, opt := range opts {
		opt(q)
	}
	if n, ok := tracker.(ChangeNotifier); ok {
		n.OnChange(func() { q.post(q.Refresh) })
	}
	return q
}

// Push registers a task. WasSeen tasks are released before Push returns. Other tasks get
// a visibility check posted to the loop, so a target that is already on screen starts
// without waiting for a scroll. Without a loop the caller drives Refresh.
func (q *Queue) Push(task Task) {
	if task.Load == nil {
		return
	}

	q.mu.Lock()
	q.seq++
	e := &entry{task: task, seq: q.seq}
	atomic.AddInt64(&q.totalPushed, 1)
	if !task.WasSeen {
		q.pending = append(q.pending, e)
		q.mu.Unlock()
		q.postCheck()
		return
	}
	q.inFlight++
	q.mu.Unlock()

	logrus.Debugf("[LAZYLOAD] Releasing already visible target %d", nodeID(task.Target))
	q.release(e)
}

func (q *Queue) postCheck() {
	if q.loop == nil || !q.checkPosted.CompareAndSwap(false, true) {
		return
	}
	q.loop.Post(func() {
		q.checkPosted.Store(false)
		q.Refresh()
	})
}

// Refresh runs one visibility computation: visible targets move to the ready list in
// order of distance, then ready tasks are released up to the parallel limit.
func (q *Queue) Refresh() {
	q.mu.Lock()
	kept := q.pending[:0]
	var visible []*entry
	for _, e := range q.pending {
		dist, ok := q.tracker.Distance(e.task.Target)
		if ok {
			e.dist = dist
			visible = append(visible, e)
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(q.pending); i++ {
		q.pending[i] = nil
	}
	q.pending = kept

	q.ready = append(q.ready, visible...)
	sort.SliceStable(q.ready, func(i, j int) bool {
		if q.ready[i].dist != q.ready[j].dist {
			return q.ready[i].dist < q.ready[j].dist
		}
		return q.ready[i].seq < q.ready[j].seq
	})
	q.mu.Unlock()

	q.pump()
}

func (q *Queue) pump() {
	for {
		q.mu.Lock()
		if q.inFlight >= q.limit || len(q.ready) == 0 {
			q.mu.Unlock()
			return
		}
		e := q.ready[0]
		q.ready[0] = nil
		q.ready = q.ready[1:]
		q.inFlight++
		q.mu.Unlock()

		q.release(e)
	}
}

func (q *Queue) release(e *entry) {
	if !e.released.CompareAndSwap(false, true) {
		q.finish()
		return
	}
	atomic.AddInt64(&q.totalReleased, 1)

	w := q.run(e)
	if w == nil {
		q.finish()
		q.pump()
		return
	}

	go func() {
		<-w.Done()
		q.post(func() {
			q.finish()
			q.pump()
		})
	}()
}

func (q *Queue) run(e *entry) (w Waiter) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("[LAZYLOAD] Load for target %d panicked: %v", nodeID(e.task.Target), r)
			w = nil
		}
	}()
	return e.task.Load()
}

func (q *Queue) finish() {
	q.mu.Lock()
	if q.inFlight > 0 {
		q.inFlight--
	}
	q.mu.Unlock()
}

func (q *Queue) post(fn func()) {
	if q.loop == nil {
		fn()
		return
	}
	q.loop.Post(fn)
}

// Unobserve drops every task still waiting for target. Dropped tasks never run.
func (q *Queue) Unobserve(target *rendertree.Node) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	match := func(e *entry) bool { return e.task.Target == target }
	var dropped int
	q.pending, dropped = filterOut(q.pending, match)
	var n int
	q.ready, n = filterOut(q.ready, match)
	dropped += n

	atomic.AddInt64(&q.totalDropped, int64(dropped))
	return dropped
}

// Clear drops every task that has not been released.
func (q *Queue) Clear() {
	q.mu.Lock()
	dropped := len(q.pending) + len(q.ready)
	q.pending = nil
	q.ready = nil
	q.mu.Unlock()

	atomic.AddInt64(&q.totalDropped, int64(dropped))
	if dropped > 0 {
		logrus.Debugf("[LAZYLOAD] Cleared %d unreleased tasks", dropped)
	}
}

// Len returns the number of tasks not yet released.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) + len(q.ready)
}

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Pending:       len(q.pending),
		Ready:         len(q.ready),
		InFlight:      q.inFlight,
		ParallelLimit: q.limit,
		TotalPushed:   atomic.LoadInt64(&q.totalPushed),
		TotalReleased: atomic.LoadInt64(&q.totalReleased),
		TotalDropped:  atomic.LoadInt64(&q.totalDropped),
	}
}

func filterOut(list []*entry, match func(*entry) bool) ([]*entry, int) {
	kept := list[:0]
	dropped := 0
	for _, e := range list {
		if match(e) {
			dropped++
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(list); i++ {
		list[i] = nil
	}
	return kept, dropped
}

func nodeID(n *rendertree.Node) rendertree.ID {
	if n == nil {
		return 0
	}
	return n.ID()
}
