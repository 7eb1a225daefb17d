package decodeworker

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Job is one decode or conversion. Jobs with the same Key run in order on one worker.
type Job struct {
	Key     string
	Kind    string
	Handler func(ctx context.Context) error
}

// PoolStats holds live metrics of the decode pool.
type PoolStats struct {
	NumWorkers      int              `json:"num_workers"`
	QueueSize       int              `json:"queue_size"`
	Queued          int              `json:"queued"`
	ActiveWorkers   int              `json:"active_workers"`
	TotalDispatched int64            `json:"total_dispatched"`
	TotalProcessed  int64            `json:"total_processed"`
	TotalDropped    int64            `json:"total_dropped"`
	TotalErrors     int64            `json:"total_errors"`
	ProcessedByKind map[string]int64 `json:"processed_by_kind"`
}

// Pool is a sharded worker pool: every key hashes to one worker so decodes of the same
// media never race each other.
type Pool struct {
	numWorkers int
	queueSize  int
	workers    []*worker
	wg         sync.WaitGroup

	// mu guards stopped against the close of the job queues.
	mu      sync.RWMutex
	stopped bool

	totalDispatched atomic.Int64
	totalProcessed  atomic.Int64
	totalDropped    atomic.Int64
	totalErrors     atomic.Int64

	kindMu sync.Mutex
	byKind map[string]int64
}

type worker struct {
	id         int
	jobs       chan Job
	ctx        context.Context
	processing atomic.Bool
	pool       *Pool
}

// NewPool creates a pool. Workers start with Start.
func NewPool(numWorkers, queueSize int) *Pool {
	if numWorkers <= 0 {
		numWorkers = 4
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	p := &Pool{
		numWorkers: numWorkers,
		queueSize:  queueSize,
		workers:    make([]*worker, numWorkers),
		byKind:     make(map[string]int64),
	}
	for i := range p.workers {
		p.workers[i] = &worker{id: i, jobs: make(chan Job, queueSize), pool: p}
	}
	return p
}

// Start launches every worker. ctx is handed to the job handlers.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		w.ctx = ctx
		p.wg.Add(1)
		go w.run(&p.wg)
	}
	logrus.Infof("[DECODE_POOL] Started with %d workers, queue size: %d", p.numWorkers, p.queueSize)
}

// TryDispatch queues job without blocking and reports whether it was accepted.
func (p *Pool) TryDispatch(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		p.totalDropped.Add(1)
		return false
	}

	shard := p.shardFor(job.Key)
	select {
	case p.workers[shard].jobs <- job:
		p.totalDispatched.Add(1)
		return true
	default:
		p.totalDropped.Add(1)
		logrus.Warnf("[DECODE_POOL] Worker %d queue full, dropping %s job for %s", shard, job.Kind, job.Key)
		return false
	}
}

// Stop closes the queues and waits until every queued job has run, so their futures settle.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	for _, w := range p.workers {
		close(w.jobs)
	}
	p.mu.Unlock()

	logrus.Info("[DECODE_POOL] Stopping workers...")
	p.wg.Wait()
	logrus.Info("[DECODE_POOL] All workers stopped")
}

func (p *Pool) shardFor(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(p.numWorkers))
}

// GetStats returns live pool metrics.
func (p *Pool) GetStats() PoolStats {
	stats := PoolStats{
		NumWorkers:      p.numWorkers,
		QueueSize:       p.queueSize,
		TotalDispatched: p.totalDispatched.Load(),
		TotalProcessed:  p.totalProcessed.Load(),
		TotalDropped:    p.totalDropped.Load(),
		TotalErrors:     p.totalErrors.Load(),
	}
	for _, w := range p.workers {
		stats.Queued += len(w.jobs)
		if w.processing.Load() {
			stats.ActiveWorkers++
		}
	}

	p.kindMu.Lock()
	stats.ProcessedByKind = make(map[string]int64, len(p.byKind))
	for k, n := range p.byKind {
		stats.ProcessedByKind[k] = n
	}
	p.kindMu.Unlock()
	return stats
}

func (w *worker) run(wg *sync.WaitGroup) {
	defer wg.Done()
	for job := range w.jobs {
		w.process(job)
	}
	logrus.Debugf("[DECODE_POOL] Worker %d shutting down", w.id)
}

func (w *worker) process(job Job) {
	w.processing.Store(true)
	defer func() {
		if r := recover(); r != nil {
			w.pool.totalErrors.Add(1)
			logrus.Errorf("[DECODE_POOL] Worker %d panic for %s: %v", w.id, job.Key, r)
		}
		w.processing.Store(false)
		w.pool.totalProcessed.Add(1)
		w.pool.kindMu.Lock()
		w.pool.byKind[job.Kind]++
		w.pool.kindMu.Unlock()
	}()

	if err := job.Handler(w.ctx); err != nil {
		w.pool.totalErrors.Add(1)
		logrus.WithError(err).Warnf("[DECODE_POOL] Worker %d %s job failed for %s", w.id, job.Kind, job.Key)
	}
}
