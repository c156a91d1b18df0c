package dmrgps

/*------------------------------------------------------------------
 *
 * Purpose:   	Background job queue.
 *
 * Description:	Sending to APRS-IS and writing the profile file take
 *		time we don't want to spend while frames are arriving.
 *		Those go into this queue and one goroutine does them,
 *		one at a time, in the order they were submitted.  Two
 *		changes to the same profile are saved in order.
 *
 *		The queue has a fixed size.  If it fills up, new jobs
 *		are thrown away and counted rather than holding up the
 *		caller.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
)

const DEFAULT_QUEUE_SIZE = 64

type job struct {
	name string
	run  func() error
}

type Dispatcher struct {
	logger  *log.Logger
	metrics *Metrics

	queue chan job
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(size int, logger *log.Logger, metrics *Metrics) *Dispatcher {
	if size <= 0 {
		size = DEFAULT_QUEUE_SIZE
	}

	var d = &Dispatcher{
		logger:  logger,
		metrics: metrics,
		queue:   make(chan job, size),
		done:    make(chan struct{}),
	}

	go d.worker()

	return d
}

func (d *Dispatcher) worker() {
	defer close(d.done)

	for j := range d.queue {
		if err := j.run(); err != nil {
			d.logger.Debug("Background job failed", "job", j.name, "err", err)
		}
	}
}

// Submit queues a job without waiting.  False if it was dropped.
func (d *Dispatcher) Submit(name string, run func() error) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn("Job after shutdown, dropped", "job", name)
		d.metrics.dropped()
		return false
	}

	select {
	case d.queue <- job{name: name, run: run}:
		return true
	default:
		d.logger.Warn("Job queue full, dropped", "job", name, "size", cap(d.queue))
		d.metrics.dropped()
		return false
	}
}

// Pending is the number of jobs waiting.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Close stops taking jobs and waits for the queued ones to finish,
// or for ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		d.logger.Warn("Gave up waiting for background jobs", "pending", len(d.queue))
		return ctx.Err()
	}
}
