package purge

import "sync"

// object identifies a single S3 object targeted for deletion.
type object struct {
	bucket string
	key    string
}

// dispatcher is the hand-off buffer between the lister and the worker
// pool. Receiving a task and acknowledging it are separate steps; the
// tracker is only decremented at acknowledge time so the barrier
// counts in-flight work, not just queued work.
type dispatcher struct {
	tasks chan object
	trk   *tracker

	mu        sync.Mutex
	succeeded int
	failures  []Failure
}

func newDispatcher(depth int) *dispatcher {
	return &dispatcher{
		tasks: make(chan object, depth),
		trk:   newTracker(),
	}
}

// put hands one task to the pool. Blocks when the buffer is full,
// which throttles the lister naturally.
func (d *dispatcher) put(obj object) {
	d.trk.add()
	d.tasks <- obj
}

// get blocks until a task is available or the dispatcher has been
// closed for shutdown. ok is false only on shutdown.
func (d *dispatcher) get() (obj object, ok bool) {
	obj, ok = <-d.tasks
	return obj, ok
}

// acknowledge records the outcome of one task. Must be called exactly
// once per task received from get.
func (d *dispatcher) acknowledge(obj object, opErr error) {
	d.mu.Lock()
	if opErr == nil {
		d.succeeded++
	} else {
		d.failures = append(d.failures, Failure{Key: obj.key, Reason: opErr.Error()})
	}
	d.mu.Unlock()
	d.trk.done()
}

// close signals shutdown to the pool. Only called after the barrier
// has released, so the buffer is already empty.
func (d *dispatcher) close() {
	close(d.tasks)
}
