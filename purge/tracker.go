package purge

import "sync"

// tracker is the completion barrier for a purge run. It counts tasks
// that have been handed to the pool but not yet acknowledged, plus a
// flag for whether the lister is still producing keys. wait returns
// only when both conditions hold, so a queue that drains to empty in
// the middle of a listing can never look like completion.
type tracker struct {
	mu          sync.Mutex
	cond        *sync.Cond
	outstanding int
	produced    bool
}

func newTracker() *tracker {
	t := &tracker{}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// add records one enqueued task. Must happen before the task becomes
// visible to any worker.
func (t *tracker) add() {
	t.mu.Lock()
	t.outstanding++
	t.mu.Unlock()
}

// done records one acknowledged task.
func (t *tracker) done() {
	t.mu.Lock()
	t.outstanding--
	if t.outstanding == 0 && t.produced {
		t.cond.Broadcast()
	}
	t.mu.Unlock()
}

// finish marks enumeration complete.
func (t *tracker) finish() {
	t.mu.Lock()
	t.produced = true
	if t.outstanding == 0 {
		t.cond.Broadcast()
	}
	t.mu.Unlock()
}

// wait blocks until enumeration has finished and every enqueued task
// has been acknowledged.
func (t *tracker) wait() {
	t.mu.Lock()
	for !t.produced || t.outstanding != 0 {
		t.cond.Wait()
	}
	t.mu.Unlock()
}
