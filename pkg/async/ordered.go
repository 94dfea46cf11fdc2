package async

import "sync"

// Ordered runs tasks on an underlying executor one at a time, in submission
// order. At most one task of an Ordered occupies the underlying executor.
type Ordered struct {
	exec Executor

	mu      sync.Mutex
	queue   []func()
	running bool
}

// NewOrdered returns an Ordered that borrows workers from exec.
func NewOrdered(exec Executor) *Ordered {
	return &Ordered{exec: exec}
}

// Submit queues task behind every task submitted before it. It returns false
// when the underlying executor refuses to start a drain; tasks queued behind
// that drain are discarded.
func (o *Ordered) Submit(task func()) bool {
	o.mu.Lock()
	o.queue = append(o.queue, task)
	if o.running {
		o.mu.Unlock()
		return true
	}
	o.running = true
	o.mu.Unlock()

	if o.exec.Submit(o.drain) {
		return true
	}
	o.mu.Lock()
	o.queue = nil
	o.running = false
	o.mu.Unlock()
	return false
}

// Pending returns the number of tasks waiting to run.
func (o *Ordered) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

func (o *Ordered) drain() {
	defer func() {
		if r := recover(); r != nil {
			// hand the rest of the queue to a fresh drain, then let the
			// executor see the panic
			o.resume()
			panic(r)
		}
	}()

	for {
		o.mu.Lock()
		if len(o.queue) == 0 {
			o.running = false
			o.mu.Unlock()
			return
		}
		task := o.queue[0]
		o.queue[0] = nil
		o.queue = o.queue[1:]
		o.mu.Unlock()

		task()
	}
}

func (o *Ordered) resume() {
	o.mu.Lock()
	if len(o.queue) == 0 {
		o.running = false
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()

	if !o.exec.Submit(o.drain) {
		o.mu.Lock()
		o.queue = nil
		o.running = false
		o.mu.Unlock()
	}
}
