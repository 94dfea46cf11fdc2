package memgrid

import "github.com/dd0wney/cluso-clustermgr/pkg/grid"

type longStore struct {
	value int64
}

type nodeAtomicLong struct {
	node  *Node
	name  string
	store *longStore
}

var _ grid.AtomicLong = (*nodeAtomicLong)(nil)

func (a *nodeAtomicLong) Name() string {
	return a.name
}

// update applies fn under the fabric lock and returns the values before and
// after.
func (a *nodeAtomicLong) update(fn func(int64) int64) (before, after int64, err error) {
	if err := a.node.checkOpen(); err != nil {
		return 0, 0, err
	}
	f := a.node.fabric
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := a.node.checkOpen(); err != nil {
		return 0, 0, err
	}

	before = a.store.value
	a.store.value = fn(before)
	return before, a.store.value, nil
}

func (a *nodeAtomicLong) Get() (int64, error) {
	v, _, err := a.update(func(v int64) int64 { return v })
	return v, err
}

func (a *nodeAtomicLong) IncrementAndGet() (int64, error) {
	return a.AddAndGet(1)
}

func (a *nodeAtomicLong) GetAndIncrement() (int64, error) {
	return a.GetAndAdd(1)
}

func (a *nodeAtomicLong) DecrementAndGet() (int64, error) {
	return a.AddAndGet(-1)
}

func (a *nodeAtomicLong) AddAndGet(delta int64) (int64, error) {
	_, v, err := a.update(func(v int64) int64 { return v + delta })
	return v, err
}

func (a *nodeAtomicLong) GetAndAdd(delta int64) (int64, error) {
	v, _, err := a.update(func(v int64) int64 { return v + delta })
	return v, err
}

func (a *nodeAtomicLong) CompareAndSet(expected, value int64) (bool, error) {
	var swapped bool
	_, _, err := a.update(func(v int64) int64 {
		if v == expected {
			swapped = true
			return value
		}
		return v
	})
	return swapped, err
}
