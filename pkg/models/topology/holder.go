package topology

import (
	"go.uber.org/atomic"
)

// Holder publishes the current topology snapshot. Readers never see a partially built topology.
type Holder struct {
	current *atomic.Pointer[Topology]
}

func NewHolder(t *Topology) *Holder {
	return &Holder{current: atomic.NewPointer(t)}
}

func (h *Holder) Get() *Topology {
	return h.current.Load()
}

// Swap replaces the snapshot, for example after a configuration reload, and returns the old one.
func (h *Holder) Swap(t *Topology) *Topology {
	old := h.current.Load()
	next := t.clone()
	if old != nil {
		next.Version = old.Version + 1
	}
	return h.current.Swap(next)
}

// Update derives a new snapshot from the latest one and publishes it with compare-and-swap,
// retrying when another writer got there first. fn may run several times and must not have side effects.
func (h *Holder) Update(fn func(*Topology) (*Topology, error)) (*Topology, error) {
	for {
		old := h.current.Load()
		next, err := fn(old)
		if err != nil {
			return nil, err
		}
		if next == old {
			return old, nil
		}
		next = next.clone()
		next.Version = old.Version + 1
		if h.current.CompareAndSwap(old, next) {
			return next, nil
		}
	}
}
