package vm

import (
	"time"
)

// ---------------------------------------------------------------------------
// Mark-and-sweep collection
// ---------------------------------------------------------------------------

// GCStats holds collector statistics.
type GCStats struct {
	Collections int           // completed collections
	Freed       int           // objects reclaimed by the last collection
	TotalFreed  int           // objects reclaimed over the VM's lifetime
	Live        int           // objects alive after the last collection
	Threshold   int           // live count that triggers the next collection
	LastPause   time.Duration // duration of the last collection
}

// Stats returns the collector statistics.
func (m *VM) Stats() GCStats {
	s := m.stats
	s.Threshold = m.threshold
	return s
}

// alloc allocates a heap object, collecting first when the live count has
// reached the threshold.
func (m *VM) alloc(kind Kind, sizeHint int) Value {
	if m.heap.Live() >= m.threshold {
		m.Collect()
		next := int(float64(m.heap.Live()) * m.gcGrowth)
		if next < m.gcInitial {
			next = m.gcInitial
		}
		m.threshold = next
	}
	return fromHandle(kind, m.heap.alloc(kind, sizeHint))
}

// Collect runs a full stop-the-world collection and returns the number of
// objects freed.
//
// The root set is every occupied register (compile-time liveness is not
// trusted, a freed register keeps its value until overwritten), every
// frame's bindings and saved register file from the active frame down to the
// root frame, and every heap value in the global table.
func (m *VM) Collect() int {
	start := time.Now()
	m.forEachRoot(func(v Value) {
		m.markWork = m.heap.mark(v, m.markWork)
	})
	freed := m.heap.sweep()

	m.stats.Collections++
	m.stats.Freed = freed
	m.stats.TotalFreed += freed
	m.stats.Live = m.heap.Live()
	m.stats.LastPause = time.Since(start)
	log.Debugf("gc #%d: freed %d, live %d, pause %s",
		m.stats.Collections, freed, m.stats.Live, m.stats.LastPause)
	return freed
}

func (m *VM) forEachRoot(fn func(Value)) {
	for _, v := range m.registers {
		if v.IsHeap() {
			fn(v)
		}
	}
	for i := len(m.frames) - 1; i >= 0; i-- {
		f := m.frames[i]
		for _, v := range f.vars {
			if v.IsHeap() {
				fn(v)
			}
		}
		for _, v := range f.saved {
			if v.IsHeap() {
				fn(v)
			}
		}
	}
	for _, v := range m.globals {
		if v.IsHeap() {
			fn(v)
		}
	}
}
