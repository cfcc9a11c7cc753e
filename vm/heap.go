package vm

// ---------------------------------------------------------------------------
// Heap: index-addressed arena of collector-managed aggregates
// ---------------------------------------------------------------------------

// Handle identifies a heap object. It is an index into the heap arena and is
// only meaningful for the heap that issued it.
type Handle uint32

// heapObject is one arena slot. Objects keep their fields flattened as
// key, value, key, value...
type heapObject struct {
	kind   Kind
	live   bool
	marked bool
	elems  []Value
}

// Heap owns every array and object created by a running program. Objects are
// never freed explicitly; the collector reclaims unmarked slots and rebuilds
// the free list on every sweep.
type Heap struct {
	objects []heapObject
	free    []Handle
	live    int
}

// NewHeap creates an empty heap.
func NewHeap() *Heap {
	return &Heap{
		objects: make([]heapObject, 0, 64),
	}
}

// Live returns the number of allocated objects.
func (h *Heap) Live() int {
	return h.live
}

// Capacity returns the number of arena slots, live or free.
func (h *Heap) Capacity() int {
	return len(h.objects)
}

// IsLive reports whether hd names an allocated object.
func (h *Heap) IsLive(hd Handle) bool {
	return int(hd) < len(h.objects) && h.objects[hd].live
}

// maxPresize caps the capacity reserved for a new array or object.
const maxPresize = 256

// alloc reserves a slot, reusing freed slots lowest-first.
func (h *Heap) alloc(kind Kind, sizeHint int) Handle {
	var hd Handle
	if n := len(h.free); n > 0 {
		hd = h.free[n-1]
		h.free = h.free[:n-1]
	} else {
		hd = Handle(len(h.objects))
		h.objects = append(h.objects, heapObject{})
	}
	// NEW's size comes from the image unchecked; it only presizes.
	sizeHint = min(max(sizeHint, 0), maxPresize)
	if kind == KindObj {
		sizeHint *= 2
	}
	h.objects[hd] = heapObject{
		kind:  kind,
		live:  true,
		elems: make([]Value, 0, sizeHint),
	}
	h.live++
	return hd
}

// object returns the slot for a live handle of the given kind.
func (h *Heap) object(v Value) (*heapObject, error) {
	if !v.IsHeap() {
		return nil, ErrType
	}
	hd := v.Handle()
	if !h.IsLive(hd) || h.objects[hd].kind != v.kind {
		return nil, ErrDanglingHandle
	}
	return &h.objects[hd], nil
}

// Elements returns the backing elements of an array, or the flattened
// key/value fields of an object. The slice must not be retained across
// allocations.
func (h *Heap) Elements(v Value) ([]Value, error) {
	obj, err := h.object(v)
	if err != nil {
		return nil, err
	}
	return obj.elems, nil
}

// Append adds an element to an array or a key/value half-pair to an object.
func (h *Heap) Append(container, v Value) error {
	obj, err := h.object(container)
	if err != nil {
		return err
	}
	obj.elems = append(obj.elems, v)
	return nil
}

// Len returns the element count of an array or the field count of an object.
func (h *Heap) Len(v Value) (int, error) {
	obj, err := h.object(v)
	if err != nil {
		return 0, err
	}
	if obj.kind == KindObj {
		return len(obj.elems) / 2, nil
	}
	return len(obj.elems), nil
}

// Field looks up an object's field by key. Later fields shadow earlier ones.
func (h *Heap) Field(v, key Value) (Value, bool, error) {
	obj, err := h.object(v)
	if err != nil {
		return Empty, false, err
	}
	if obj.kind != KindObj {
		return Empty, false, ErrType
	}
	for i := len(obj.elems) - 2; i >= 0; i -= 2 {
		if obj.elems[i].Equal(key) {
			return obj.elems[i+1], true, nil
		}
	}
	return Empty, false, nil
}

// ---------------------------------------------------------------------------
// Mark and sweep
// ---------------------------------------------------------------------------

// mark sets the mark bit on everything reachable from the given root. It
// walks with an explicit worklist so deep structures cannot overflow the Go
// stack.
func (h *Heap) mark(root Value, work []Handle) []Handle {
	if !root.IsHeap() || !h.IsLive(root.Handle()) {
		return work
	}
	work = append(work[:0], root.Handle())
	for len(work) > 0 {
		hd := work[len(work)-1]
		work = work[:len(work)-1]
		obj := &h.objects[hd]
		if obj.marked {
			continue
		}
		obj.marked = true
		for _, e := range obj.elems {
			if e.IsHeap() && h.IsLive(e.Handle()) && !h.objects[e.Handle()].marked {
				work = append(work, e.Handle())
			}
		}
	}
	return work
}

// sweep frees every live, unmarked object, clears the mark bits on the
// survivors and rebuilds the free list. It returns the number of objects freed.
func (h *Heap) sweep() int {
	freed := 0
	h.free = h.free[:0]
	for i := len(h.objects) - 1; i >= 0; i-- {
		obj := &h.objects[i]
		switch {
		case obj.live && obj.marked:
			obj.marked = false
		case obj.live:
			*obj = heapObject{}
			freed++
			h.free = append(h.free, Handle(i))
		default:
			h.free = append(h.free, Handle(i))
		}
	}
	h.live -= freed
	return freed
}
