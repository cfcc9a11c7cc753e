package vm

// ---------------------------------------------------------------------------
// Frame: one activation record
// ---------------------------------------------------------------------------

// Frame is the activation record of one call. Frames live in the VM's call
// stack; the caller of the frame at depth d is the frame at depth d-1, and
// the frame at depth 0 is the root frame holding top-level bindings.
type Frame struct {
	vars      map[uint64]Value
	returnTo  int                  // pc to resume at after RET
	resultReg uint8                // caller register that receives the result
	saved     [RegisterCount]Value // caller's register file at CALL
}

func newFrame() *Frame {
	return &Frame{vars: make(map[uint64]Value)}
}

// Lookup returns the value bound to hash in this frame only.
func (f *Frame) Lookup(hash uint64) (Value, bool) {
	v, ok := f.vars[hash]
	return v, ok
}

// Bind binds hash to v, replacing any previous binding in this frame.
func (f *Frame) Bind(hash uint64, v Value) {
	f.vars[hash] = v
}

// ReturnTo returns the pc execution resumes at when this frame is popped.
func (f *Frame) ReturnTo() int {
	return f.returnTo
}

// Len returns the number of names bound in the frame.
func (f *Frame) Len() int {
	return len(f.vars)
}
