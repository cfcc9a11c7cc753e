package vm

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("purplegarden.vm")

// RegisterCount is the size of the register file and the compiler's
// register budget.
const RegisterCount = 32

// Defaults applied when Options leaves a field zero.
const (
	DefaultGCThreshold = 1024
	DefaultGCGrowth    = 2.0
	DefaultMaxFrames   = 4096
)

// ---------------------------------------------------------------------------
// Image: the compiler's output
// ---------------------------------------------------------------------------

// Image is the immutable program a VM executes: the instruction sequence and
// the global table derived from the constant pool. Names maps name hashes to
// identifiers for diagnostics only; the VM never resolves through it.
type Image struct {
	Code    []Op
	Globals []Value
	Names   map[uint64]string
}

// ---------------------------------------------------------------------------
// VM: the register machine
// ---------------------------------------------------------------------------

// Options configures a VM. Zero fields take the package defaults.
type Options struct {
	Builtins    *Registry // defaults to StdBuiltins()
	Output      io.Writer // defaults to os.Stdout
	GCThreshold int       // live objects that trigger the first collection
	GCGrowth    float64   // threshold multiplier applied after a collection
	MaxFrames   int       // call depth limit, root frame included
	Trace       bool      // log every instruction at debug level
	Profiler    *Profiler // optional instruction and call counts
}

// VM executes one Image. It is single-threaded; callers must not share a VM
// across goroutines.
type VM struct {
	registers [RegisterCount]Value
	pc        int
	frames    []*Frame

	code    []Op
	globals []Value
	names   map[uint64]string

	heap     *Heap
	builtins *Registry
	out      io.Writer

	maxFrames int
	trace     bool
	profiler  *Profiler

	gcInitial int
	gcGrowth  float64
	threshold int
	stats     GCStats
	markWork  []Handle
}

// New creates a VM ready to run img from pc 0 with an empty root frame.
func New(img *Image, opts Options) *VM {
	m := &VM{
		code:      img.Code,
		globals:   img.Globals,
		names:     img.Names,
		heap:      NewHeap(),
		builtins:  opts.Builtins,
		out:       opts.Output,
		maxFrames: opts.MaxFrames,
		trace:     opts.Trace,
		profiler:  opts.Profiler,
		gcInitial: opts.GCThreshold,
		gcGrowth:  opts.GCGrowth,
	}
	if m.builtins == nil {
		m.builtins = StdBuiltins()
	}
	if m.out == nil {
		m.out = os.Stdout
	}
	if m.maxFrames <= 0 {
		m.maxFrames = DefaultMaxFrames
	}
	if m.gcInitial <= 0 {
		m.gcInitial = DefaultGCThreshold
	}
	if m.gcGrowth < 1 {
		m.gcGrowth = DefaultGCGrowth
	}
	m.threshold = m.gcInitial
	m.frames = append(make([]*Frame, 0, 16), newFrame())
	return m
}

// PC returns the program counter.
func (m *VM) PC() int { return m.pc }

// Depth returns the number of frames on the call stack, root frame included.
func (m *VM) Depth() int { return len(m.frames) }

// Frame returns the frame at the given depth, 0 being the root frame.
func (m *VM) Frame(depth int) *Frame { return m.frames[depth] }

// Heap returns the VM's heap.
func (m *VM) Heap() *Heap { return m.heap }

// Builtins returns the builtin registry SYS dispatches through.
func (m *VM) Builtins() *Registry { return m.builtins }

// Register returns the content of register r, Empty if unoccupied or out of range.
func (m *VM) Register(r uint8) Value {
	if int(r) >= RegisterCount {
		return Empty
	}
	return m.registers[r]
}

// SetRegister overwrites register r. Host code uses it to seed arguments.
func (m *VM) SetRegister(r uint8, v Value) error {
	if int(r) >= RegisterCount {
		return ErrRegisterRange
	}
	m.registers[r] = v
	return nil
}

// Lookup resolves hash from the active frame down to the root frame.
func (m *VM) Lookup(hash uint64) (Value, bool) {
	for i := len(m.frames) - 1; i >= 0; i-- {
		if v, ok := m.frames[i].Lookup(hash); ok {
			return v, true
		}
	}
	return Empty, false
}

// NewArray allocates an array holding elems. Allocation may trigger a
// collection, so elems must already be reachable from a root or held only
// in this call.
func (m *VM) NewArray(elems ...Value) Value {
	v := m.alloc(KindArr, len(elems))
	obj, _ := m.heap.object(v)
	obj.elems = append(obj.elems, elems...)
	return v
}

// Format renders v, following arrays and objects through the heap.
func (m *VM) Format(v Value) string {
	var sb strings.Builder
	m.format(&sb, v, 0)
	return sb.String()
}

const maxFormatDepth = 32

func (m *VM) format(sb *strings.Builder, v Value, depth int) {
	if !v.IsHeap() {
		sb.WriteString(v.String())
		return
	}
	elems, err := m.heap.Elements(v)
	if err != nil || depth > maxFormatDepth {
		sb.WriteString(v.String())
		return
	}
	if v.Kind() == KindArr {
		sb.WriteByte('[')
		for i, e := range elems {
			if i > 0 {
				sb.WriteString(", ")
			}
			m.formatElem(sb, e, depth)
		}
		sb.WriteByte(']')
		return
	}
	sb.WriteByte('{')
	for i := 0; i+1 < len(elems); i += 2 {
		if i > 0 {
			sb.WriteString(", ")
		}
		m.formatElem(sb, elems[i], depth)
		sb.WriteString(": ")
		m.formatElem(sb, elems[i+1], depth)
	}
	sb.WriteByte('}')
}

func (m *VM) formatElem(sb *strings.Builder, e Value, depth int) {
	if e.IsText() {
		sb.WriteString(strconv.Quote(e.Text()))
		return
	}
	m.format(sb, e, depth+1)
}
