package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Builtins: host functions reachable through SYS
// ---------------------------------------------------------------------------

// BuiltinID is the stable identifier SYS carries in place of a function pointer.
type BuiltinID uint16

// BuiltinFunc is a host function. args is a view of the caller's register
// window; the builtin may read and write it and the heap, but it never sees
// the call stack. The returned value is stored into the first register of
// the window.
type BuiltinFunc func(m *VM, args []Value) (Value, error)

// Variadic marks a builtin that accepts any number of arguments.
const Variadic = -1

// Builtin describes one registered host function.
type Builtin struct {
	ID    BuiltinID
	Name  string // fully qualified path, e.g. "std::runtime::gc::cycle"
	Arity int    // expected argument count or Variadic
	Fn    BuiltinFunc
}

// Registry maps builtin IDs and names to host functions. IDs are assigned in
// registration order, so two registries populated the same way agree on them.
type Registry struct {
	byID   []Builtin
	byName map[string]BuiltinID
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]BuiltinID),
	}
}

// Register adds a builtin and returns its ID. Registering a name twice panics.
func (r *Registry) Register(name string, arity int, fn BuiltinFunc) BuiltinID {
	if _, dup := r.byName[name]; dup {
		panic(fmt.Sprintf("builtin %q registered twice", name))
	}
	id := BuiltinID(len(r.byID))
	r.byID = append(r.byID, Builtin{ID: id, Name: name, Arity: arity, Fn: fn})
	r.byName[name] = id
	return id
}

// Lookup returns the builtin registered under id.
func (r *Registry) Lookup(id BuiltinID) (Builtin, bool) {
	if int(id) >= len(r.byID) {
		return Builtin{}, false
	}
	return r.byID[id], true
}

// Resolve returns the builtin registered under name.
func (r *Registry) Resolve(name string) (Builtin, bool) {
	id, ok := r.byName[name]
	if !ok {
		return Builtin{}, false
	}
	return r.byID[id], true
}

// Len returns the number of registered builtins.
func (r *Registry) Len() int {
	return len(r.byID)
}

// Names returns the registered names in ID order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.byID))
	for i, b := range r.byID {
		names[i] = b.Name
	}
	return names
}

// StdBuiltins returns a registry populated with the standard library.
func StdBuiltins() *Registry {
	r := NewRegistry()
	r.Register("std::println", Variadic, builtinPrintln)
	r.Register("std::print", Variadic, builtinPrint)
	r.Register("std::len", 1, builtinLen)
	r.Register("std::str", 1, builtinStr)
	r.Register("std::assert", 1, builtinAssert)
	r.Register("std::runtime::gc::cycle", 0, builtinGCCycle)
	r.Register("std::runtime::gc::live", 0, builtinGCLive)
	return r
}

func (m *VM) join(args []Value) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = m.Format(a)
	}
	return strings.Join(parts, " ")
}

func builtinPrintln(m *VM, args []Value) (Value, error) {
	_, err := fmt.Fprintln(m.out, m.join(args))
	return False, err
}

func builtinPrint(m *VM, args []Value) (Value, error) {
	_, err := fmt.Fprint(m.out, m.join(args))
	return False, err
}

func builtinLen(m *VM, args []Value) (Value, error) {
	n, err := m.length(args[0])
	if err != nil {
		return Empty, err
	}
	return FromInt(int64(n)), nil
}

func builtinStr(m *VM, args []Value) (Value, error) {
	return FromString(m.Format(args[0])), nil
}

func builtinAssert(m *VM, args []Value) (Value, error) {
	if !args[0].IsTruthy() {
		return Empty, ErrAssertion
	}
	return True, nil
}

func builtinGCCycle(m *VM, args []Value) (Value, error) {
	return FromInt(int64(m.Collect())), nil
}

func builtinGCLive(m *VM, args []Value) (Value, error) {
	return FromInt(int64(m.heap.Live())), nil
}
