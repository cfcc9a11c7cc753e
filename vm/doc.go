// Package vm implements the purple garden register virtual machine.
//
// This package contains:
//   - the tagged Value representation and the heap arena for arrays and objects
//   - the opcode set, the Builder used by the compiler and the disassembler
//   - the interpreter loop with call frames and variable bindings
//   - a mark-sweep collector rooted in registers, frames and globals
//   - the builtin Registry and the std:: builtins
//   - an opcode and call Profiler
package vm
