//go:build pgdebug

package compiler

// debugChecks escalates compiler invariant violations, such as a register
// leak at Finalize, from logged warnings to panics.
const debugChecks = true
