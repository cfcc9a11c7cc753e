//go:build !pgdebug

package compiler

const debugChecks = false
