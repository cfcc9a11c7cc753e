// Package hash computes the 64-bit name digests that stand in for
// identifiers at run time.
package hash

import "github.com/zeebo/xxh3"

// Name returns the digest of an identifier's bytes. Bindings and lookups in
// the VM are keyed by this value only, so two names with equal digests are
// the same variable to the VM.
func Name(s string) uint64 {
	return xxh3.HashString(s)
}
