// Package keyconfig provides a reference interfaces.DataConfig: plain
// byte-lexicographic key order, the simplest config a caller could wire
// in and the one the allocator's own tests use throughout.
package keyconfig

import (
	"bytes"
	"fmt"
)

// Bytewise compares keys with bytes.Compare and renders them as quoted
// Go strings for debugging.
type Bytewise struct{}

// KeyCompare returns <0, 0, >0 as a < b, a == b, a > b, by byte order.
func (Bytewise) KeyCompare(a, b []byte) int {
	return bytes.Compare(a, b)
}

// KeyCopy copies src into dst and returns the number of bytes copied.
func (Bytewise) KeyCopy(dst, src []byte) int {
	return copy(dst, src)
}

// KeyToString renders key as a quoted string.
func (Bytewise) KeyToString(key []byte) string {
	return fmt.Sprintf("%q", key)
}
