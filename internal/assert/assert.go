// Package assert provides the fatal, process-terminating checks the core
// allocator uses for contract violations (double-zap, out-of-range batch,
// oversize key, ...). These are never recoverable and never wrapped as
// errors: the teacher's bufmgr.go panics on the equivalent conditions
// ("Buffer pool too small", "failed to fetch page", "page already exists")
// and this module follows the same idiom.
package assert

import "fmt"

// That panics with a formatted message if cond is false.
func That(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}
